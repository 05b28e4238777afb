package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"forge/internal/adapter/notify"
	"forge/internal/adapter/store"
	"forge/internal/core/domain"
	"forge/internal/core/service"
	"forge/internal/port"
)

var crackOpts struct {
	workers     int
	common      int
	wordlist    string
	stringScope string
	tagDir      string
	random      bool
	charset     string
	minLen      int
	maxLen      int
	decrypt     bool
	decryptDir  string
}

var crackCmd = &cobra.Command{
	Use:   "crack <file>",
	Short: "Recover the password of an encrypted container",
	Args:  cobra.ExactArgs(1),
	RunE:  runCrack,
}

func init() {
	flags := crackCmd.Flags()
	flags.IntVarP(&crackOpts.workers, "workers", "w", runtime.NumCPU(), "number of parallel workers")
	flags.IntVar(&crackOpts.common, "common", 0, "bundled common-password list size (10, 100, 1000)")
	flags.StringVar(&crackOpts.wordlist, "wordlist", "", "path to a plain-text wordlist")
	flags.StringVar(&crackOpts.stringScope, "strings", "", "harvest strings from scope: Folder, Data Source, Hostname, All")
	flags.StringVar(&crackOpts.tagDir, "tag-dir", "", "directory whose files act as tagged cracker sources")
	flags.BoolVar(&crackOpts.random, "random", false, "enable exhaustive enumeration after the candidate list")
	flags.StringVar(&crackOpts.charset, "charset", domain.CharsetLower+domain.CharsetDigits, "charset for exhaustive enumeration")
	flags.IntVar(&crackOpts.minLen, "min-len", 1, "minimum password length for enumeration")
	flags.IntVar(&crackOpts.maxLen, "max-len", 4, "maximum password length for enumeration")
	flags.BoolVar(&crackOpts.decrypt, "decrypt", false, "decrypt the container after a successful find")
	flags.StringVar(&crackOpts.decryptDir, "decrypt-dir", "", "directory for decrypted output")

	rootCmd.AddCommand(crackCmd)
}

func runCrack(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	root := filepath.Dir(path)
	target := port.FileID(filepath.Base(path))

	files := store.NewDirFileStore(afero.NewOsFs(), root)
	artifacts := store.NewMemoryArtifactStore()
	tags := store.NewMemoryTagStore()

	if crackOpts.tagDir != "" {
		tagStore := store.NewDirFileStore(afero.NewOsFs(), crackOpts.tagDir)
		ids, err := tagStore.FindFiles("", domain.ScopeAll, "*")
		if err != nil {
			return err
		}
		for _, id := range ids {
			// Tagged IDs must resolve through the job's file store root.
			rel, err := filepath.Rel(root, filepath.Join(crackOpts.tagDir, filepath.FromSlash(string(id))))
			if err != nil {
				continue
			}
			tags.Tag(domain.CrackerSourceTag, port.FileID(filepath.ToSlash(rel)))
		}
	}

	svc := service.NewCrackerService(files, artifacts, tags, notify.LogNotifier{})

	descriptors, err := svc.Inspect(target)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return errors.New("no crackable encrypted content found")
	}

	settings := domain.CrackSettings{
		Workers:        crackOpts.workers,
		CommonCount:    crackOpts.common,
		WordlistPath:   crackOpts.wordlist,
		StringsScope:   domain.Scope(crackOpts.stringScope),
		TaggedFiles:    crackOpts.tagDir != "",
		RandomPassword: crackOpts.random,
		RandomCharset:  crackOpts.charset,
		RandomMinLen:   crackOpts.minLen,
		RandomMaxLen:   crackOpts.maxLen,
		DecryptFile:    crackOpts.decrypt,
		DecryptDir:     crackOpts.decryptDir,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := svc.Crack(ctx, target, descriptors[0], settings, &notify.LogProgress{})
	if err != nil {
		return err
	}

	switch result.Outcome {
	case domain.OutcomeFound:
		fmt.Printf("password found: %s (%d attempts in %s)\n", result.Password, result.Attempts, result.TimeTaken.Round(0))
	case domain.OutcomeExhausted:
		fmt.Printf("no password found after %d attempts in %s\n", result.Attempts, result.TimeTaken.Round(0))
	case domain.OutcomeCancelled:
		fmt.Println("cancelled")
	}
	return nil
}
