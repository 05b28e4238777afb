package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"forge/internal/adapter/notify"
	"forge/internal/adapter/store"
	"forge/internal/core/harvest"
	"forge/internal/core/service"
	"forge/internal/port"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|volume>",
	Short: "Parse a container and print its encryption metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	root := filepath.Dir(path)
	target := port.FileID(filepath.Base(path))

	files := store.NewDirFileStore(afero.NewOsFs(), root)
	artifacts := store.NewMemoryArtifactStore()
	svc := service.NewCrackerService(files, artifacts, store.NewMemoryTagStore(), notify.LogNotifier{})

	descriptors, err := svc.Inspect(target)
	if err != nil {
		return err
	}

	attrs := artifacts.Attributes(target)
	if len(attrs) == 0 && len(descriptors) == 0 {
		fmt.Printf("%s: no encrypted content detected\n", args[0])
		return nil
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-40s %v\n", name, attrs[name])
	}

	for _, desc := range descriptors {
		fmt.Printf("crackable: %s (%s)\n", desc.Kind(), desc.Target())
	}

	if data, err := files.ReadAll(target); err == nil {
		for _, key := range harvest.FindRecoveryKeys(data) {
			fmt.Printf("bitlocker recovery key candidate: %s\n", key)
		}
	}
	return nil
}
