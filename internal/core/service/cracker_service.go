package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
	"forge/internal/core/enumerate"
	"forge/internal/core/verifier"
	"forge/internal/pkg/metrics"
	"forge/internal/port"
)

const (
	// Workers probe cancellation and report progress every reportFreq
	// candidates.
	reportFreq = 50

	MetricsUpdateInterval = time.Second
)

// CrackerService owns the password-recovery jobs. All host interaction
// goes through the ports handed in at construction.
type CrackerService struct {
	files     port.FileStore
	artifacts port.ArtifactStore
	tags      port.TagStore
	notifier  port.Notifier
	metrics   *metrics.Collector
	reporter  *metrics.Reporter
}

func NewCrackerService(
	files port.FileStore,
	artifacts port.ArtifactStore,
	tags port.TagStore,
	notifier port.Notifier,
) *CrackerService {
	reporter, _ := metrics.NewReporter(filepath.Join(os.TempDir(), "forge_metrics.log"))

	return &CrackerService{
		files:     files,
		artifacts: artifacts,
		tags:      tags,
		notifier:  notifier,
		metrics:   metrics.NewCollector(MetricsUpdateInterval),
		reporter:  reporter,
	}
}

// Crack drives one job: assemble candidates, partition them across workers,
// run the format verifier, and surface one of three outcomes. The first
// worker to confirm a password wins; everyone else observes the cancelled
// flag and exits at the next probe.
func (s *CrackerService) Crack(
	ctx context.Context,
	target port.FileID,
	desc domain.Descriptor,
	settings domain.CrackSettings,
	progress port.Progress,
) (*domain.CrackResult, error) {
	workers := settings.Workers
	if workers < 1 {
		workers = 1
	}

	jobID := fmt.Sprintf("%s-%d", desc.Kind(), time.Now().UnixNano())
	s.metrics.StartCollection(jobID)
	defer s.metrics.StopCollection(jobID)

	name := crackerName(desc)
	progress.Start("Generating password list")
	startTime := time.Now()

	var cancelled atomic.Bool
	var found atomic.Pointer[string]
	progress.OnCancel(func() { cancelled.Store(true) })

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-watchDone:
		}
	}()

	candidates, err := s.buildCandidates(target, desc, settings)
	if err != nil {
		progress.Finish()
		s.notifier.Error("Error getting password list", err.Error())
		return nil, err
	}

	container, err := s.files.ReadAll(target)
	if err != nil {
		progress.Finish()
		s.notifier.Error(name+": cannot read container", err.Error())
		return nil, err
	}

	// Scratch space for decrypt-and-export when no directory is given;
	// removed whatever the outcome.
	scratchDir, err := os.MkdirTemp("", "forge-crack-*")
	if err != nil {
		progress.Finish()
		return nil, errors.Wrap(domain.ErrIO, err.Error())
	}
	defer os.RemoveAll(scratchDir)

	var space *enumerate.Space
	var ranges []enumerate.Range
	if settings.RandomPassword {
		space, err = enumerate.NewSpace(settings.RandomCharset, settings.RandomMinLen, settings.RandomMaxLen)
		if err != nil {
			progress.Finish()
			return nil, err
		}
		ranges = space.Ranges(workers)
	}

	tried := s.triedPasswords(target, desc)

	lists := partition(candidates, workers)
	progress.Determinate(int64(len(candidates)))
	progress.Indeterminate(name + " started on " + string(target))

	var attempts atomic.Int64
	progressCh := make(chan int, workers*4)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		var overall int64
		total := int64(len(candidates))
		indeterminate := false
		for n := range progressCh {
			overall += int64(n)
			attempts.Add(int64(n))
			s.metrics.UpdateAttempts(jobID, overall, workers)
			if !indeterminate && overall > total {
				progress.Indeterminate(fmt.Sprintf("Tried %d passwords", overall))
				indeterminate = true
				continue
			}
			progress.Advance(int64(n), fmt.Sprintf("Tried %d passwords", overall))
		}
	}()

	// One verifier per worker; verification state never crosses threads.
	verifiers := make([]verifier.Verifier, workers)
	for i := range verifiers {
		if verifiers[i], err = verifier.New(desc, container); err != nil {
			close(progressCh)
			<-collectorDone
			progress.Finish()
			return nil, err
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		w := &worker{
			id:        i,
			name:      name,
			verifier:  verifiers[i],
			passwords: lists[i],
			tried:     tried,
			cancelled: &cancelled,
			found:     &found,
			progress:  progressCh,
			notifier:  s.notifier,
		}
		if space != nil {
			w.space = space
			w.indexRange = ranges[i]
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run()
		}()
	}

	wg.Wait()
	close(progressCh)
	<-collectorDone
	progress.Finish()

	result := &domain.CrackResult{
		Attempts:      attempts.Load(),
		TimeTaken:     time.Since(startTime),
		CandidateSize: len(candidates),
	}

	password := found.Load()
	switch {
	case password == nil && !cancelled.Load():
		result.Outcome = domain.OutcomeExhausted
		s.notifier.Info(name+": no password found",
			name+" did not find a password for "+string(target))
	case password == nil:
		result.Outcome = domain.OutcomeCancelled
		s.notifier.Info(name+" cancelled",
			name+" on "+string(target)+" was cancelled")
	default:
		result.Outcome = domain.OutcomeFound
		result.Password = *password
		s.notifier.Info(string(target)+": password found",
			name+": password for "+string(target)+" is: "+*password)
		s.persistPassword(target, desc, *password)

		if settings.DecryptFile {
			destDir := settings.DecryptDir
			if destDir == "" {
				destDir = scratchDir
			}
			v, err := verifier.New(desc, container)
			if err == nil {
				err = v.Decrypt(*password, destDir)
			}
			if err != nil {
				s.notifier.Error(name+": failed to decrypt "+string(target), err.Error())
			}
		}
	}

	if s.reporter != nil {
		s.reporter.Record("crack", map[string]any{
			"job":      jobID,
			"target":   string(target),
			"outcome":  result.Outcome,
			"attempts": result.Attempts,
		})
		_ = s.reporter.Flush()
	}
	return result, nil
}

func crackerName(desc domain.Descriptor) string {
	switch desc.Kind() {
	case domain.KindZipCrypto, domain.KindZipAES:
		return "ZIP Cracker"
	case domain.KindPDFLegacy, domain.KindPDFAES:
		return "PDF Cracker"
	case domain.KindOffice:
		return "Office Cracker"
	}
	return "Cracker"
}

// partition deals candidates round-robin: candidate i goes to worker
// i mod n. Size-balanced, and early common passwords spread across all
// workers instead of serializing on the first one.
func partition(candidates []string, n int) [][]string {
	lists := make([][]string, n)
	for i, candidate := range candidates {
		lists[i%n] = append(lists[i%n], candidate)
	}
	return lists
}

func isZipDescriptor(desc domain.Descriptor) bool {
	return desc.Kind() == domain.KindZipCrypto || desc.Kind() == domain.KindZipAES
}

// triedPasswords loads previously tested candidates. Only ZIP descriptors
// carry a tried list: ZipCrypto's one-byte check admits false positives, so
// a confirmed-then-rejected password must not be retried on a later run.
func (s *CrackerService) triedPasswords(target port.FileID, desc domain.Descriptor) map[string]struct{} {
	tried := make(map[string]struct{})
	if !isZipDescriptor(desc) {
		return tried
	}
	value, ok := s.artifacts.GetAttribute(target, domain.AttrTriedPassword)
	if !ok {
		return tried
	}
	if joined, ok := value.(string); ok {
		for _, password := range strings.Split(joined, ",") {
			tried[password] = struct{}{}
		}
	}
	return tried
}

func (s *CrackerService) persistPassword(target port.FileID, desc domain.Descriptor, password string) {
	if isZipDescriptor(desc) {
		joined := password
		if value, ok := s.artifacts.GetAttribute(target, domain.AttrTriedPassword); ok {
			if existing, ok := value.(string); ok && existing != "" {
				joined = existing + "," + password
			}
		}
		if err := s.artifacts.PutAttribute(target, domain.AttrTriedPassword, joined); err != nil {
			s.notifier.Error("Error adding tried password to file", err.Error())
		}
	}
	if err := s.artifacts.PutAttribute(target, domain.AttrPassword, password); err != nil {
		s.notifier.Error("Error adding password attribute to file", err.Error())
	}
}
