package service

import (
	"bufio"
	"bytes"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"forge/internal/core/domain"
	"forge/internal/core/harvest"
	"forge/internal/port"
	"forge/internal/resources/wordlists"
)

// candidateSet is an ordered set: insertion order is preserved and
// duplicates dropped, so round-robin partitioning stays deterministic.
type candidateSet struct {
	seen  map[string]struct{}
	order []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]struct{})}
}

func (c *candidateSet) add(password string) {
	if password == "" {
		return
	}
	if _, ok := c.seen[password]; ok {
		return
	}
	c.seen[password] = struct{}{}
	c.order = append(c.order, password)
}

func (c *candidateSet) remove(password string) {
	if _, ok := c.seen[password]; !ok {
		return
	}
	delete(c.seen, password)
	for i, p := range c.order {
		if p == password {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// buildCandidates assembles the candidate list from every enabled source
// and subtracts passwords already tried for this object. Failing sources
// are skipped (harvested files silently, the others with a notification);
// they never abort the job.
func (s *CrackerService) buildCandidates(
	target port.FileID,
	desc domain.Descriptor,
	settings domain.CrackSettings,
) ([]string, error) {
	set := newCandidateSet()

	if settings.CommonCount > 0 {
		lines, err := wordlists.Common(settings.CommonCount)
		if err != nil {
			s.notifier.Warn("Error reading common password list", err.Error())
		}
		for _, line := range lines {
			set.add(line)
		}
	}

	if settings.StringsScope != "" {
		s.harvestScope(target, settings.StringsScope, set)
	}

	if settings.TaggedFiles && s.tags.TagExists(domain.CrackerSourceTag) {
		ids, err := s.tags.FilesTagged(domain.CrackerSourceTag)
		if err != nil {
			s.notifier.Warn("Error reading tagged files", err.Error())
		}
		for _, id := range ids {
			s.harvestFile(id, set)
		}
	}

	if settings.WordlistPath != "" {
		s.readWordlistFile(settings.WordlistPath, set)
	}

	for password := range s.triedPasswords(target, desc) {
		set.remove(password)
	}
	return set.order, nil
}

func (s *CrackerService) harvestScope(target port.FileID, scope domain.Scope, set *candidateSet) {
	ids, err := s.files.FindFiles(target, scope, "*")
	if err != nil {
		s.notifier.Warn("Error resolving strings scope", err.Error())
		return
	}
	for _, id := range ids {
		if id == target {
			continue
		}
		s.harvestFile(id, set)
	}
}

func (s *CrackerService) harvestFile(id port.FileID, set *candidateSet) {
	data, err := s.files.ReadAll(id)
	if err != nil {
		return
	}
	lines, err := harvest.Strings(data, s.files.MimeOf(id), s.files.ExtensionOf(id))
	if err != nil {
		return
	}
	for _, line := range lines {
		set.add(line)
	}
}

// readWordlistFile loads an analyst-supplied wordlist. Anything but plain
// text is rejected.
func (s *CrackerService) readWordlistFile(path string, set *candidateSet) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.notifier.Error("Error reading wordlist file", err.Error())
		return
	}
	if !mimetype.Detect(data).Is("text/plain") {
		s.notifier.Error("Error reading wordlist file", "file is not a text file")
		return
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		set.add(scanner.Text())
	}
}
