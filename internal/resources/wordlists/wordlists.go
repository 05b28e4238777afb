package wordlists

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

// Bundled most-common password lists, one file per decade, derived from the
// SecLists common-credentials collection.
//
//go:embed data/*.txt
var files embed.FS

// Common returns the bundled list with the given password count.
func Common(count int) ([]string, error) {
	data, err := files.ReadFile(fmt.Sprintf("data/%d.txt", count))
	if err != nil {
		return nil, errors.Wrapf(domain.ErrIO, "no bundled wordlist with %d passwords", count)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Counts lists the available list sizes.
func Counts() []int {
	return []int{10, 100, 1000}
}
