package harvest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

const minStringLen = 4

var recoveryKeyPattern = regexp.MustCompile(`\b(\d{6})-(\d{6})-(\d{6})-(\d{6})-(\d{6})-(\d{6})-(\d{6})-(\d{6})\b`)

// Strings extracts candidate password lines from a file. OOXML documents
// and PDFs get format-aware text extraction; everything else falls back to
// printable ASCII runs.
func Strings(data []byte, mime, ext string) ([]string, error) {
	mime = strings.ToLower(mime)
	ext = strings.ToLower(ext)

	switch {
	case mime == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" || ext == "xlsx":
		if lines, err := ooxmlStrings(data, "xl/sharedStrings.xml", "t"); err == nil {
			return lines, nil
		}
	case mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" || ext == "docx":
		if lines, err := ooxmlStrings(data, "word/document.xml", "t"); err == nil {
			return lines, nil
		}
	case mime == "application/pdf" || mime == "application/x-pdf" || ext == "pdf":
		if lines := pdfStrings(data); len(lines) > 0 {
			return lines, nil
		}
	}

	lines := asciiStrings(data)
	if len(lines) == 0 {
		return nil, errors.Wrap(domain.ErrIO, "harvest: no strings found")
	}
	return lines, nil
}

// FindRecoveryKeys scans for the BitLocker recovery password pattern:
// eight dash-separated groups of six digits. Each group must be divisible
// by 11 for the string to be a valid key.
func FindRecoveryKeys(data []byte) []string {
	matches := recoveryKeyPattern.FindAllSubmatch(data, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		isKey := true
		for _, groupBytes := range m[1:] {
			group, err := strconv.Atoi(string(groupBytes))
			if err != nil || group%11 != 0 {
				isKey = false
				break
			}
		}
		if isKey {
			keys = append(keys, string(m[0]))
		}
	}
	return keys
}

// asciiStrings collects printable ASCII runs of at least minStringLen,
// split on whitespace so each word is one candidate line.
func asciiStrings(data []byte) []string {
	var lines []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minStringLen {
			lines = append(lines, string(data[start:end]))
		}
		start = -1
	}
	for i, b := range data {
		printable := b > 0x20 && b < 0x7F
		if printable && start < 0 {
			start = i
		}
		if !printable {
			flush(i)
		}
	}
	flush(len(data))
	return lines
}

func ooxmlStrings(data []byte, member, textElement string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return xmlText(rc, textElement)
	}
	return nil, errors.Errorf("member %s not found", member)
}

// xmlText collects the character data of every element with the given
// local name.
func xmlText(r io.Reader, localName string) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var lines []string
	depth := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == localName {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == localName && depth > 0 {
				depth--
			}
		case xml.CharData:
			if depth > 0 {
				for _, line := range strings.FieldsFunc(string(t), func(r rune) bool { return r == '\n' || r == '\r' }) {
					if line = strings.TrimSpace(line); line != "" {
						lines = append(lines, line)
					}
				}
			}
		}
	}
}

// pdfStrings pulls literal string objects plus plain ASCII runs out of a
// PDF byte stream.
func pdfStrings(data []byte) []string {
	seen := make(map[string]struct{})
	var lines []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) < minStringLen {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		lines = append(lines, s)
	}

	depth := 0
	start := -1
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					add(string(data[start:i]))
					start = -1
				}
			}
		}
	}
	for _, s := range asciiStrings(data) {
		add(s)
	}
	return lines
}
