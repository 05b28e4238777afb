package parser

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

// PDFEncryption is the extracted /Encrypt dictionary of a protected PDF.
type PDFEncryption struct {
	Filter            string
	SubFilter         string
	Version           int
	Length            int
	Revision          int
	OwnerKey          []byte
	UserKey           []byte
	OwnerEncKey       []byte
	UserEncKey        []byte
	Permissions       int32
	Perms             []byte
	CryptFilterMethod string
	MetadataEncrypted bool
	DocumentID        []byte
}

var (
	reEncryptRef      = regexp.MustCompile(`/Encrypt\s+(\d+)\s+(\d+)\s+R`)
	rePDFFilter       = regexp.MustCompile(`/Filter\s*/(\w+)`)
	rePDFSubFilter    = regexp.MustCompile(`/SubFilter\s*/([\w.]+)`)
	rePDFVersion      = regexp.MustCompile(`/V\s+(\d+)`)
	rePDFLength       = regexp.MustCompile(`/Length\s+(\d+)`)
	rePDFRevision     = regexp.MustCompile(`/R\s+(\d+)`)
	rePDFPermissions  = regexp.MustCompile(`/P\s+(-?\d+)`)
	rePDFEncMetadata  = regexp.MustCompile(`/EncryptMetadata\s+(true|false)`)
	rePDFCFM          = regexp.MustCompile(`/CFM\s*/(\w+)`)
	rePDFDocumentID   = regexp.MustCompile(`/ID\s*\[`)
)

// ParsePDF scans raw PDF bytes for the encryption dictionary. The document
// cannot be opened through a full object model without the password, so the
// dictionary and trailer ID are pulled straight from the byte stream. All
// /Encrypt references must point at the same dictionary; the last one wins.
func ParsePDF(data []byte) (*PDFEncryption, error) {
	refs := reEncryptRef.FindAllSubmatch(data, -1)
	if len(refs) == 0 {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: no /Encrypt reference found")
	}
	objNum, err := strconv.Atoi(string(refs[len(refs)-1][1]))
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: invalid /Encrypt object number")
	}

	dict, err := pdfObjectDict(data, objNum)
	if err != nil {
		return nil, err
	}

	enc := &PDFEncryption{MetadataEncrypted: true, Length: 40}

	if m := rePDFFilter.FindSubmatch(dict); m != nil {
		enc.Filter = string(m[1])
	}
	if enc.Filter != "Standard" {
		return nil, errors.Wrapf(domain.ErrUnsupported, "pdf: security filter %q", enc.Filter)
	}
	if m := rePDFSubFilter.FindSubmatch(dict); m != nil {
		enc.SubFilter = string(m[1])
	}

	if m := rePDFVersion.FindSubmatch(dict); m != nil {
		enc.Version, _ = strconv.Atoi(string(m[1]))
	}
	if m := rePDFLength.FindSubmatch(dict); m != nil {
		enc.Length, _ = strconv.Atoi(string(m[1]))
	}
	m := rePDFRevision.FindSubmatch(dict)
	if m == nil {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: /R missing from encryption dictionary")
	}
	enc.Revision, _ = strconv.Atoi(string(m[1]))

	p := rePDFPermissions.FindSubmatch(dict)
	if p == nil {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: /P missing from encryption dictionary")
	}
	pVal, _ := strconv.ParseInt(string(p[1]), 10, 64)
	enc.Permissions = int32(pVal)

	if enc.OwnerKey, err = pdfStringValue(dict, "O"); err != nil {
		return nil, err
	}
	if enc.UserKey, err = pdfStringValue(dict, "U"); err != nil {
		return nil, err
	}
	enc.OwnerEncKey, _ = pdfStringValue(dict, "OE")
	enc.UserEncKey, _ = pdfStringValue(dict, "UE")
	enc.Perms, _ = pdfStringValue(dict, "Perms")

	if m := rePDFEncMetadata.FindSubmatch(dict); m != nil {
		enc.MetadataEncrypted = string(m[1]) == "true"
	}
	if m := rePDFCFM.FindSubmatch(dict); m != nil {
		enc.CryptFilterMethod = string(m[1])
	}

	enc.DocumentID, err = pdfDocumentID(data)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// CrackDescriptor converts the parsed dictionary into a verifier
// descriptor. Anything outside revisions {2,3,4,6} is unsupported.
func (e *PDFEncryption) CrackDescriptor(path string) (domain.Descriptor, error) {
	switch {
	case e.Revision >= 2 && e.Revision <= 4:
		if len(e.OwnerKey) < 32 || len(e.UserKey) < 32 {
			return nil, errors.Wrap(domain.ErrMalformed, "pdf: O/U entries shorter than 32 bytes")
		}
		perm := make([]byte, 4)
		binary.LittleEndian.PutUint32(perm, uint32(e.Permissions))
		return domain.PDFLegacyDescriptor{
			Path:              path,
			Revision:          e.Revision,
			KeyLengthBits:     e.Length,
			OwnerKey:          e.OwnerKey[:32],
			UserKey:           e.UserKey[:32],
			Permissions:       perm,
			DocumentID:        e.DocumentID,
			MetadataEncrypted: e.MetadataEncrypted,
		}, nil
	case e.Revision == 6:
		if len(e.OwnerKey) < 48 || len(e.UserKey) < 48 {
			return nil, errors.Wrap(domain.ErrMalformed, "pdf: O/U entries shorter than 48 bytes")
		}
		return domain.PDFAESDescriptor{
			Path:     path,
			OwnerKey: e.OwnerKey[:48],
			UserKey:  e.UserKey[:48],
		}, nil
	default:
		return nil, errors.Wrapf(domain.ErrUnsupported, "pdf: revision %d", e.Revision)
	}
}

func pdfObjectDict(data []byte, objNum int) ([]byte, error) {
	marker := []byte(strconv.Itoa(objNum) + " 0 obj")
	idx := bytes.LastIndex(data, marker)
	if idx < 0 {
		return nil, errors.Wrapf(domain.ErrMalformed, "pdf: object %d not found", objNum)
	}
	start := bytes.Index(data[idx:], []byte("<<"))
	if start < 0 {
		return nil, errors.Wrapf(domain.ErrMalformed, "pdf: object %d has no dictionary", objNum)
	}
	start += idx

	depth := 0
	for i := start; i+1 < len(data); {
		switch {
		case data[i] == '<' && data[i+1] == '<':
			depth++
			i += 2
		case data[i] == '>' && data[i+1] == '>':
			depth--
			i += 2
			if depth == 0 {
				return data[start:i], nil
			}
		default:
			i++
		}
	}
	return nil, errors.Wrapf(domain.ErrMalformed, "pdf: unterminated dictionary in object %d", objNum)
}

// pdfStringValue extracts the string value of a dictionary key, either
// hex (<...>) or literal ((...)) form.
func pdfStringValue(dict []byte, key string) ([]byte, error) {
	re := regexp.MustCompile(`/` + key + `\s*([(<])`)
	m := re.FindSubmatchIndex(dict)
	if m == nil {
		return nil, errors.Wrapf(domain.ErrMalformed, "pdf: /%s missing from encryption dictionary", key)
	}
	value, _, err := pdfStringToken(dict, m[2])
	return value, err
}

// pdfStringToken parses a PDF string starting at pos and returns its bytes
// plus the offset just past the token.
func pdfStringToken(data []byte, pos int) ([]byte, int, error) {
	switch data[pos] {
	case '<':
		end := bytes.IndexByte(data[pos:], '>')
		if end < 0 {
			return nil, 0, errors.Wrap(domain.ErrMalformed, "pdf: unterminated hex string")
		}
		raw := make([]byte, 0, end-1)
		for _, c := range data[pos+1 : pos+end] {
			switch {
			case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
				raw = append(raw, c)
			case c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f':
			default:
				return nil, 0, errors.Wrap(domain.ErrMalformed, "pdf: invalid hex string")
			}
		}
		if len(raw)%2 == 1 {
			raw = append(raw, '0')
		}
		out := make([]byte, len(raw)/2)
		for i := 0; i < len(raw); i += 2 {
			v, _ := strconv.ParseUint(string(raw[i:i+2]), 16, 8)
			out[i/2] = byte(v)
		}
		return out, pos + end + 1, nil
	case '(':
		out := make([]byte, 0, 48)
		i := pos + 1
		depth := 1
		for i < len(data) {
			c := data[i]
			switch c {
			case '\\':
				if i+1 >= len(data) {
					return nil, 0, errors.Wrap(domain.ErrMalformed, "pdf: dangling escape in literal string")
				}
				i++
				switch e := data[i]; e {
				case 'n':
					out = append(out, '\n')
				case 'r':
					out = append(out, '\r')
				case 't':
					out = append(out, '\t')
				case 'b':
					out = append(out, '\b')
				case 'f':
					out = append(out, '\f')
				case '\\', '(', ')':
					out = append(out, e)
				case '\n', '\r':
					// line continuation
				default:
					if e >= '0' && e <= '7' {
						v := int(e - '0')
						for j := 0; j < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; j++ {
							i++
							v = v<<3 + int(data[i]-'0')
						}
						out = append(out, byte(v))
					} else {
						out = append(out, e)
					}
				}
				i++
			case '(':
				depth++
				out = append(out, c)
				i++
			case ')':
				depth--
				if depth == 0 {
					return out, i + 1, nil
				}
				out = append(out, c)
				i++
			default:
				out = append(out, c)
				i++
			}
		}
		return nil, 0, errors.Wrap(domain.ErrMalformed, "pdf: unterminated literal string")
	}
	return nil, 0, errors.Wrap(domain.ErrMalformed, "pdf: expected string token")
}

// pdfDocumentID returns the first element of the trailer /ID array. The
// last occurrence in the file belongs to the most recent trailer.
func pdfDocumentID(data []byte) ([]byte, error) {
	locs := rePDFDocumentID.FindAllIndex(data, -1)
	if len(locs) == 0 {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: trailer /ID not found")
	}
	pos := locs[len(locs)-1][1]
	for pos < len(data) && (data[pos] == ' ' || data[pos] == '\n' || data[pos] == '\r' || data[pos] == '\t') {
		pos++
	}
	if pos >= len(data) {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: truncated /ID array")
	}
	id, _, err := pdfStringToken(data, pos)
	return id, err
}
