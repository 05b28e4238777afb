package parser

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"

	"github.com/pkg/errors"
	"github.com/richardlehane/mscfb"

	"forge/internal/core/domain"
)

// ParseOffice opens an OLE compound file and extracts the EncryptionInfo
// stream of a password-protected OOXML document.
func ParseOffice(r io.ReaderAt, path string) (*domain.OfficeDescriptor, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "office: not an OLE compound file")
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "EncryptionInfo" {
			continue
		}
		data, err := io.ReadAll(entry)
		if err != nil {
			return nil, errors.Wrap(domain.ErrIO, "office: reading EncryptionInfo stream")
		}
		return parseEncryptionInfo(data, path)
	}
	return nil, errors.Wrap(domain.ErrMalformed, "office: EncryptionInfo stream not found")
}

func parseEncryptionInfo(data []byte, path string) (*domain.OfficeDescriptor, error) {
	if len(data) < 8 {
		return nil, errors.Wrap(domain.ErrMalformed, "office: EncryptionInfo stream too short")
	}
	vMajor := binary.LittleEndian.Uint16(data)
	vMinor := binary.LittleEndian.Uint16(data[2:])

	switch {
	case vMajor == 4 && vMinor == 4:
		return parseAgileInfo(data[8:], path)
	case (vMajor == 2 || vMajor == 3 || vMajor == 4) && vMinor == 2:
		return parseStandardInfo(data[4:], path)
	case vMinor == 3:
		return nil, errors.Wrap(domain.ErrUnsupported, "office: extensible encryption")
	}
	return nil, errors.Wrapf(domain.ErrUnsupported, "office: EncryptionInfo version %d.%d", vMajor, vMinor)
}

var officeCipherNames = map[uint32]string{
	0x6801: "RC4",
	0x660E: "AES128",
	0x660F: "AES192",
	0x6610: "AES256",
}

// parseStandardInfo decodes the ECMA-376 standard (binary) descriptor:
// flags, EncryptionHeader, EncryptionVerifier.
func parseStandardInfo(data []byte, path string) (*domain.OfficeDescriptor, error) {
	if len(data) < 8 {
		return nil, errors.Wrap(domain.ErrMalformed, "office: truncated encryption header")
	}
	headerSize := binary.LittleEndian.Uint32(data[4:])
	if int(headerSize) < 32 || 8+int(headerSize) > len(data) {
		return nil, errors.Wrap(domain.ErrMalformed, "office: encryption header size out of range")
	}
	header := data[8 : 8+headerSize]

	algID := binary.LittleEndian.Uint32(header[8:])
	algIDHash := binary.LittleEndian.Uint32(header[12:])
	keyBits := int(binary.LittleEndian.Uint32(header[16:]))

	cipher, ok := officeCipherNames[algID]
	if !ok {
		cipher = "Unknown"
	}
	hashName := "SHA1"
	if algIDHash != 0x8004 && algIDHash != 0 {
		hashName = "Unknown"
	}

	mode := domain.OfficeModeStandard
	if cipher == "RC4" {
		mode = domain.OfficeModeBinaryRC4
	}

	verifier := data[8+headerSize:]
	if len(verifier) < 4 {
		return nil, errors.Wrap(domain.ErrMalformed, "office: truncated encryption verifier")
	}
	saltSize := int(binary.LittleEndian.Uint32(verifier))
	if saltSize != 16 || len(verifier) < 4+saltSize+16+4 {
		return nil, errors.Wrap(domain.ErrMalformed, "office: invalid verifier salt")
	}
	salt := verifier[4 : 4+saltSize]
	encVerifier := verifier[4+saltSize : 4+saltSize+16]
	hashSize := int(binary.LittleEndian.Uint32(verifier[4+saltSize+16:]))
	encVerifierHash := verifier[4+saltSize+16+4:]
	if len(encVerifierHash) < 32 {
		return nil, errors.Wrap(domain.ErrMalformed, "office: truncated verifier hash")
	}

	return &domain.OfficeDescriptor{
		Path:                  path,
		Mode:                  mode,
		CipherAlgorithm:       cipher,
		HashAlgorithm:         hashName,
		KeyBits:               keyBits,
		Salt:                  append([]byte(nil), salt...),
		EncryptedVerifier:     append([]byte(nil), encVerifier...),
		EncryptedVerifierHash: append([]byte(nil), encVerifierHash[:32]...),
		VerifierHashSize:      hashSize,
	}, nil
}

type agileKeyData struct {
	SaltValue       string `xml:"saltValue,attr"`
	KeyBits         int    `xml:"keyBits,attr"`
	CipherAlgorithm string `xml:"cipherAlgorithm,attr"`
	HashAlgorithm   string `xml:"hashAlgorithm,attr"`
}

type agileEncryptedKey struct {
	SpinCount                 int    `xml:"spinCount,attr"`
	KeyBits                   int    `xml:"keyBits,attr"`
	SaltValue                 string `xml:"saltValue,attr"`
	HashAlgorithm             string `xml:"hashAlgorithm,attr"`
	CipherAlgorithm           string `xml:"cipherAlgorithm,attr"`
	EncryptedVerifierHashInput string `xml:"encryptedVerifierHashInput,attr"`
	EncryptedVerifierHashValue string `xml:"encryptedVerifierHashValue,attr"`
}

type agileDescriptor struct {
	KeyData      agileKeyData      `xml:"keyData"`
	EncryptedKey agileEncryptedKey `xml:"keyEncryptors>keyEncryptor>encryptedKey"`
}

// parseAgileInfo decodes the agile (XML) descriptor that follows the
// 8-byte version/flags prefix.
func parseAgileInfo(data []byte, path string) (*domain.OfficeDescriptor, error) {
	var desc agileDescriptor
	if err := xml.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "office: invalid agile descriptor XML")
	}
	if desc.EncryptedKey.SpinCount == 0 || desc.EncryptedKey.SaltValue == "" {
		return nil, errors.Wrap(domain.ErrMalformed, "office: agile password key encryptor missing")
	}

	salt, err := base64.StdEncoding.DecodeString(desc.EncryptedKey.SaltValue)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "office: invalid agile salt")
	}
	hashInput, err := base64.StdEncoding.DecodeString(desc.EncryptedKey.EncryptedVerifierHashInput)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "office: invalid agile verifier input")
	}
	hashValue, err := base64.StdEncoding.DecodeString(desc.EncryptedKey.EncryptedVerifierHashValue)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "office: invalid agile verifier value")
	}

	return &domain.OfficeDescriptor{
		Path:                 path,
		Mode:                 domain.OfficeModeAgile,
		CipherAlgorithm:      desc.KeyData.CipherAlgorithm,
		HashAlgorithm:        desc.KeyData.HashAlgorithm,
		KeyBits:              desc.KeyData.KeyBits,
		Salt:                 salt,
		SpinCount:            desc.EncryptedKey.SpinCount,
		AgileKeyBits:         desc.EncryptedKey.KeyBits,
		AgileHashAlgorithm:   desc.EncryptedKey.HashAlgorithm,
		VerifierHashInputEnc: hashInput,
		VerifierHashValueEnc: hashValue,
	}, nil
}
