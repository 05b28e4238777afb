package domain

// Descriptor carries the format-specific parameters needed to verify a
// candidate password without decrypting the payload. One descriptor is
// produced per detected encrypted object.
type Descriptor interface {
	Kind() DescriptorKind
	Target() string
}

// ZipCryptoDescriptor describes one PKWARE-encrypted ZIP entry. The
// verification byte is either the high byte of the central-directory CRC-32
// or, for streamed entries (data-descriptor bit set), the high byte of the
// DOS modification time.
type ZipCryptoDescriptor struct {
	ArchivePath       string
	EntryPath         string
	LocalHeaderOffset int64
	Flags             uint16
	EncryptedHeader   [12]byte
	VerifyByte        byte
	VerifyFromDosTime bool
}

func (d ZipCryptoDescriptor) Kind() DescriptorKind { return KindZipCrypto }
func (d ZipCryptoDescriptor) Target() string       { return d.ArchivePath }

// ZipAESDescriptor describes one WinZip AES entry. Salt length is fixed by
// strength: strength/16 bytes. The password verifier is always 2 bytes.
type ZipAESDescriptor struct {
	ArchivePath       string
	EntryPath         string
	LocalHeaderOffset int64
	Strength          int // 128, 192 or 256
	Salt              []byte
	PasswordVerifier  [2]byte
}

func (d ZipAESDescriptor) Kind() DescriptorKind { return KindZipAES }
func (d ZipAESDescriptor) Target() string       { return d.ArchivePath }

// PDFLegacyDescriptor covers standard-security revisions 2 through 4.
// OwnerKey and UserKey are exactly 32 bytes; Permissions is the P value as
// 4 little-endian bytes.
type PDFLegacyDescriptor struct {
	Path              string
	Revision          int
	KeyLengthBits     int
	OwnerKey          []byte
	UserKey           []byte
	Permissions       []byte
	DocumentID        []byte
	MetadataEncrypted bool
}

func (d PDFLegacyDescriptor) Kind() DescriptorKind { return KindPDFLegacy }
func (d PDFLegacyDescriptor) Target() string       { return d.Path }

// PDFAESDescriptor covers revision 6. Both keys are exactly 48 bytes:
// 32-byte hash, 8-byte validation salt, 8-byte key salt.
type PDFAESDescriptor struct {
	Path     string
	OwnerKey []byte
	UserKey  []byte
}

func (d PDFAESDescriptor) Kind() DescriptorKind { return KindPDFAES }
func (d PDFAESDescriptor) Target() string       { return d.Path }

// OfficeDescriptor describes an OLE-wrapped encrypted OOXML document.
// Standard mode fills the binary header fields; agile mode fills the
// XML-descriptor fields.
type OfficeDescriptor struct {
	Path            string
	Mode            OfficeMode
	CipherAlgorithm string
	HashAlgorithm   string

	KeyBits int
	Salt    []byte

	// Standard mode
	EncryptedVerifier     []byte
	EncryptedVerifierHash []byte
	VerifierHashSize      int

	// Agile mode
	SpinCount            int
	AgileKeyBits         int
	AgileHashAlgorithm   string
	VerifierHashInputEnc []byte
	VerifierHashValueEnc []byte
}

func (d OfficeDescriptor) Kind() DescriptorKind { return KindOffice }
func (d OfficeDescriptor) Target() string       { return d.Path }
