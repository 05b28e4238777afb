package parser

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

const (
	eocdSignature    = 0x06054b50
	cdSignature      = 0x02014b50
	localSignature   = 0x04034b50
	aesExtraHeaderID = 0x9901
	aesMethod        = 99

	// Minimum EOCD length; the backward scan starts here and continues
	// further back when an archive comment is present.
	eocdMinLen = 22

	maxCommentLen = 0xFFFF
)

// ZipArchive is the parsed central directory of one archive.
type ZipArchive struct {
	Comment          string
	CDRecords        int
	CDOffset         int64
	EOCDOffset       int64
	Encrypted        bool
	EncryptionMethod domain.EncryptionMethod
	Entries          []ZipEntry
}

// ZipEntry is one central-directory record.
type ZipEntry struct {
	Path      string // "/"-joined path inside the archive
	Name      string // last path segment, trailing "/" for directories
	RawName   string // name exactly as stored
	Directory bool

	Encrypted        bool
	EncryptionMethod domain.EncryptionMethod
	AESStrength      int

	CompressionMethod string
	Compressed        bool

	Flags             uint16
	CRC32             uint32
	DosTime           uint16
	DosDate           uint16
	CompressedSize    uint32
	UncompressedSize  uint32
	LocalHeaderOffset int64
}

var compressionNames = map[uint16]string{
	0:  "Stored",
	1:  "Shrunk",
	6:  "Imploded",
	8:  "Deflated",
	9:  "Deflate64",
	12: "BZIP2",
	14: "LZMA",
	93: "Zstandard",
	95: "XZ",
	98: "PPMd",
	99: "AES",
}

func compressionName(method uint16) string {
	if name, ok := compressionNames[method]; ok {
		return name
	}
	return "Unknown"
}

// ParseZip locates the EOCD record and walks the central directory without
// decompressing anything. Zip64 and split archives are rejected as
// unsupported.
func ParseZip(r io.ReaderAt, size int64) (*ZipArchive, error) {
	eocdOffset, eocd, err := findEOCD(r, size)
	if err != nil {
		return nil, err
	}

	diskNumber := binary.LittleEndian.Uint16(eocd[4:])
	diskWithCD := binary.LittleEndian.Uint16(eocd[6:])
	cdRecordsOnDisk := binary.LittleEndian.Uint16(eocd[8:])
	cdRecords := binary.LittleEndian.Uint16(eocd[10:])
	cdSize := binary.LittleEndian.Uint32(eocd[12:])
	cdOffset := binary.LittleEndian.Uint32(eocd[16:])
	commentLen := binary.LittleEndian.Uint16(eocd[20:])

	if cdRecordsOnDisk != cdRecords {
		return nil, errors.Wrap(domain.ErrUnsupported, "zip: split archives are not supported")
	}
	if diskNumber == 0xFFFF || diskWithCD == 0xFFFF || cdRecordsOnDisk == 0xFFFF ||
		cdRecords == 0xFFFF || cdSize == 0xFFFFFFFF || cdOffset == 0xFFFFFFFF {
		return nil, errors.Wrap(domain.ErrUnsupported, "zip: Zip64 is not supported")
	}

	archive := &ZipArchive{
		CDRecords:  int(cdRecords),
		CDOffset:   int64(cdOffset),
		EOCDOffset: eocdOffset,
	}

	if commentLen > 0 {
		comment := make([]byte, commentLen)
		if _, err := r.ReadAt(comment, eocdOffset+eocdMinLen); err != nil {
			return nil, errors.Wrap(domain.ErrMalformed, "zip: truncated archive comment")
		}
		archive.Comment = string(comment)
	}

	cd := make([]byte, cdSize)
	if _, err := r.ReadAt(cd, archive.CDOffset); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "zip: truncated central directory")
	}

	offset := 0
	for i := 0; i < archive.CDRecords; i++ {
		entry, next, err := parseCDRecord(cd, offset)
		if err != nil {
			return nil, err
		}
		if entry.Encrypted {
			archive.Encrypted = true
			archive.EncryptionMethod = entry.EncryptionMethod
		}
		archive.Entries = append(archive.Entries, *entry)
		offset = next
	}

	return archive, nil
}

func findEOCD(r io.ReaderAt, size int64) (int64, []byte, error) {
	if size < eocdMinLen {
		return 0, nil, errors.Wrap(domain.ErrMalformed, "zip: file smaller than EOCD record")
	}

	tailLen := int64(eocdMinLen + maxCommentLen)
	if tailLen > size {
		tailLen = size
	}
	tail := make([]byte, tailLen)
	tailStart := size - tailLen
	if _, err := r.ReadAt(tail, tailStart); err != nil {
		return 0, nil, errors.Wrap(domain.ErrIO, err.Error())
	}

	for off := tailLen - eocdMinLen; off >= 0; off-- {
		if binary.LittleEndian.Uint32(tail[off:]) == eocdSignature {
			return tailStart + off, tail[off : off+eocdMinLen], nil
		}
	}
	return 0, nil, errors.Wrap(domain.ErrMalformed, "zip: EOCD signature not found")
}

func parseCDRecord(cd []byte, offset int) (*ZipEntry, int, error) {
	if offset+46 > len(cd) {
		return nil, 0, errors.Wrap(domain.ErrMalformed, "zip: truncated central directory record")
	}
	if binary.LittleEndian.Uint32(cd[offset:]) != cdSignature {
		return nil, 0, errors.Wrap(domain.ErrMalformed, "zip: central directory signature not found")
	}

	entry := &ZipEntry{
		Flags:             binary.LittleEndian.Uint16(cd[offset+8:]),
		DosTime:           binary.LittleEndian.Uint16(cd[offset+12:]),
		DosDate:           binary.LittleEndian.Uint16(cd[offset+14:]),
		CRC32:             binary.LittleEndian.Uint32(cd[offset+16:]),
		CompressedSize:    binary.LittleEndian.Uint32(cd[offset+20:]),
		UncompressedSize:  binary.LittleEndian.Uint32(cd[offset+24:]),
		LocalHeaderOffset: int64(binary.LittleEndian.Uint32(cd[offset+42:])),
	}
	method := binary.LittleEndian.Uint16(cd[offset+10:])
	nameLen := int(binary.LittleEndian.Uint16(cd[offset+28:]))
	extraLen := int(binary.LittleEndian.Uint16(cd[offset+30:]))
	commentLen := int(binary.LittleEndian.Uint16(cd[offset+32:]))

	next := offset + 46 + nameLen + extraLen + commentLen
	if next > len(cd) {
		return nil, 0, errors.Wrap(domain.ErrMalformed, "zip: central directory record overruns directory")
	}
	name := string(cd[offset+46 : offset+46+nameLen])
	extra := cd[offset+46+nameLen : offset+46+nameLen+extraLen]

	entry.Encrypted = entry.Flags&0x0001 != 0
	switch {
	case entry.Encrypted && entry.Flags&0x0040 != 0:
		entry.EncryptionMethod = domain.EncStrong
	case entry.Encrypted && method == aesMethod:
		entry.EncryptionMethod = domain.EncUnknown
		if strength, realMethod, ok := parseAESExtra(extra); ok {
			entry.AESStrength = strength
			method = realMethod
			switch strength {
			case 128:
				entry.EncryptionMethod = domain.EncAES128
			case 192:
				entry.EncryptionMethod = domain.EncAES192
			case 256:
				entry.EncryptionMethod = domain.EncAES256
			}
		}
	case entry.Encrypted:
		entry.EncryptionMethod = domain.EncZipCrypto
	}

	entry.CompressionMethod = compressionName(method)
	entry.Compressed = method != 0

	entry.RawName = name
	entry.Path = "/" + name
	entry.Directory = strings.HasSuffix(name, "/")
	parts := strings.Split(strings.TrimSuffix(name, "/"), "/")
	entry.Name = parts[len(parts)-1]
	if entry.Directory {
		entry.Name += "/"
	}

	return entry, next, nil
}

// parseAESExtra scans the extra field for the 0x9901 WinZip AES block and
// returns the key strength in bits plus the real compression method.
func parseAESExtra(extra []byte) (strength int, method uint16, ok bool) {
	offset := 0
	for offset+4 <= len(extra) {
		id := binary.LittleEndian.Uint16(extra[offset:])
		size := int(binary.LittleEndian.Uint16(extra[offset+2:]))
		if id != aesExtraHeaderID {
			offset += 4 + size
			continue
		}
		if offset+4+size > len(extra) || size < 7 {
			return 0, 0, false
		}
		switch extra[offset+8] {
		case 0x01:
			strength = 128
		case 0x02:
			strength = 192
		case 0x03:
			strength = 256
		default:
			return 0, 0, false
		}
		return strength, binary.LittleEndian.Uint16(extra[offset+9:]), true
	}
	return 0, 0, false
}

// CrackDescriptors reads the local headers of the crackable encrypted
// entries and builds one descriptor per entry. Strong-encryption entries
// yield metadata only and are skipped here.
func (a *ZipArchive) CrackDescriptors(r io.ReaderAt, archivePath string) ([]domain.Descriptor, error) {
	var descriptors []domain.Descriptor
	for _, entry := range a.Entries {
		switch entry.EncryptionMethod {
		case domain.EncZipCrypto:
			desc, err := zipCryptoDescriptor(r, archivePath, entry)
			if err != nil {
				return nil, err
			}
			descriptors = append(descriptors, desc)
		case domain.EncAES128, domain.EncAES192, domain.EncAES256:
			desc, err := zipAESDescriptor(r, archivePath, entry)
			if err != nil {
				return nil, err
			}
			descriptors = append(descriptors, desc)
		}
	}
	return descriptors, nil
}

func localDataOffset(r io.ReaderAt, entry ZipEntry) (int64, error) {
	header := make([]byte, 30)
	if _, err := r.ReadAt(header, entry.LocalHeaderOffset); err != nil {
		return 0, errors.Wrap(domain.ErrMalformed, "zip: truncated local header")
	}
	if binary.LittleEndian.Uint32(header) != localSignature {
		return 0, errors.Wrap(domain.ErrMalformed, "zip: local header signature not found")
	}
	nameLen := int64(binary.LittleEndian.Uint16(header[26:]))
	extraLen := int64(binary.LittleEndian.Uint16(header[28:]))
	return entry.LocalHeaderOffset + 30 + nameLen + extraLen, nil
}

func zipCryptoDescriptor(r io.ReaderAt, archivePath string, entry ZipEntry) (domain.Descriptor, error) {
	dataOffset, err := localDataOffset(r, entry)
	if err != nil {
		return nil, err
	}

	desc := domain.ZipCryptoDescriptor{
		ArchivePath:       archivePath,
		EntryPath:         entry.RawName,
		LocalHeaderOffset: entry.LocalHeaderOffset,
		Flags:             entry.Flags,
	}
	if _, err := r.ReadAt(desc.EncryptedHeader[:], dataOffset); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "zip: truncated encryption header")
	}

	// Bit 3 means the CRC lives in a trailing data descriptor; the check
	// byte is then the DOS-time high byte instead.
	if entry.Flags&0x0008 != 0 {
		desc.VerifyByte = byte(entry.DosTime >> 8)
		desc.VerifyFromDosTime = true
	} else {
		desc.VerifyByte = byte(entry.CRC32 >> 24)
	}
	return desc, nil
}

func zipAESDescriptor(r io.ReaderAt, archivePath string, entry ZipEntry) (domain.Descriptor, error) {
	dataOffset, err := localDataOffset(r, entry)
	if err != nil {
		return nil, err
	}

	desc := domain.ZipAESDescriptor{
		ArchivePath:       archivePath,
		EntryPath:         entry.RawName,
		LocalHeaderOffset: entry.LocalHeaderOffset,
		Strength:          entry.AESStrength,
		Salt:              make([]byte, entry.AESStrength/16),
	}
	if _, err := r.ReadAt(desc.Salt, dataOffset); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "zip: truncated AES salt")
	}
	if _, err := r.ReadAt(desc.PasswordVerifier[:], dataOffset+int64(len(desc.Salt))); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "zip: truncated AES password verifier")
	}
	return desc, nil
}
