package parser

import (
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

// BitLocker volume GUID at offset 160, mixed endianness, without the final
// discriminator byte (0x00 = BitLocker, 0x01 = BitLocker To Go).
var bitlockerGUID = []byte{
	0x3B, 0xD6, 0x67, 0x49, 0x2E, 0x29, 0xD8, 0x4A,
	0x83, 0x99, 0xF6, 0xA3, 0x39, 0xE3, 0xD0,
}

const (
	bitlockerGUIDOffset      = 160
	fveMetadataOffsetField   = 176
	fveHeaderLen             = 64
	fveEncryptionMethodField = 36
	fveCreationTimeField     = 40
	fveEntriesSkip           = 48

	entryTypeKeyProtector = 0x0002
	entryTypeDescription  = 0x0007
	valueTypeKey          = 0x0008
	valueTypeUnicode      = 0x0002
)

var bitlockerMethods = map[uint16]string{
	0x8000: "AES-CBC 128-bit encryption with Elephant diffuser",
	0x8001: "AES-CBC 256-bit encryption with Elephant diffuser",
	0x8002: "AES-CBC 128-bit encryption",
	0x8003: "AES-CBC 256-bit encryption",
	0x8004: "AES-XTS 128-bit encryption",
	0x8005: "AES-XTS 256-bit encryption",
}

var bitlockerProtections = map[uint16]string{
	0x0000: "Clear key (unprotected)",
	0x0100: "TPM",
	0x0200: "Startup key",
	0x0500: "TPM + PIN",
	0x0800: "Recovery password",
	0x2000: "Password",
}

// IsBitlocker probes the volume GUID. The 16th byte distinguishes plain
// BitLocker from BitLocker To Go.
func IsBitlocker(r io.ReaderAt) (found, togo bool) {
	probe := make([]byte, 16)
	if _, err := r.ReadAt(probe, bitlockerGUIDOffset); err != nil {
		return false, false
	}
	if !bytes.Equal(probe[:15], bitlockerGUID) {
		return false, false
	}
	switch probe[15] {
	case 0x00:
		return true, false
	case 0x01:
		return true, true
	}
	return false, false
}

// ParseBitlocker reads the FVE metadata block of a BitLocker volume.
// Unrecognized metadata entries are skipped, never treated as errors.
func ParseBitlocker(r io.ReaderAt) (*domain.BitlockerInfo, error) {
	found, togo := IsBitlocker(r)
	if !found {
		return nil, errors.Wrap(domain.ErrMalformed, "bitlocker: volume GUID not found")
	}

	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, fveMetadataOffsetField); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "bitlocker: truncated volume header")
	}
	metadataOffset := int64(binary.LittleEndian.Uint64(buf))

	if _, err := r.ReadAt(buf[:4], metadataOffset+fveHeaderLen); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "bitlocker: FVE metadata header unreadable")
	}
	metadataSize := int(binary.LittleEndian.Uint32(buf[:4]))

	if _, err := r.ReadAt(buf[:4], metadataOffset+fveHeaderLen+fveEncryptionMethodField); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "bitlocker: FVE metadata header unreadable")
	}
	method := binary.LittleEndian.Uint32(buf[:4])

	if _, err := r.ReadAt(buf, metadataOffset+fveHeaderLen+fveCreationTimeField); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "bitlocker: FVE metadata header unreadable")
	}
	filetime := binary.LittleEndian.Uint64(buf)

	info := &domain.BitlockerInfo{
		ToGo:             togo,
		EncryptionMethod: bitlockerMethodName(method),
		CreationTime:     (int64(filetime) - 116444736000000000) / 10000000,
	}

	dataSize := metadataSize - fveEntriesSkip - fveHeaderLen
	if dataSize <= 0 {
		return info, nil
	}
	entries := make([]byte, dataSize)
	if _, err := r.ReadAt(entries, metadataOffset+fveEntriesSkip+fveHeaderLen); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "bitlocker: truncated FVE metadata entries")
	}
	parseFVEEntries(entries, info)
	return info, nil
}

func parseFVEEntries(entries []byte, info *domain.BitlockerInfo) {
	offset := 0
	for offset+8 <= len(entries) {
		size := int(binary.LittleEndian.Uint16(entries[offset:]))
		entryType := binary.LittleEndian.Uint16(entries[offset+2:])
		valueType := binary.LittleEndian.Uint16(entries[offset+4:])
		if size < 8 || offset+size > len(entries) {
			return
		}
		payload := entries[offset+8 : offset+size]

		switch {
		case entryType == entryTypeKeyProtector && valueType == valueTypeKey:
			if len(payload) >= 28 {
				protection := binary.LittleEndian.Uint16(payload[26:])
				info.KeyProtectors = append(info.KeyProtectors, domain.KeyProtector{
					GUID:       mixedEndianGUID(payload[:16]),
					Protection: bitlockerProtectionName(protection),
				})
			}
		case entryType == entryTypeDescription && valueType == valueTypeUnicode:
			info.Description += decodeUTF16LE(payload)
		}
		offset += size
	}
}

func bitlockerMethodName(method uint32) string {
	if name, ok := bitlockerMethods[uint16(method)]; ok {
		return name
	}
	return "Unknown"
}

func bitlockerProtectionName(protection uint16) string {
	if name, ok := bitlockerProtections[protection]; ok {
		return name
	}
	return "Unknown"
}

// mixedEndianGUID formats a Windows GUID: the first three groups are
// little-endian, the rest byte order as stored.
func mixedEndianGUID(b []byte) string {
	var reordered [16]byte
	reordered[0], reordered[1], reordered[2], reordered[3] = b[3], b[2], b[1], b[0]
	reordered[4], reordered[5] = b[5], b[4]
	reordered[6], reordered[7] = b[7], b[6]
	copy(reordered[8:], b[8:16])
	id, err := uuid.FromBytes(reordered[:])
	if err != nil {
		return ""
	}
	return id.String()
}

func decodeUTF16LE(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, binary.LittleEndian.Uint16(b[i:]))
	}
	return string(utf16.Decode(u))
}
