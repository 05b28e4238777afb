package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
	"forge/internal/core/parser"
	"forge/internal/port"
	"forge/internal/utils/bytesutil"
)

// Inspect runs the format parsers against one object, records the
// extracted metadata as artifact attributes, and returns the crack
// descriptors for any encrypted content found. Volume formats (BitLocker,
// LUKS) yield metadata only.
func (s *CrackerService) Inspect(target port.FileID) ([]domain.Descriptor, error) {
	data, err := s.files.ReadAll(target)
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(data)

	switch {
	case parser.IsLuks(reader):
		info, err := parser.ParseLuks(reader)
		if err != nil {
			return nil, err
		}
		s.storeLuks(target, info)
		return nil, nil

	case isBitlockerVolume(reader):
		info, err := parser.ParseBitlocker(reader)
		if err != nil {
			return nil, err
		}
		s.storeBitlocker(target, info)
		return nil, nil

	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}):
		return s.inspectZip(target, data)

	case bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		return s.inspectOffice(target, data)

	case isPDF(data):
		return s.inspectPDF(target, data)
	}
	return nil, errors.Wrap(domain.ErrUnsupported, "no recognized container format")
}

func isBitlockerVolume(reader *bytes.Reader) bool {
	found, _ := parser.IsBitlocker(reader)
	return found
}

func isPDF(data []byte) bool {
	limit := len(data)
	if limit > 1024 {
		limit = 1024
	}
	return bytes.Contains(data[:limit], []byte("%PDF-"))
}

func (s *CrackerService) inspectZip(target port.FileID, data []byte) ([]domain.Descriptor, error) {
	reader := bytes.NewReader(data)
	archive, err := parser.ParseZip(reader, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if !archive.Encrypted {
		return nil, nil
	}

	s.putAttributes(target, map[string]any{
		domain.AttrZipArchiveEncMethod:  string(archive.EncryptionMethod),
		domain.AttrZipArchiveComment:    archive.Comment,
		domain.AttrZipArchiveCDRecords:  archive.CDRecords,
		domain.AttrZipArchiveCDOffset:   archive.CDOffset,
		domain.AttrZipArchiveEOCDOffset: archive.EOCDOffset,
	})
	for _, entry := range archive.Entries {
		if !entry.Encrypted {
			continue
		}
		hour, min, sec := bytesutil.DecodeDosTime(entry.DosTime)
		s.putAttributes(target, map[string]any{
			domain.AttrZipFileEncMethod + ":" + entry.Path:   string(entry.EncryptionMethod),
			domain.AttrZipFileGenPurpFlag + ":" + entry.Path: bytesutil.ToBinString16(entry.Flags),
			domain.AttrZipFileCRC32 + ":" + entry.Path:       bytesutil.ToHexString(crcBytes(entry.CRC32)),
			domain.AttrZipFileLastModTime + ":" + entry.Path: fmt.Sprintf("%02d:%02d:%02d", hour, min, sec),
		})
	}
	return archive.CrackDescriptors(reader, string(target))
}

func crcBytes(crc uint32) []byte {
	return []byte{byte(crc >> 24), byte(crc >> 16), byte(crc >> 8), byte(crc)}
}

func (s *CrackerService) inspectPDF(target port.FileID, data []byte) ([]domain.Descriptor, error) {
	enc, err := parser.ParsePDF(data)
	if err != nil {
		// Unencrypted PDFs carry no /Encrypt reference and land here too.
		if errors.Is(err, domain.ErrMalformed) {
			return nil, nil
		}
		if errors.Is(err, domain.ErrUnsupported) {
			s.notifier.Warn("Unsupported PDF encryption", err.Error())
			return nil, nil
		}
		return nil, err
	}

	attrs := map[string]any{
		domain.AttrPDFFilter:            enc.Filter,
		domain.AttrPDFVersion:           enc.Version,
		domain.AttrPDFLength:            enc.Length,
		domain.AttrPDFRevision:          enc.Revision,
		domain.AttrPDFOwnerKey:          bytesutil.ToHexString(enc.OwnerKey),
		domain.AttrPDFUserKey:           bytesutil.ToHexString(enc.UserKey),
		domain.AttrPDFPermissions:       bytesutil.ToBinString(uint32(enc.Permissions)),
		domain.AttrPDFMetadataEncrypted: boolToInt(enc.MetadataEncrypted),
		domain.AttrPDFID:                bytesutil.ToHexString(enc.DocumentID),
	}
	if enc.SubFilter != "" {
		attrs[domain.AttrPDFSubFilter] = enc.SubFilter
	}
	if len(enc.OwnerEncKey) > 0 {
		attrs[domain.AttrPDFOwnerEncKey] = bytesutil.ToHexString(enc.OwnerEncKey)
	}
	if len(enc.UserEncKey) > 0 {
		attrs[domain.AttrPDFUserEncKey] = bytesutil.ToHexString(enc.UserEncKey)
	}
	if len(enc.Perms) > 0 {
		attrs[domain.AttrPDFPerms] = bytesutil.ToHexString(enc.Perms)
	}
	if enc.CryptFilterMethod != "" {
		attrs[domain.AttrPDFCryptFilterMethod] = enc.CryptFilterMethod
	}
	s.putAttributes(target, attrs)

	desc, err := enc.CrackDescriptor(string(target))
	if err != nil {
		// Metadata extraction succeeded; the verifier is just disabled.
		if errors.Is(err, domain.ErrUnsupported) {
			s.notifier.Warn("Unsupported PDF encryption", err.Error())
			return nil, nil
		}
		return nil, err
	}
	return []domain.Descriptor{desc}, nil
}

func (s *CrackerService) inspectOffice(target port.FileID, data []byte) ([]domain.Descriptor, error) {
	desc, err := parser.ParseOffice(bytes.NewReader(data), string(target))
	if err != nil {
		if errors.Is(err, domain.ErrMalformed) {
			return nil, nil
		}
		return nil, err
	}
	s.putAttributes(target, map[string]any{
		domain.AttrOfficeMode:      string(desc.Mode),
		domain.AttrOfficeCipherAlg: desc.CipherAlgorithm,
		domain.AttrOfficeHashAlg:   desc.HashAlgorithm,
	})
	return []domain.Descriptor{*desc}, nil
}

func (s *CrackerService) storeBitlocker(target port.FileID, info *domain.BitlockerInfo) {
	keys, _ := json.Marshal(info.KeyProtectors)
	s.putAttributes(target, map[string]any{
		domain.AttrBitlockerEncMethod:   info.EncryptionMethod,
		domain.AttrBitlockerDescription: info.Description,
		domain.AttrBitlockerCreated:     info.CreationTime,
		domain.AttrBitlockerKeys:        string(keys),
	})
}

func (s *CrackerService) storeLuks(target port.FileID, info *domain.LuksInfo) {
	slots := ""
	for i, slot := range info.ActiveSlots {
		if i > 0 {
			slots += ", "
		}
		slots += fmt.Sprintf("%d", slot)
	}
	s.putAttributes(target, map[string]any{
		domain.AttrLuksVersion:    info.Version,
		domain.AttrLuksEncMethod:  info.Cipher,
		domain.AttrLuksEncMode:    info.Mode,
		domain.AttrLuksHashMethod: info.Hash,
		domain.AttrLuksKeySize:    info.KeySizeBits,
		domain.AttrLuksKeySlots:   slots,
		domain.AttrLuksGUID:       info.GUID,
	})
}

func (s *CrackerService) putAttributes(target port.FileID, attrs map[string]any) {
	for name, value := range attrs {
		if err := s.artifacts.PutAttribute(target, name, value); err != nil {
			s.notifier.Error("Error adding attribute to file", err.Error())
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
