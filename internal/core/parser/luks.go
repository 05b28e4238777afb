package parser

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"forge/internal/core/domain"
)

var luksMagic = []byte{0x4C, 0x55, 0x4B, 0x53} // "LUKS"

const (
	luks1CipherNameOffset = 8
	luks1CipherModeOffset = 40
	luks1HashOffset       = 72
	luks1KeyBytesOffset   = 108
	luks1UUIDOffset       = 168
	luks1SlotsOffset      = 208
	luks1SlotSize         = 48
	luks1SlotActive       = 0x00AC71F3

	luks2JSONSizeOffset = 8
	luks2JSONOffset     = 4096
)

// IsLuks probes for the LUKS magic at offset 0.
func IsLuks(r io.ReaderAt) bool {
	probe := make([]byte, 4)
	if _, err := r.ReadAt(probe, 0); err != nil {
		return false
	}
	return bytes.Equal(probe, luksMagic)
}

// ParseLuks reads a LUKS1 or LUKS2 header from the start of a volume.
func ParseLuks(r io.ReaderAt) (*domain.LuksInfo, error) {
	if !IsLuks(r) {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: signature not found")
	}

	buf := make([]byte, 2)
	if _, err := r.ReadAt(buf, 6); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: truncated header")
	}
	version := int(binary.BigEndian.Uint16(buf))

	switch version {
	case 1:
		return parseLuks1(r)
	case 2:
		return parseLuks2(r)
	}
	return nil, errors.Wrapf(domain.ErrUnsupported, "luks: version %d", version)
}

func parseLuks1(r io.ReaderAt) (*domain.LuksInfo, error) {
	readString := func(offset int64, length int) (string, error) {
		buf := make([]byte, length)
		if _, err := r.ReadAt(buf, offset); err != nil {
			return "", errors.Wrap(domain.ErrMalformed, "luks: truncated v1 header")
		}
		return strings.TrimRight(string(buf), "\x00 "), nil
	}

	info := &domain.LuksInfo{Version: 1}
	var err error
	if info.Cipher, err = readString(luks1CipherNameOffset, 32); err != nil {
		return nil, err
	}
	if info.Mode, err = readString(luks1CipherModeOffset, 32); err != nil {
		return nil, err
	}
	if info.Hash, err = readString(luks1HashOffset, 32); err != nil {
		return nil, err
	}
	if info.GUID, err = readString(luks1UUIDOffset, 40); err != nil {
		return nil, err
	}

	buf := make([]byte, 4)
	if _, err := r.ReadAt(buf, luks1KeyBytesOffset); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: truncated v1 header")
	}
	info.KeySizeBits = int(binary.BigEndian.Uint32(buf)) * 8

	for slot := 0; slot < 8; slot++ {
		if _, err := r.ReadAt(buf, luks1SlotsOffset+int64(slot)*luks1SlotSize); err != nil {
			return nil, errors.Wrap(domain.ErrMalformed, "luks: truncated key slot table")
		}
		if binary.BigEndian.Uint32(buf) == luks1SlotActive {
			info.ActiveSlots = append(info.ActiveSlots, slot)
		}
	}
	return info, nil
}

func parseLuks2(r io.ReaderAt) (*domain.LuksInfo, error) {
	info := &domain.LuksInfo{Version: 2}

	uuidBuf := make([]byte, 40)
	if _, err := r.ReadAt(uuidBuf, luks1UUIDOffset); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: truncated v2 header")
	}
	info.GUID = strings.TrimRight(string(uuidBuf), "\x00 ")

	sizeBuf := make([]byte, 8)
	if _, err := r.ReadAt(sizeBuf, luks2JSONSizeOffset); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: truncated v2 header")
	}
	jsonSize := binary.BigEndian.Uint64(sizeBuf)
	if jsonSize == 0 || jsonSize > 16*1024*1024 {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: JSON area size out of range")
	}

	jsonBuf := make([]byte, jsonSize)
	n, err := r.ReadAt(jsonBuf, luks2JSONOffset)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: truncated JSON area")
	}
	jsonStr := strings.TrimRight(string(jsonBuf[:n]), "\x00")

	if !gjson.Valid(jsonStr) {
		return nil, errors.Wrap(domain.ErrMalformed, "luks: invalid JSON area")
	}

	gjson.Get(jsonStr, "keyslots").ForEach(func(key, value gjson.Result) bool {
		if slot, err := strconv.Atoi(key.String()); err == nil {
			info.ActiveSlots = append(info.ActiveSlots, slot)
		}
		if info.KeySizeBits == 0 {
			if keySize := value.Get("key_size"); keySize.Exists() {
				info.KeySizeBits = int(keySize.Int()) * 8
			}
		}
		return true
	})
	sort.Ints(info.ActiveSlots)

	// Segment encryption reads "cipher-mode"; everything before the first
	// dash is the cipher, the rest the mode.
	gjson.Get(jsonStr, "segments").ForEach(func(_, value gjson.Result) bool {
		encryption := value.Get("encryption").String()
		if dash := strings.Index(encryption, "-"); dash >= 0 {
			info.Cipher = encryption[:dash]
			info.Mode = encryption[dash+1:]
		} else {
			info.Cipher = encryption
		}
		return false
	})

	gjson.Get(jsonStr, "digests").ForEach(func(_, value gjson.Result) bool {
		info.Hash = value.Get("hash").String()
		return false
	})

	return info, nil
}
