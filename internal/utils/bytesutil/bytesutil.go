package bytesutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ToHexString formats bytes as "0x"-prefixed lowercase hex.
func ToHexString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("0x")
	for _, v := range b {
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// HexStringToBytes parses a hex string, case-insensitive, with an optional
// "0x" prefix.
func HexStringToBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 != 0 {
		return nil, errors.Errorf("hex string has odd length %d", len(s))
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		v, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid hex at offset %d", i)
		}
		out[i/2] = byte(v)
	}
	return out, nil
}

// ToBinString formats a 32-bit value as 32 binary digits, MSB first.
func ToBinString(v uint32) string {
	return fmt.Sprintf("%032b", v)
}

// ToBinString16 formats a 16-bit value as 16 binary digits, MSB first.
func ToBinString16(v uint16) string {
	return fmt.Sprintf("%016b", v)
}

// BinStringToBytes parses a binary string (optional "0b" prefix, length a
// multiple of 8) into bytes, least significant byte first.
func BinStringToBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B") {
		s = s[2:]
	}
	if len(s)%8 != 0 {
		return nil, errors.Errorf("binary string length %d is not a multiple of 8", len(s))
	}
	out := make([]byte, len(s)/8)
	for i := 0; i < len(s); i += 8 {
		v, err := strconv.ParseUint(s[i:i+8], 2, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid binary at offset %d", i)
		}
		out[len(out)-1-i/8] = byte(v)
	}
	return out, nil
}

// EncodeDosTime packs hour/minute/second into MS-DOS time. Seconds are
// stored in two-second resolution; the low bit is dropped.
func EncodeDosTime(hour, min, sec int) uint16 {
	return uint16(hour)<<11 | uint16(min)<<5 | uint16(sec/2)
}

// DecodeDosTime unpacks MS-DOS time into hour/minute/second.
func DecodeDosTime(t uint16) (hour, min, sec int) {
	return int(t >> 11 & 0x1F), int(t >> 5 & 0x3F), int(t&0x1F) * 2
}

// EncodeDosDate packs year/month/day into MS-DOS date (years since 1980).
func EncodeDosDate(year, month, day int) uint16 {
	return uint16(year-1980)<<9 | uint16(month)<<5 | uint16(day)
}

// DecodeDosDate unpacks MS-DOS date into year/month/day.
func DecodeDosDate(d uint16) (year, month, day int) {
	return int(d>>9&0x7F) + 1980, int(d >> 5 & 0xF), int(d & 0x1F)
}

// FiletimeToUnix converts a Windows FILETIME (100ns intervals since
// 1601-01-01) to Unix epoch seconds.
func FiletimeToUnix(ft uint64) int64 {
	return (int64(ft) - 116444736000000000) / 10000000
}
