package verifier

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/core/domain"
)

// buildStandardOfficeDescriptor encrypts a verifier/hash pair with the key
// the standard derivation produces for the given password.
func buildStandardOfficeDescriptor(t *testing.T, password string, keyBits int) domain.OfficeDescriptor {
	t.Helper()

	salt := []byte{0x10, 0x21, 0x32, 0x43, 0x54, 0x65, 0x76, 0x87, 0x98, 0xA9, 0xBA, 0xCB, 0xDC, 0xED, 0xFE, 0x0F}
	verifierValue := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	h := sha1.Sum(append(append([]byte(nil), salt...), utf16LE(password)...))
	digest := h[:]
	iter := make([]byte, 4+sha1.Size)
	for i := 0; i < 50000; i++ {
		binary.LittleEndian.PutUint32(iter, uint32(i))
		copy(iter[4:], digest)
		h = sha1.Sum(iter)
		digest = h[:]
	}
	final := sha1.Sum(append(append([]byte(nil), digest...), 0, 0, 0, 0))
	key := deriveCryptoAPIKey(final[:], keyBits/8)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	ecbEncrypt := func(plain []byte) []byte {
		out := make([]byte, len(plain))
		for i := 0; i < len(plain); i += block.BlockSize() {
			block.Encrypt(out[i:], plain[i:])
		}
		return out
	}

	verifierHash := sha1.Sum(verifierValue)
	paddedHash := make([]byte, 32)
	copy(paddedHash, verifierHash[:])

	return domain.OfficeDescriptor{
		Path:                  "protected.docx",
		Mode:                  domain.OfficeModeStandard,
		CipherAlgorithm:       "AES128",
		HashAlgorithm:         "SHA1",
		KeyBits:               keyBits,
		Salt:                  salt,
		EncryptedVerifier:     ecbEncrypt(verifierValue),
		EncryptedVerifierHash: ecbEncrypt(paddedHash),
		VerifierHashSize:      sha1.Size,
	}
}

// buildAgileOfficeDescriptor mirrors the agile writer: spin-count chain,
// block-key derivation, AES-CBC with the salt as IV.
func buildAgileOfficeDescriptor(t *testing.T, password string, spinCount int) domain.OfficeDescriptor {
	t.Helper()

	salt := []byte{0xF0, 0xE1, 0xD2, 0xC3, 0xB4, 0xA5, 0x96, 0x87, 0x78, 0x69, 0x5A, 0x4B, 0x3C, 0x2D, 0x1E, 0x0F}
	verifierInput := []byte{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	keyBytes := 32

	h := sha512.New()
	h.Write(salt)
	h.Write(utf16LE(password))
	digest := h.Sum(nil)
	iter := make([]byte, 4)
	for i := 0; i < spinCount; i++ {
		binary.LittleEndian.PutUint32(iter, uint32(i))
		h.Reset()
		h.Write(iter)
		h.Write(digest)
		digest = h.Sum(digest[:0])
	}

	blockKey := func(blockValue []byte) []byte {
		h.Reset()
		h.Write(digest)
		h.Write(blockValue)
		key := h.Sum(nil)
		return key[:keyBytes]
	}

	cbcEncrypt := func(key, plain []byte) []byte {
		block, err := aes.NewCipher(key)
		require.NoError(t, err)
		iv := make([]byte, aes.BlockSize)
		copy(iv, salt)
		out := make([]byte, len(plain))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
		return out
	}

	h.Reset()
	h.Write(verifierInput)
	inputHash := h.Sum(nil) // 64 bytes, block aligned

	return domain.OfficeDescriptor{
		Path:                 "protected.xlsx",
		Mode:                 domain.OfficeModeAgile,
		CipherAlgorithm:      "AES",
		HashAlgorithm:        "SHA512",
		KeyBits:              256,
		Salt:                 salt,
		SpinCount:            spinCount,
		AgileKeyBits:         256,
		AgileHashAlgorithm:   "SHA512",
		VerifierHashInputEnc: cbcEncrypt(blockKey(agileInputBlock), verifierInput),
		VerifierHashValueEnc: cbcEncrypt(blockKey(agileValueBlock), inputHash),
	}
}

func TestOffice_StandardVerify(t *testing.T) {
	for _, keyBits := range []int{128, 256} {
		desc := buildStandardOfficeDescriptor(t, "Tr0ub4dor&3", keyBits)
		v, err := NewOffice(desc)
		require.NoError(t, err)

		ok, err := v.Verify("Tr0ub4dor&3")
		require.NoError(t, err)
		assert.True(t, ok, "key bits %d", keyBits)

		ok, err = v.Verify("Tr0ub4dor&4")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestOffice_AgileVerify(t *testing.T) {
	desc := buildAgileOfficeDescriptor(t, "VelvetSweatshop", 100000)
	v, err := NewOffice(desc)
	require.NoError(t, err)

	ok, err := v.Verify("VelvetSweatshop")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("velvetsweatshop")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewOffice_UnsupportedMode(t *testing.T) {
	_, err := NewOffice(domain.OfficeDescriptor{Mode: domain.OfficeModeBinaryRC4})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}
