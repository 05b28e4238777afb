package verifier

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"
	"unicode/utf16"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

// MS-OFFCRYPTO password verification for ECMA-376 documents: standard
// (binary header, AES + SHA-1) and agile (XML descriptor) modes.

var (
	agileInputBlock = []byte{0xFE, 0xA7, 0xD2, 0x76, 0x3B, 0x4B, 0x9E, 0x79}
	agileValueBlock = []byte{0xD7, 0xAA, 0x0F, 0x6D, 0x30, 0x61, 0x34, 0x4E}
)

type Office struct {
	desc domain.OfficeDescriptor
}

func NewOffice(desc domain.OfficeDescriptor) (*Office, error) {
	switch desc.Mode {
	case domain.OfficeModeStandard, domain.OfficeModeAgile:
		return &Office{desc: desc}, nil
	}
	return nil, errors.Wrapf(domain.ErrUnsupported, "office: encryption mode %s", desc.Mode)
}

func (v *Office) Verify(password string) (bool, error) {
	if v.desc.Mode == domain.OfficeModeAgile {
		return v.verifyAgile(password)
	}
	return v.verifyStandard(password)
}

func (v *Office) Decrypt(password, destDir string) error {
	return errors.Wrap(domain.ErrUnsupported, "office: decrypt-and-export not implemented")
}

// verifyStandard derives the AES key per MS-OFFCRYPTO 2.3.4.7 and checks
// SHA1(verifier) against the decrypted verifier hash.
func (v *Office) verifyStandard(password string) (bool, error) {
	keyBytes := v.desc.KeyBits / 8
	if keyBytes < 16 || keyBytes > 32 {
		return false, errors.Wrapf(domain.ErrCrypto, "office: key size %d bits", v.desc.KeyBits)
	}

	h := sha1.Sum(append(append([]byte(nil), v.desc.Salt...), utf16LE(password)...))
	digest := h[:]
	iter := make([]byte, 4+sha1.Size)
	for i := 0; i < 50000; i++ {
		binary.LittleEndian.PutUint32(iter, uint32(i))
		copy(iter[4:], digest)
		h = sha1.Sum(iter)
		digest = h[:]
	}
	final := sha1.Sum(append(append([]byte(nil), digest...), 0, 0, 0, 0))

	key := deriveCryptoAPIKey(final[:], keyBytes)

	block, err := aes.NewCipher(key)
	if err != nil {
		return false, errors.Wrap(domain.ErrCrypto, err.Error())
	}
	verifier := ecbDecrypt(block, v.desc.EncryptedVerifier)
	verifierHash := ecbDecrypt(block, v.desc.EncryptedVerifierHash)

	computed := sha1.Sum(verifier)
	return bytes.Equal(computed[:], verifierHash[:sha1.Size]), nil
}

// deriveCryptoAPIKey is the X1/X2 ipad/opad-style expansion of the final
// hash (MS-OFFCRYPTO 2.3.4.7 step 4).
func deriveCryptoAPIKey(final []byte, keyBytes int) []byte {
	fill := func(pad byte) []byte {
		buf := bytes.Repeat([]byte{pad}, 64)
		for i, b := range final {
			buf[i] ^= b
		}
		sum := sha1.Sum(buf)
		return sum[:]
	}
	key := fill(0x36)
	if keyBytes > len(key) {
		key = append(key, fill(0x5C)...)
	}
	return key[:keyBytes]
}

// verifyAgile runs the spin-count hash chain and the two block-key AES-CBC
// decryptions per MS-OFFCRYPTO 2.3.4.13.
func (v *Office) verifyAgile(password string) (bool, error) {
	newHash, hashSize, err := agileHash(v.desc.AgileHashAlgorithm)
	if err != nil {
		return false, err
	}
	keyBytes := v.desc.AgileKeyBits / 8
	if keyBytes < 16 || keyBytes > 32 {
		return false, errors.Wrapf(domain.ErrCrypto, "office: agile key size %d bits", v.desc.AgileKeyBits)
	}

	h := newHash()
	h.Write(v.desc.Salt)
	h.Write(utf16LE(password))
	digest := h.Sum(nil)

	iter := make([]byte, 4)
	for i := 0; i < v.desc.SpinCount; i++ {
		binary.LittleEndian.PutUint32(iter, uint32(i))
		h.Reset()
		h.Write(iter)
		h.Write(digest)
		digest = h.Sum(digest[:0])
	}

	blockKey := func(block []byte) []byte {
		h.Reset()
		h.Write(digest)
		h.Write(block)
		key := h.Sum(nil)
		for len(key) < keyBytes {
			key = append(key, 0x36)
		}
		return key[:keyBytes]
	}
	iv := make([]byte, aes.BlockSize)
	copy(iv, v.desc.Salt)

	input, err := aesCBCDecrypt(blockKey(agileInputBlock), iv, v.desc.VerifierHashInputEnc)
	if err != nil {
		return false, err
	}
	value, err := aesCBCDecrypt(blockKey(agileValueBlock), iv, v.desc.VerifierHashValueEnc)
	if err != nil {
		return false, err
	}

	h.Reset()
	h.Write(input)
	expected := h.Sum(nil)
	if len(value) < hashSize {
		return false, errors.Wrap(domain.ErrMalformed, "office: verifier hash value too short")
	}
	return bytes.Equal(expected, value[:hashSize]), nil
}

func agileHash(name string) (func() hash.Hash, int, error) {
	switch name {
	case "SHA1", "SHA-1", "":
		return sha1.New, sha1.Size, nil
	case "SHA256", "SHA-256":
		return sha256.New, sha256.Size, nil
	case "SHA384", "SHA-384":
		return sha512.New384, sha512.Size384, nil
	case "SHA512", "SHA-512":
		return sha512.New, sha512.Size, nil
	}
	return nil, 0, errors.Wrapf(domain.ErrUnsupported, "office: hash algorithm %s", name)
}

func aesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(domain.ErrCrypto, err.Error())
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.Wrap(domain.ErrMalformed, "office: ciphertext not block-aligned")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func ecbDecrypt(block cipher.Block, data []byte) []byte {
	out := make([]byte, len(data))
	for i := 0; i+block.BlockSize() <= len(data); i += block.BlockSize() {
		block.Decrypt(out[i:], data[i:])
	}
	return out
}

func utf16LE(s string) []byte {
	u := utf16.Encode([]rune(s))
	out := make([]byte, len(u)*2)
	for i, c := range u {
		binary.LittleEndian.PutUint16(out[i*2:], c)
	}
	return out
}
