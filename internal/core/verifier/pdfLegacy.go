package verifier

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

// Standard security handler, revisions 2-4 (ISO 32000-1 Algorithms 2-7).

var pdfPad = [32]byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

type PDFLegacy struct {
	desc   domain.PDFLegacyDescriptor
	keyLen int
}

func NewPDFLegacy(desc domain.PDFLegacyDescriptor) (*PDFLegacy, error) {
	if desc.Revision < 2 || desc.Revision > 4 {
		return nil, errors.Wrapf(domain.ErrUnsupported, "pdf: revision %d", desc.Revision)
	}
	if len(desc.OwnerKey) != 32 || len(desc.UserKey) != 32 {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: O/U must be 32 bytes")
	}
	if len(desc.Permissions) != 4 {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: P must be 4 bytes")
	}

	keyLen := 5
	if desc.Revision >= 3 {
		keyLen = desc.KeyLengthBits / 8
	}
	if desc.KeyLengthBits%8 != 0 || keyLen < 5 || keyLen > 16 {
		return nil, errors.Wrapf(domain.ErrUnsupported, "pdf: key length %d bits", desc.KeyLengthBits)
	}
	return &PDFLegacy{desc: desc, keyLen: keyLen}, nil
}

// Verify accepts the candidate as either the user or the owner password.
func (v *PDFLegacy) Verify(password string) (bool, error) {
	if ok, err := v.verifyUser(v.preparePassword(password)); ok || err != nil {
		return ok, err
	}
	return v.verifyOwner(password)
}

func (v *PDFLegacy) Decrypt(password, destDir string) error {
	return errors.Wrap(domain.ErrUnsupported, "pdf: decrypt-and-export not implemented")
}

// preparePassword truncates to 32 ASCII bytes and right-pads shorter
// passwords from the standard padding string (Algorithm 2 step a).
func (v *PDFLegacy) preparePassword(password string) []byte {
	b := []byte(password)
	if len(b) > 32 {
		b = b[:32]
	}
	out := make([]byte, 32)
	copy(out, b)
	copy(out[len(b):], pdfPad[:32-len(b)])
	return out
}

// verifyUser computes the file encryption key (Algorithm 2) and the U value
// (Algorithm 4 for R=2, Algorithm 5 otherwise), then compares per
// Algorithm 6.
func (v *PDFLegacy) verifyUser(padded []byte) (bool, error) {
	h := md5.New()
	h.Write(padded)
	h.Write(v.desc.OwnerKey)
	h.Write(v.desc.Permissions)
	h.Write(v.desc.DocumentID)
	if v.desc.Revision >= 4 && !v.desc.MetadataEncrypted {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	digest := h.Sum(nil)

	if v.desc.Revision >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(digest[:v.keyLen])
			digest = sum[:]
		}
	}
	key := digest[:v.keyLen]

	if v.desc.Revision == 2 {
		computed, err := rc4Apply(key, pdfPad[:])
		if err != nil {
			return false, err
		}
		return bytes.Equal(computed, v.desc.UserKey), nil
	}

	h = md5.New()
	h.Write(pdfPad[:])
	h.Write(v.desc.DocumentID)
	computed, err := rc4Apply(key, h.Sum(nil))
	if err != nil {
		return false, err
	}
	roundKey := make([]byte, v.keyLen)
	for i := 1; i <= 19; i++ {
		for j := range roundKey {
			roundKey[j] = key[j] ^ byte(i)
		}
		if computed, err = rc4Apply(roundKey, computed); err != nil {
			return false, err
		}
	}
	return bytes.Equal(computed, v.desc.UserKey[:16]), nil
}

// verifyOwner recovers the user password from O (Algorithm 7) and feeds it
// through the user check.
func (v *PDFLegacy) verifyOwner(password string) (bool, error) {
	sum := md5.Sum(v.preparePassword(password))
	digest := sum[:]
	if v.desc.Revision >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(digest)
			digest = sum[:]
		}
	}
	key := digest[:v.keyLen]

	var userPassword []byte
	var err error
	if v.desc.Revision == 2 {
		if userPassword, err = rc4Apply(key, v.desc.OwnerKey); err != nil {
			return false, err
		}
	} else {
		userPassword = v.desc.OwnerKey
		roundKey := make([]byte, v.keyLen)
		for i := 19; i >= 0; i-- {
			for j := range roundKey {
				roundKey[j] = key[j] ^ byte(i)
			}
			if userPassword, err = rc4Apply(roundKey, userPassword); err != nil {
				return false, err
			}
		}
	}
	return v.verifyUser(userPassword)
}

func rc4Apply(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(domain.ErrCrypto, err.Error())
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}
