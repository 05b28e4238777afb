package verifier

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"math/big"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

// Standard security handler, revision 6 (ISO 32000-2 Algorithms 2.B, 11
// and 12). Passwords are raw UTF-8 bytes; there is no padding step.

type PDFAES struct {
	desc domain.PDFAESDescriptor
}

func NewPDFAES(desc domain.PDFAESDescriptor) (*PDFAES, error) {
	if len(desc.OwnerKey) != 48 || len(desc.UserKey) != 48 {
		return nil, errors.Wrap(domain.ErrMalformed, "pdf: R6 O/U must be 48 bytes")
	}
	return &PDFAES{desc: desc}, nil
}

func (v *PDFAES) Verify(password string) (bool, error) {
	pwd := []byte(password)

	// Algorithm 11: user validation salt is U[32..40].
	input := make([]byte, 0, len(pwd)+8)
	input = append(input, pwd...)
	input = append(input, v.desc.UserKey[32:40]...)
	k, err := algorithm2B(input, pwd, nil)
	if err != nil {
		return false, err
	}
	if bytes.Equal(k, v.desc.UserKey[:32]) {
		return true, nil
	}

	// Algorithm 12: owner validation salt is O[32..40], with the full U
	// appended to both the initial input and every round.
	input = make([]byte, 0, len(pwd)+8+48)
	input = append(input, pwd...)
	input = append(input, v.desc.OwnerKey[32:40]...)
	input = append(input, v.desc.UserKey[:48]...)
	k, err = algorithm2B(input, pwd, v.desc.UserKey[:48])
	if err != nil {
		return false, err
	}
	return bytes.Equal(k, v.desc.OwnerKey[:32]), nil
}

func (v *PDFAES) Decrypt(password, destDir string) error {
	return errors.Wrap(domain.ErrUnsupported, "pdf: decrypt-and-export not implemented")
}

var three = big.NewInt(3)

// algorithm2B iterates AES-CBC over the repeated password/key block and
// picks the next hash from the SHA-2 family by the first 16 bytes of E
// taken as a big unsigned integer mod 3. It terminates once at least 64
// rounds ran and the last byte of E is no greater than round-32.
func algorithm2B(input, password, userKey []byte) ([]byte, error) {
	sum := sha256.Sum256(input)
	k := sum[:]

	var e []byte
	for r := 0; r < 64 || int(e[len(e)-1]) > r-32; r++ {
		k0 := make([]byte, 0, len(password)+len(k)+len(userKey))
		k0 = append(k0, password...)
		k0 = append(k0, k...)
		k0 = append(k0, userKey...)
		k1 := bytes.Repeat(k0, 64)

		block, err := aes.NewCipher(k[:16])
		if err != nil {
			return nil, errors.Wrap(domain.ErrCrypto, err.Error())
		}
		e = make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)

		switch new(big.Int).Mod(new(big.Int).SetBytes(e[:16]), three).Int64() {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		case 2:
			s := sha512.Sum512(e)
			k = s[:]
		}
	}
	return k[:32], nil
}
