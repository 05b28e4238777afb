package verifier

import (
	"bytes"
	"crypto/sha1"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"

	"forge/internal/core/domain"
)

// WinZip AE-1/AE-2: PBKDF2-HMAC-SHA1 at 1000 iterations per Dr. Gladman's
// derivation; the 2 trailing derived bytes are the password verification
// value stored next to the salt.
const zipAESIterations = 1000

type ZipAES struct {
	desc    domain.ZipAESDescriptor
	archive []byte
	keyLen  int
}

func NewZipAES(desc domain.ZipAESDescriptor, archive []byte) (*ZipAES, error) {
	switch desc.Strength {
	case 128, 192, 256:
	default:
		return nil, errors.Wrapf(domain.ErrUnsupported, "zip-aes: strength %d", desc.Strength)
	}
	if len(desc.Salt) != desc.Strength/16 {
		return nil, errors.Wrapf(domain.ErrMalformed, "zip-aes: salt length %d for strength %d", len(desc.Salt), desc.Strength)
	}
	return &ZipAES{
		desc:    desc,
		archive: archive,
		keyLen:  2*(desc.Strength/8) + 2,
	}, nil
}

// Verify derives the key material and compares the trailing 2 bytes with
// the stored verification value; matches are confirmed by library
// extraction like ZipCrypto.
func (v *ZipAES) Verify(password string) (bool, error) {
	if len(password) > 128 {
		return false, errors.Wrap(domain.ErrCrypto, "zip-aes: password longer than 128 characters")
	}

	derived := pbkdf2.Key([]byte(password), v.desc.Salt, zipAESIterations, v.keyLen, sha1.New)
	if !bytes.Equal(derived[v.keyLen-2:], v.desc.PasswordVerifier[:]) {
		return false, nil
	}
	return zipLibraryCheck(v.archive, v.desc.EntryPath, password), nil
}

func (v *ZipAES) Decrypt(password, destDir string) error {
	return zipExtract(v.archive, v.desc.EntryPath, password, destDir)
}
