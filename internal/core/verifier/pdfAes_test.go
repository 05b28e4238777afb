package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/core/domain"
)

// buildR6Descriptor derives U and O the way Algorithms 8 and 9 of ISO
// 32000-2 build them: hash(password + validation salt), with fixed salts so
// runs are reproducible.
func buildR6Descriptor(t *testing.T, userPwd, ownerPwd string) domain.PDFAESDescriptor {
	t.Helper()

	userValidationSalt := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	userKeySalt := []byte{0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00}
	ownerValidationSalt := []byte{0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6, 0x07, 0x18}
	ownerKeySalt := []byte{0x29, 0x3A, 0x4B, 0x5C, 0x6D, 0x7E, 0x8F, 0x90}

	user := []byte(userPwd)
	hash, err := algorithm2B(append(append([]byte(nil), user...), userValidationSalt...), user, nil)
	require.NoError(t, err)
	userKey := append(append(hash, userValidationSalt...), userKeySalt...)
	require.Len(t, userKey, 48)

	owner := []byte(ownerPwd)
	input := append(append([]byte(nil), owner...), ownerValidationSalt...)
	input = append(input, userKey...)
	hash, err = algorithm2B(input, owner, userKey)
	require.NoError(t, err)
	ownerKey := append(append(hash, ownerValidationSalt...), ownerKeySalt...)
	require.Len(t, ownerKey, 48)

	return domain.PDFAESDescriptor{
		Path:     "doc.pdf",
		OwnerKey: ownerKey,
		UserKey:  userKey,
	}
}

func TestPDFAES_UserPassword(t *testing.T) {
	desc := buildR6Descriptor(t, "hëllo-🌍", "owner-pass")
	v, err := NewPDFAES(desc)
	require.NoError(t, err)

	ok, err := v.Verify("hëllo-🌍")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("hëllo-🌎")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPDFAES_OwnerPassword(t *testing.T) {
	desc := buildR6Descriptor(t, "user-pass", "öwner-päss")
	v, err := NewPDFAES(desc)
	require.NoError(t, err)

	ok, err := v.Verify("öwner-päss")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("user-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("neither-pass")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Algorithm 2.B must run at least 64 rounds and stop on the E-last-byte
// condition; its output is always 32 bytes.
func TestAlgorithm2B_Termination(t *testing.T) {
	for _, pwd := range []string{"", "a", "hëllo-🌍", "a longer passphrase with spaces"} {
		p := []byte(pwd)
		salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		k, err := algorithm2B(append(append([]byte(nil), p...), salt...), p, nil)
		require.NoError(t, err)
		assert.Len(t, k, 32)

		// Deterministic for the same input.
		k2, err := algorithm2B(append(append([]byte(nil), p...), salt...), p, nil)
		require.NoError(t, err)
		assert.Equal(t, k, k2)
	}
}

func TestNewPDFAES_Invalid(t *testing.T) {
	_, err := NewPDFAES(domain.PDFAESDescriptor{OwnerKey: make([]byte, 32), UserKey: make([]byte, 48)})
	assert.ErrorIs(t, err, domain.ErrMalformed)
}
