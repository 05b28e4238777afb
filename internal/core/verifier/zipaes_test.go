package verifier

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"

	"forge/internal/core/domain"
	"forge/internal/core/parser"
)

func zipAESFixture(t *testing.T, password string, method zip.EncryptionMethod) ([]byte, domain.ZipAESDescriptor) {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("plain entry"))
	require.NoError(t, err)

	w, err = zw.Encrypt("secret.txt", password, method)
	require.NoError(t, err)
	_, err = w.Write([]byte("protected payload, long enough to compress"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	archive, err := parser.ParseZip(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	descs, err := archive.CrackDescriptors(bytes.NewReader(data), "evidence.zip")
	require.NoError(t, err)
	require.Len(t, descs, 1)
	return data, descs[0].(domain.ZipAESDescriptor)
}

func TestZipAES_Verify(t *testing.T) {
	data, desc := zipAESFixture(t, "p@ssw0rd!", zip.AES256Encryption)

	v, err := NewZipAES(desc, data)
	require.NoError(t, err)

	ok, err := v.Verify("p@ssw0rd!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("p@ssw0rd")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestZipAES_AllStrengths(t *testing.T) {
	for _, method := range []zip.EncryptionMethod{zip.AES128Encryption, zip.AES192Encryption, zip.AES256Encryption} {
		data, desc := zipAESFixture(t, "correct horse", method)
		v, err := NewZipAES(desc, data)
		require.NoError(t, err)

		ok, err := v.Verify("correct horse")
		require.NoError(t, err)
		assert.True(t, ok, "strength %d", desc.Strength)

		ok, err = v.Verify("wrong horse")
		require.NoError(t, err)
		assert.False(t, ok, "strength %d", desc.Strength)
	}
}

func TestZipAES_OverlongPasswordIsCryptoError(t *testing.T) {
	data, desc := zipAESFixture(t, "pw", zip.AES256Encryption)
	v, err := NewZipAES(desc, data)
	require.NoError(t, err)

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	_, err = v.Verify(string(long))
	assert.ErrorIs(t, err, domain.ErrCrypto)
}

func TestNewZipAES_InvalidDescriptor(t *testing.T) {
	_, err := NewZipAES(domain.ZipAESDescriptor{Strength: 512, Salt: make([]byte, 16)}, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	_, err = NewZipAES(domain.ZipAESDescriptor{Strength: 256, Salt: make([]byte, 8)}, nil)
	assert.ErrorIs(t, err, domain.ErrMalformed)
}

func TestZipAES_Decrypt(t *testing.T) {
	data, desc := zipAESFixture(t, "exportpw", zip.AES256Encryption)
	v, err := NewZipAES(desc, data)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, v.Decrypt("exportpw", dir))
}
