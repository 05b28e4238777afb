package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"

	"forge/internal/core/domain"
	"forge/internal/pkg/testutil"
)

func buildAESArchive(t *testing.T, password string, method zip.EncryptionMethod) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, name := range []string{"readme.txt", "docs/notes.txt", "docs/", "data/a.bin", "data/b.bin"} {
		if name == "docs/" {
			_, err := zw.Create(name)
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("plain content of " + name))
		require.NoError(t, err)
	}

	w, err := zw.Encrypt("secret/payload.txt", password, method)
	require.NoError(t, err)
	_, err = w.Write([]byte("the confidential payload body, long enough to matter"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseZip_ClassifiesAES256(t *testing.T) {
	data := buildAESArchive(t, "p@ssw0rd!", zip.AES256Encryption)

	archive, err := ParseZip(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.True(t, archive.Encrypted)
	assert.Equal(t, 6, archive.CDRecords)
	assert.Len(t, archive.Entries, 6)

	var encrypted *ZipEntry
	for i := range archive.Entries {
		if archive.Entries[i].Encrypted {
			require.Nil(t, encrypted, "exactly one entry should be encrypted")
			encrypted = &archive.Entries[i]
		}
	}
	require.NotNil(t, encrypted)
	assert.Equal(t, domain.EncAES256, encrypted.EncryptionMethod)
	assert.Equal(t, 256, encrypted.AESStrength)
	assert.Equal(t, "/secret/payload.txt", encrypted.Path)
	assert.Equal(t, "payload.txt", encrypted.Name)

	descs, err := archive.CrackDescriptors(bytes.NewReader(data), "evidence.zip")
	require.NoError(t, err)
	require.Len(t, descs, 1)

	desc, ok := descs[0].(domain.ZipAESDescriptor)
	require.True(t, ok)
	assert.Equal(t, 256, desc.Strength)
	assert.Len(t, desc.Salt, 16)
	assert.Equal(t, "secret/payload.txt", desc.EntryPath)
}

func TestParseZip_AESStrengths(t *testing.T) {
	tests := []struct {
		method zip.EncryptionMethod
		want   domain.EncryptionMethod
		salt   int
	}{
		{zip.AES128Encryption, domain.EncAES128, 8},
		{zip.AES192Encryption, domain.EncAES192, 12},
		{zip.AES256Encryption, domain.EncAES256, 16},
	}
	for _, tt := range tests {
		data := buildAESArchive(t, "pw", tt.method)
		archive, err := ParseZip(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, tt.want, archive.EncryptionMethod)

		descs, err := archive.CrackDescriptors(bytes.NewReader(data), "a.zip")
		require.NoError(t, err)
		require.Len(t, descs, 1)
		assert.Len(t, descs[0].(domain.ZipAESDescriptor).Salt, tt.salt)
	}
}

func TestParseZip_ZipCrypto(t *testing.T) {
	data := testutil.BuildZipCryptoArchive([]testutil.ZipCryptoEntry{
		{Name: "a.txt", Content: []byte("first file body"), Password: "hunter2"},
		{Name: "b.txt", Content: []byte("second file body"), Password: "hunter2", Streamed: true},
		{Name: "plain.txt", Content: []byte("not encrypted"), Plain: true},
	})

	archive, err := ParseZip(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.True(t, archive.Encrypted)
	assert.Equal(t, domain.EncZipCrypto, archive.Entries[0].EncryptionMethod)
	assert.False(t, archive.Entries[2].Encrypted)

	descs, err := archive.CrackDescriptors(bytes.NewReader(data), "evidence.zip")
	require.NoError(t, err)
	require.Len(t, descs, 2)

	first := descs[0].(domain.ZipCryptoDescriptor)
	assert.False(t, first.VerifyFromDosTime)
	assert.Equal(t, byte(archive.Entries[0].CRC32>>24), first.VerifyByte)

	second := descs[1].(domain.ZipCryptoDescriptor)
	assert.True(t, second.VerifyFromDosTime)
	assert.Equal(t, byte(testutil.DosTime()>>8), second.VerifyByte)
}

func TestParseZip_Malformed(t *testing.T) {
	_, err := ParseZip(bytes.NewReader([]byte("not a zip file at all, no signature")), 35)
	assert.ErrorIs(t, err, domain.ErrMalformed)

	_, err = ParseZip(bytes.NewReader([]byte{0x50}), 1)
	assert.ErrorIs(t, err, domain.ErrMalformed)
}

func TestParseZip_Zip64Rejected(t *testing.T) {
	data := testutil.BuildZipCryptoArchive([]testutil.ZipCryptoEntry{
		{Name: "a.txt", Content: []byte("body"), Password: "x"},
	})
	// Poison both EOCD record-count fields with the Zip64 sentinel so the
	// split-archive check (on-disk != total) does not fire first.
	eocd := len(data) - 22
	data[eocd+8] = 0xFF
	data[eocd+9] = 0xFF
	data[eocd+10] = 0xFF
	data[eocd+11] = 0xFF

	_, err := ParseZip(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestParseZip_SplitArchiveRejected(t *testing.T) {
	data := testutil.BuildZipCryptoArchive([]testutil.ZipCryptoEntry{
		{Name: "a.txt", Content: []byte("body"), Password: "x"},
	})
	eocd := len(data) - 22
	// Records-on-this-disk differs from total records.
	data[eocd+8] = 0
	data[eocd+9] = 0

	_, err := ParseZip(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestParseZip_ArchiveComment(t *testing.T) {
	data := testutil.BuildZipCryptoArchive([]testutil.ZipCryptoEntry{
		{Name: "a.txt", Content: []byte("body"), Password: "x"},
	})
	comment := "archived by forge tests"
	data[len(data)-2] = byte(len(comment))
	data = append(data, comment...)

	archive, err := ParseZip(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, comment, archive.Comment)
}
