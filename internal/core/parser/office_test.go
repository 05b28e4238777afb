package parser

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/core/domain"
)

func buildStandardEncryptionInfo(algID uint32, keyBits int) []byte {
	le := binary.LittleEndian
	var buf bytes.Buffer

	version := make([]byte, 4)
	le.PutUint16(version, 4)
	le.PutUint16(version[2:], 2)
	buf.Write(version)

	flags := make([]byte, 4)
	le.PutUint32(flags, 0x24) // fCryptoAPI | fAES
	buf.Write(flags)

	header := make([]byte, 32)
	le.PutUint32(header[0:], 0x24)
	le.PutUint32(header[8:], algID)
	le.PutUint32(header[12:], 0x8004) // SHA-1
	le.PutUint32(header[16:], uint32(keyBits))
	le.PutUint32(header[20:], 0x18) // AES provider
	headerSize := make([]byte, 4)
	le.PutUint32(headerSize, uint32(len(header)))
	buf.Write(headerSize)
	buf.Write(header)

	saltSize := make([]byte, 4)
	le.PutUint32(saltSize, 16)
	buf.Write(saltSize)
	buf.Write(bytes.Repeat([]byte{0xAB}, 16)) // salt
	buf.Write(bytes.Repeat([]byte{0xCD}, 16)) // encrypted verifier
	hashSize := make([]byte, 4)
	le.PutUint32(hashSize, 20)
	buf.Write(hashSize)
	buf.Write(bytes.Repeat([]byte{0xEF}, 32)) // encrypted verifier hash

	return buf.Bytes()
}

func TestParseEncryptionInfo_Standard(t *testing.T) {
	data := buildStandardEncryptionInfo(0x660E, 128)

	desc, err := parseEncryptionInfo(data, "protected.docx")
	require.NoError(t, err)

	assert.Equal(t, domain.OfficeModeStandard, desc.Mode)
	assert.Equal(t, "AES128", desc.CipherAlgorithm)
	assert.Equal(t, "SHA1", desc.HashAlgorithm)
	assert.Equal(t, 128, desc.KeyBits)
	assert.Len(t, desc.Salt, 16)
	assert.Len(t, desc.EncryptedVerifier, 16)
	assert.Len(t, desc.EncryptedVerifierHash, 32)
	assert.Equal(t, 20, desc.VerifierHashSize)
}

func TestParseEncryptionInfo_StandardAES256(t *testing.T) {
	desc, err := parseEncryptionInfo(buildStandardEncryptionInfo(0x6610, 256), "x.docx")
	require.NoError(t, err)
	assert.Equal(t, "AES256", desc.CipherAlgorithm)
	assert.Equal(t, 256, desc.KeyBits)
}

func TestParseEncryptionInfo_Agile(t *testing.T) {
	salt := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x11}, 16))
	input := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x22}, 16))
	value := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x33}, 64))

	xmlBody := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<encryption xmlns="http://schemas.microsoft.com/office/2006/encryption" xmlns:p="http://schemas.microsoft.com/office/2006/keyEncryptor/password">
  <keyData saltSize="16" blockSize="16" keyBits="256" hashSize="64" cipherAlgorithm="AES" cipherChaining="ChainingModeCBC" hashAlgorithm="SHA512" saltValue="%s"/>
  <keyEncryptors>
    <keyEncryptor uri="http://schemas.microsoft.com/office/2006/keyEncryptor/password">
      <p:encryptedKey spinCount="100000" saltSize="16" blockSize="16" keyBits="256" hashSize="64" cipherAlgorithm="AES" cipherChaining="ChainingModeCBC" hashAlgorithm="SHA512" saltValue="%s" encryptedVerifierHashInput="%s" encryptedVerifierHashValue="%s" encryptedKeyValue="%s"/>
    </keyEncryptor>
  </keyEncryptors>
</encryption>`, salt, salt, input, value, input)

	data := make([]byte, 8, 8+len(xmlBody))
	binary.LittleEndian.PutUint16(data, 4)
	binary.LittleEndian.PutUint16(data[2:], 4)
	binary.LittleEndian.PutUint32(data[4:], 0x40)
	data = append(data, xmlBody...)

	desc, err := parseEncryptionInfo(data, "protected.xlsx")
	require.NoError(t, err)

	assert.Equal(t, domain.OfficeModeAgile, desc.Mode)
	assert.Equal(t, "AES", desc.CipherAlgorithm)
	assert.Equal(t, "SHA512", desc.HashAlgorithm)
	assert.Equal(t, 256, desc.KeyBits)
	assert.Equal(t, 100000, desc.SpinCount)
	assert.Equal(t, 256, desc.AgileKeyBits)
	assert.Equal(t, "SHA512", desc.AgileHashAlgorithm)
	assert.Len(t, desc.Salt, 16)
	assert.Len(t, desc.VerifierHashInputEnc, 16)
	assert.Len(t, desc.VerifierHashValueEnc, 64)
}

func TestParseEncryptionInfo_Extensible(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data, 4)
	binary.LittleEndian.PutUint16(data[2:], 3)
	_, err := parseEncryptionInfo(data, "x.docx")
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestParseEncryptionInfo_Truncated(t *testing.T) {
	_, err := parseEncryptionInfo([]byte{0x04, 0x00}, "x.docx")
	assert.ErrorIs(t, err, domain.ErrMalformed)
}
