package harvest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrings_ASCIIFallback(t *testing.T) {
	data := []byte("short\x00\x01longenoughword\x02\xffsecond-candidate\x00ab\x00")
	lines, err := Strings(data, "application/octet-stream", "bin")
	require.NoError(t, err)

	assert.Contains(t, lines, "longenoughword")
	assert.Contains(t, lines, "second-candidate")
	assert.Contains(t, lines, "short")
	assert.NotContains(t, lines, "ab")
}

func TestStrings_NoStringsFound(t *testing.T) {
	_, err := Strings([]byte{0x00, 0x01, 0x02, 0xFF}, "application/octet-stream", "bin")
	assert.Error(t, err)
}

func buildOOXML(t *testing.T, member, xml string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create(member)
	require.NoError(t, err)
	_, err = w.Write([]byte(xml))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestStrings_Docx(t *testing.T) {
	xml := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>my secret note</w:t></w:r></w:p>
    <w:p><w:r><w:t>hunter2</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildOOXML(t, "word/document.xml", xml)

	lines, err := Strings(data, "", "docx")
	require.NoError(t, err)
	assert.Contains(t, lines, "my secret note")
	assert.Contains(t, lines, "hunter2")
}

func TestStrings_Xlsx(t *testing.T) {
	xml := `<?xml version="1.0"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2">
  <si><t>password-cell</t></si>
  <si><t>plain cell value</t></si>
</sst>`
	data := buildOOXML(t, "xl/sharedStrings.xml", xml)

	lines, err := Strings(data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx")
	require.NoError(t, err)
	assert.Contains(t, lines, "password-cell")
	assert.Contains(t, lines, "plain cell value")
}

func TestStrings_PDFLiterals(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Title (annual report) >>\nBT (the body text) Tj ET\n")
	lines, err := Strings(pdf, "application/pdf", "pdf")
	require.NoError(t, err)
	assert.Contains(t, lines, "annual report")
	assert.Contains(t, lines, "the body text")
}

func TestFindRecoveryKeys(t *testing.T) {
	// Every group of a real recovery password is divisible by 11.
	valid := "000000-000011-000022-111111-222222-333333-444444-555555"
	data := []byte("noise " + valid + " trailing\n" +
		"shape ok, checksum bad: 123456-654321-111111-222222-333333-444444-555555-666666\n" +
		"not-a-key 123456-654321\n" +
		"666666-555555-444444-333333-222222-111111-000011-000000")
	keys := FindRecoveryKeys(data)
	require.Len(t, keys, 2)
	assert.Equal(t, valid, keys[0])
	assert.Equal(t, "666666-555555-444444-333333-222222-111111-000011-000000", keys[1])
}
