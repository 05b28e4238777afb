package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/core/domain"
)

func zipDescriptor() domain.Descriptor {
	return domain.ZipCryptoDescriptor{ArchivePath: "evidence.zip", EntryPath: "payload.txt"}
}

func TestBuildCandidates_DedupPreservesOrder(t *testing.T) {
	env := newTestEnv(t)

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(wordlist, []byte("zulu\nalpha\nzulu\nbravo\nalpha\n"), 0o644))

	candidates, err := env.svc.buildCandidates("evidence.zip", zipDescriptor(), domain.CrackSettings{
		WordlistPath: wordlist,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"zulu", "alpha", "bravo"}, candidates)
}

func TestBuildCandidates_CommonList(t *testing.T) {
	env := newTestEnv(t)

	candidates, err := env.svc.buildCandidates("evidence.zip", zipDescriptor(), domain.CrackSettings{
		CommonCount: 10,
	})
	require.NoError(t, err)
	assert.Len(t, candidates, 10)
	assert.Equal(t, "123456", candidates[0])
}

func TestBuildCandidates_SubtractsTried(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.artifacts.PutAttribute("evidence.zip", domain.AttrTriedPassword, "123456,password"))

	candidates, err := env.svc.buildCandidates("evidence.zip", zipDescriptor(), domain.CrackSettings{
		CommonCount: 10,
	})
	require.NoError(t, err)
	assert.Len(t, candidates, 8)
	assert.NotContains(t, candidates, "123456")
	assert.NotContains(t, candidates, "password")
}

// Non-ZIP descriptors never subtract tried passwords; only ZipCrypto can
// produce false positives worth remembering.
func TestBuildCandidates_TriedOnlyAppliesToZip(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.artifacts.PutAttribute("doc.pdf", domain.AttrTriedPassword, "123456"))

	pdfDesc := domain.PDFLegacyDescriptor{Path: "doc.pdf", Revision: 3}
	candidates, err := env.svc.buildCandidates("doc.pdf", pdfDesc, domain.CrackSettings{
		CommonCount: 10,
	})
	require.NoError(t, err)
	assert.Contains(t, candidates, "123456")
}

func TestBuildCandidates_RejectsBinaryWordlist(t *testing.T) {
	env := newTestEnv(t)

	wordlist := filepath.Join(t.TempDir(), "words.bin")
	require.NoError(t, os.WriteFile(wordlist, []byte{0x7F, 'E', 'L', 'F', 0x00, 0x01, 0x02, 0x03}, 0o644))

	candidates, err := env.svc.buildCandidates("evidence.zip", zipDescriptor(), domain.CrackSettings{
		WordlistPath: wordlist,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestBuildCandidates_MissingTagIsNoop(t *testing.T) {
	env := newTestEnv(t)
	candidates, err := env.svc.buildCandidates("evidence.zip", zipDescriptor(), domain.CrackSettings{
		TaggedFiles: true,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
