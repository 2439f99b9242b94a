package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(t.TempDir())
}

func buildZip(t *testing.T, members map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractPDFPassThrough(t *testing.T) {
	e := testExtractor(t)
	raw := []byte("%PDF-1.4\nsome pdf body")

	res := e.Extract(raw, "application/pdf", "ev1")
	require.False(t, res.Skipped)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "ev1.pdf", filepath.Base(res.Paths[0]))

	written, err := os.ReadFile(res.Paths[0])
	require.NoError(t, err)
	assert.Equal(t, raw, written)
}

func TestExtractZipMembers(t *testing.T) {
	e := testExtractor(t)
	raw := buildZip(t, map[string][]byte{
		"report.pdf":   []byte("%PDF-1.4 report"),
		"appendix.pdf": []byte("%PDF-1.4 appendix"),
	})

	res := e.Extract(raw, "application/octet-stream", "ev2")
	require.False(t, res.Skipped)
	assert.Len(t, res.Paths, 2)

	names := make(map[string]bool)
	for _, p := range res.Paths {
		names[filepath.Base(p)] = true
	}
	assert.True(t, names["report.pdf"])
	assert.True(t, names["appendix.pdf"])
}

func TestExtractZipByContentTypeHint(t *testing.T) {
	e := testExtractor(t)
	raw := buildZip(t, map[string][]byte{"doc.pdf": []byte("%PDF-1.4")})

	// Strip the recognizable prefix check by going through the hint path:
	// the signature is present anyway, but a declared zip content type must
	// also work for payloads the sniffer does not recognize.
	res := e.Extract(raw, "application/zip", "ev3")
	require.False(t, res.Skipped)
	assert.Len(t, res.Paths, 1)
}

func TestExtractHTMLIsSkippedNotFailed(t *testing.T) {
	e := testExtractor(t)

	for _, raw := range [][]byte{
		[]byte("<!doctype html><html><body>Документ удалён</body></html>"),
		[]byte("  \n<HTML><head></head></HTML>"),
	} {
		res := e.Extract(raw, "application/pdf", "ev4")
		assert.True(t, res.Skipped)
		assert.Empty(t, res.Paths)
		assert.NotEmpty(t, res.Reason)
	}
}

func TestExtractUnrecognizedBinary(t *testing.T) {
	e := testExtractor(t)

	res := e.Extract([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}, "application/octet-stream", "ev5")
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Paths)
}

func TestExtractCorrupt7zIsSkipped(t *testing.T) {
	e := testExtractor(t)

	// Valid 7z signature followed by garbage
	raw := append([]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, []byte("definitely not an archive")...)
	res := e.Extract(raw, "", "ev6")
	assert.True(t, res.Skipped)
}

func TestExtractEmptyPayload(t *testing.T) {
	e := testExtractor(t)

	res := e.Extract(nil, "", "ev7")
	assert.True(t, res.Skipped)
}

func TestExtractZipGuardsTraversal(t *testing.T) {
	e := testExtractor(t)
	raw := buildZip(t, map[string][]byte{"../../escape.pdf": []byte("%PDF-1.4")})

	res := e.Extract(raw, "application/zip", "ev8")
	require.False(t, res.Skipped)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "escape.pdf", filepath.Base(res.Paths[0]))
	assert.True(t, filepath.IsAbs(res.Paths[0]))
	assert.Contains(t, res.Paths[0], "ev8")
}
