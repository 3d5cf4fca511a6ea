package api

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageAndIsDocument(t *testing.T) {
	for _, path := range []string{"a.jpg", "b.JPEG", "c.png", "/tmp/d.webp"} {
		assert.True(t, IsImage(path), path)
		assert.False(t, IsDocument(path), path)
	}
	for _, path := range []string{"a.pdf", "b.TXT", "c.docx", "d.md"} {
		assert.True(t, IsDocument(path), path)
		assert.False(t, IsImage(path), path)
	}
	assert.False(t, IsImage("archive.zip"))
	assert.False(t, IsDocument("archive.zip"))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixel.png")
	data := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, os.WriteFile(path, data, 0o600))

	uri, err := LoadImage(path, DefaultMaxUploadSize)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	_, err = LoadImage(path, 2)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = LoadImage(filepath.Join(dir, "notes.txt"), DefaultMaxUploadSize)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = LoadImage(filepath.Join(dir, "missing.jpg"), DefaultMaxUploadSize)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	info, err := ValidateDocument(path, DefaultMaxUploadSize)
	require.NoError(t, err)
	assert.EqualValues(t, 8, info.Size())

	_, err = ValidateDocument(dir+"/folder.md", DefaultMaxUploadSize)
	assert.Error(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.md"), 0o700))
	_, err = ValidateDocument(filepath.Join(dir, "folder.md"), DefaultMaxUploadSize)
	assert.Error(t, err)
}
