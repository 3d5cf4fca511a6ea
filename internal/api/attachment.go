package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxUploadSize mirrors the backend's 10 MiB limit.
const DefaultMaxUploadSize int64 = 10 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds maximum upload size")
)

// DocumentExtensions are the document types the backend indexes.
var DocumentExtensions = []string{".pdf", ".txt", ".docx", ".md"}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsImage reports whether path is sent inline with a message rather than
// uploaded as a document.
func IsImage(path string) bool {
	_, ok := imageTypes[extension(path)]
	return ok
}

func IsDocument(path string) bool {
	ext := extension(path)
	for _, allowed := range DocumentExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func checkSize(path string, max int64) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if max > 0 && info.Size() > max {
		return nil, fmt.Errorf("%s is %d bytes: %w (%d bytes)", filepath.Base(path), info.Size(), ErrTooLarge, max)
	}
	return info, nil
}

// ValidateDocument checks the type and size of a document before upload.
func ValidateDocument(path string, max int64) (os.FileInfo, error) {
	if !IsDocument(path) {
		return nil, fmt.Errorf("%w %q, allowed: %s", ErrUnsupportedType, extension(path), strings.Join(DocumentExtensions, ", "))
	}
	return checkSize(path, max)
}

// LoadImage reads an image file and returns it as a base64 data URI.
func LoadImage(path string, max int64) (string, error) {
	mime, ok := imageTypes[extension(path)]
	if !ok {
		return "", fmt.Errorf("%w %q for an image", ErrUnsupportedType, extension(path))
	}
	if _, err := checkSize(path, max); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
