package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// ErrCorruptArchive marks a malformed or truncated compressed artifact.
var ErrCorruptArchive = errors.New("corrupt compressed artifact")

// Extractor decompresses the fetched snapshot into the form the grid decoder reads.
type Extractor interface {
	Extract(src, dst string) error
}

// GzipExtractor decompresses a single-stream gzip artifact. Output goes to a
// sibling temp file and replaces dst only on success, so the decoder never
// sees a half-written grid file.
type GzipExtractor struct{}

// NewGzipExtractor creates a GzipExtractor.
func NewGzipExtractor() *GzipExtractor {
	return &GzipExtractor{}
}

// Extract decompresses src into dst, fully replacing any prior content.
// Malformed input returns an error wrapping ErrCorruptArchive and leaves no
// partial output behind.
func (e *GzipExtractor) Extract(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open compressed artifact: %w", err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	defer gz.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		// A short or garbled stream surfaces here as an unexpected EOF or
		// checksum failure from the gzip reader.
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit extracted artifact: %w", err)
	}
	return nil
}
