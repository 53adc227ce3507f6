package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// ArchiveBuilder collects files into an in-memory zip archive.
type ArchiveBuilder struct {
	buf      *bytes.Buffer
	zw       *zip.Writer
	modified time.Time
	names    map[string]bool
}

// NewArchiveBuilder starts an empty archive whose entries carry the given
// modification time.
func NewArchiveBuilder(modified time.Time) *ArchiveBuilder {
	buf := &bytes.Buffer{}
	return &ArchiveBuilder{
		buf:      buf,
		zw:       zip.NewWriter(buf),
		modified: modified,
		names:    map[string]bool{},
	}
}

// Add stores data under path. Paths use forward slashes and must be unique.
func (b *ArchiveBuilder) Add(path string, data []byte) error {
	if b.names[path] {
		return fmt.Errorf("duplicate archive entry %s", path)
	}
	w, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     path,
		Method:   zip.Deflate,
		Modified: b.modified,
	})
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write archive entry %s: %w", path, err)
	}
	b.names[path] = true
	return nil
}

// Len reports the number of entries added so far.
func (b *ArchiveBuilder) Len() int {
	return len(b.names)
}

// Bytes finalises the archive. The builder must not be used afterwards.
func (b *ArchiveBuilder) Bytes() ([]byte, error) {
	if err := b.zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return b.buf.Bytes(), nil
}
