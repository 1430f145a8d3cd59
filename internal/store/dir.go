package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// DirSink writes chapter files into one directory.
type DirSink struct {
	fs  afero.Fs
	dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(fs afero.Fs, dir string) (*DirSink, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{fs: fs, dir: dir}, nil
}

// DirFactory gives each job its own directory under root.
func DirFactory(fs afero.Fs, root string) Factory {
	return func(_ context.Context, docID string) (Sink, error) {
		if err := CheckName(docID); err != nil {
			return nil, err
		}
		return NewDirSink(fs, filepath.Join(root, docID))
	}
}

func (s *DirSink) Put(ctx context.Context, name, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(name); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Dir is the directory chapter files are written to.
func (s *DirSink) Dir() string { return s.dir }

func (s *DirSink) Close() error { return nil }
