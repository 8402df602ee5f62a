package persist

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBlob keeps a blob in one file. Saves go to a temporary file in the same
// directory which is then renamed over the target, so readers never observe a
// truncated snapshot.
type FileBlob struct {
	path string
	perm fs.FileMode
}

// NewFileBlob creates a FileBlob for path.
func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path, perm: 0o644}
}

func (b *FileBlob) Location() string {
	return b.path
}

func (b *FileBlob) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, &Error{Op: "load", Location: b.path, Err: err}
	}
	return data, nil
}

func (b *FileBlob) Save(_ context.Context, data []byte) error {
	if err := b.save(data); err != nil {
		return &Error{Op: "save", Location: b.path, Err: err}
	}
	return nil
}

func (b *FileBlob) save(data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, b.perm); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path)
}
