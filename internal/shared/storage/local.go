package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps files under root/<category>/.
type LocalStore struct {
	root string
}

// NewLocalStore creates the category directories under root.
func NewLocalStore(root string) (*LocalStore, error) {
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(root, c), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", c, err)
		}
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(category, name string) string {
	return filepath.Join(s.root, category, name)
}

func (s *LocalStore) Put(ctx context.Context, category, name string, r io.Reader, size int64, contentType string) (*Object, error) {
	if err := validate(category, name); err != nil {
		return nil, err
	}

	dst := s.path(category, name)
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("move file: %w", err)
	}

	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return nil, err
	}
	return &Object{
		Category:    category,
		Name:        name,
		Size:        written,
		ContentType: contentType,
		ModTime:     info.ModTime(),
	}, nil
}

func (s *LocalStore) Open(ctx context.Context, category, name string) (io.ReadCloser, *Object, error) {
	if err := validate(category, name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.path(category, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &Object{
		Category:    category,
		Name:        name,
		Size:        info.Size(),
		ContentType: ContentTypeFor(name),
		ModTime:     info.ModTime(),
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, category, name string) error {
	if err := validate(category, name); err != nil {
		return err
	}
	if err := os.Remove(s.path(category, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
