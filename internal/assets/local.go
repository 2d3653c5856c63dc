package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes assets to a directory that the server exposes under publicPath.
type LocalStore struct {
	dir        string
	publicPath string
}

func NewLocalStore(dir, publicPath string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("assets dir is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	publicPath = "/" + strings.Trim(publicPath, "/")
	return &LocalStore{dir: dir, publicPath: publicPath}, nil
}

func (s *LocalStore) Dir() string        { return s.dir }
func (s *LocalStore) PublicPath() string { return s.publicPath }

func (s *LocalStore) Save(ctx context.Context, upload Upload) (string, error) {
	name := uuid.NewString() + upload.Ext
	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}
	if _, err := io.Copy(file, upload.reader()); err != nil {
		file.Close()
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close asset: %w", err)
	}
	return path.Join(s.publicPath, name), nil
}

// Delete removes an asset previously returned by Save. Paths outside the store are ignored.
func (s *LocalStore) Delete(ctx context.Context, publicPath string) error {
	if !strings.HasPrefix(publicPath, s.publicPath+"/") {
		return nil
	}
	name := path.Base(publicPath)
	if name == "." || name == "/" || name == ".." {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}
