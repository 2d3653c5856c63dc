// Package assets stores uploaded logo images and hands back their public path.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/codr1/themekit/internal/config"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("upload exceeds size limit")
	ErrEmpty           = errors.New("upload is empty")
)

// allowedTypes maps sniffed content types to the extension used for the stored file.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload is a validated image ready to be stored.
type Upload struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Store persists uploads. Save returns the stable public path of the stored asset.
type Store interface {
	Save(ctx context.Context, upload Upload) (string, error)
	Delete(ctx context.Context, path string) error
}

// Prepare reads at most maxBytes from r and checks the sniffed content type.
func Prepare(r io.Reader, maxBytes int64) (Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return Upload{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return Upload{}, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Upload{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return Upload{Data: data, ContentType: contentType, Ext: ext}, nil
}

func (u Upload) reader() io.Reader {
	return bytes.NewReader(u.Data)
}

// NewFromConfig builds the configured asset store.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Assets.Driver {
	case "local":
		return NewLocalStore(cfg.Assets.Dir, cfg.Assets.PublicPath)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.Assets.S3.Bucket,
			Region:          cfg.Assets.S3.Region,
			Prefix:          cfg.Assets.S3.Prefix,
			PublicBaseURL:   cfg.Assets.S3.PublicBaseURL,
			AccessKeyID:     cfg.Secrets.AWSAccessKeyID,
			SecretAccessKey: cfg.Secrets.AWSSecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported assets driver: %s", cfg.Assets.Driver)
	}
}
