// Package filesystem stores uploaded files on local disk.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

var _ interfaces.BlobStore = (*BlobStore)(nil)

// BlobStore writes blobs under a root directory. Keys are slash separated
// relative paths such as "{user_id}/{document_id}.pdf".
type BlobStore struct {
	root    string
	baseURL string
	logger  arbor.ILogger
}

func NewBlobStore(logger arbor.ILogger, config *common.BlobConfig) (*BlobStore, error) {
	root, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob directory: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(root)}).String()
	}

	logger.Debug().Str("dir", root).Msg("Blob store initialized")
	return &BlobStore{root: root, baseURL: baseURL, logger: logger}, nil
}

// resolve maps key to a path inside root and rejects escapes
func (b *BlobStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key: %q", key)
	}
	return filepath.Join(b.root, clean), nil
}

// Put writes to a temp file and renames it so readers never see a partial blob
func (b *BlobStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	path, err := b.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, readerWithContext(ctx, r))
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	b.logger.Debug().Str("key", key).Int64("bytes", n).Msg("Blob stored")
	return b.baseURL + "/" + filepath.ToSlash(filepath.Clean(filepath.FromSlash(key))), nil
}

func (b *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.NewNotFoundError("blob", key)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete is idempotent; a missing blob is not an error
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	path, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
