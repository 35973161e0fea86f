package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpggio/opsdash/internal/codec"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/record"
)

// FileFetcher reads reports from a local directory, for offline use and
// tests.
type FileFetcher struct {
	root string
}

func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root}
}

func (f *FileFetcher) Fetch(ctx context.Context, key string) ([]record.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dashboard.FetchError{Key: key, Err: err}
	}
	clean := filepath.Clean("/" + key)
	data, err := os.ReadFile(filepath.Join(f.root, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotFound
		}
		return nil, &dashboard.FetchError{Key: key, Err: err}
	}
	rows, err := codec.Decode(data, mime.TypeByExtension(strings.ToLower(filepath.Ext(clean))))
	if err != nil {
		return nil, &dashboard.FetchError{Key: key, Err: fmt.Errorf("decoding %s: %w", clean, err)}
	}
	return rows, nil
}
