package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/RishiKendai/cellguard/internal/plagiarism"
)

// FilesystemFetcher reads <documentVersionId>.ipynb files from a directory.
type FilesystemFetcher struct {
	dir string
}

func NewFilesystemFetcher(dir string) *FilesystemFetcher {
	return &FilesystemFetcher{dir: dir}
}

func (f *FilesystemFetcher) Fetch(ctx context.Context, documentVersionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if documentVersionID == "" || strings.ContainsAny(documentVersionID, `/\`) || documentVersionID == ".." {
		return nil, fmt.Errorf("invalid document version id %q: %w", documentVersionID, plagiarism.ErrNotFound)
	}

	path := filepath.Join(f.dir, documentVersionID+notebookExtension)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("notebook %s: %w", path, plagiarism.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook %s: %w", path, err)
	}
	return data, nil
}
