// Package localfs serves the protocol corpus from a directory tree.
package localfs

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

const metaSuffix = ".meta.yaml"

// Source lists .txt and .md files under a root directory. Ids are slash
// separated paths relative to the root; a document's metadata sits beside it
// as <name>.meta.yaml. Hidden directories are skipped.
type Source struct {
	root string
}

var (
	_ corpus.Source         = (*Source)(nil)
	_ corpus.MetadataSource = (*Source)(nil)
)

func New(root string) *Source {
	return &Source{root: root}
}

func isDocument(name string) bool {
	if strings.HasSuffix(name, metaSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}

func (s *Source) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isDocument(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeCorpusUnavailable, "failed to list corpus directory %s", s.root)
	}
	sort.Strings(ids)
	return ids, nil
}

// resolve maps an id to a path, refusing ids that escape the root.
func (s *Source) resolve(id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrCodeBadRequest, "invalid document id %q", id)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *Source) Open(_ context.Context, id string) (io.ReadCloser, error) {
	p, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, errors.CodeDocumentNotFound, "document %s not found", id)
		}
		return nil, errors.Wrapf(err, errors.CodeCorpusUnavailable, "failed to open document %s", id)
	}
	return f, nil
}

// Metadata returns (nil, nil) when the document has no sidecar.
func (s *Source) Metadata(_ context.Context, id string) (*corpus.Metadata, error) {
	p, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(strings.TrimSuffix(p, filepath.Ext(p)) + metaSuffix)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.CodeCorpusUnavailable, "failed to read metadata for %s", id)
	}
	return corpus.ParseMetadata(data)
}
