package minio

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

const metaSuffix = ".meta.yaml"

// documentExt lists the object suffixes treated as protocol documents.
var documentExt = []string{".txt", ".md"}

// Source is a corpus.Source over the objects under a key prefix. Document ids
// are the keys relative to the prefix. A document's metadata lives next to it
// as <name>.meta.yaml.
type Source struct {
	client *Client
	prefix string
}

var (
	_ corpus.Source         = (*Source)(nil)
	_ corpus.MetadataSource = (*Source)(nil)
)

func NewSource(client *Client, prefix string) *Source {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Source{client: client, prefix: prefix}
}

func isDocument(key string) bool {
	if strings.HasSuffix(key, metaSuffix) {
		return false
	}
	ext := strings.ToLower(path.Ext(key))
	for _, e := range documentExt {
		if ext == e {
			return true
		}
	}
	return false
}

// List returns the document ids in key order.
func (s *Source) List(ctx context.Context) ([]string, error) {
	ch := s.client.api.ListObjects(ctx, s.client.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true})
	var ids []string
	for obj := range ch {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.CodeCorpusUnavailable, "failed to list corpus objects")
		}
		if isDocument(obj.Key) {
			ids = append(ids, strings.TrimPrefix(obj.Key, s.prefix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Source) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := s.client.api.GetObject(ctx, s.client.bucket, s.prefix+id)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(err, errors.CodeDocumentNotFound, "document %s not found", id)
		}
		return nil, errors.Wrapf(err, errors.CodeCorpusUnavailable, "failed to open document %s", id)
	}
	return rc, nil
}

// Metadata returns (nil, nil) when the document has no sidecar.
func (s *Source) Metadata(ctx context.Context, id string) (*corpus.Metadata, error) {
	key := s.prefix + strings.TrimSuffix(id, path.Ext(id)) + metaSuffix
	rc, err := s.client.api.GetObject(ctx, s.client.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.CodeCorpusUnavailable, "failed to open metadata for %s", id)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeCorpusUnavailable, "failed to read metadata for %s", id)
	}
	return corpus.ParseMetadata(data)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
