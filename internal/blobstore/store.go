// Package blobstore keeps small JSON documents in an object store. Documents are
// versioned by a random pathname suffix; the newest upload wins.
package blobstore

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob not found")

type Blob struct {
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Pathname    string    `json:"pathname"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type PutOptions struct {
	ContentType     string
	AddRandomSuffix bool
}

// Store is the subset of an object store the app needs.
type Store interface {
	List(ctx context.Context, prefix string) ([]Blob, error)
	Get(ctx context.Context, url string) ([]byte, error)
	Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (Blob, error)
	Delete(ctx context.Context, urls ...string) error
}

// Versions lists every blob whose pathname contains the document base name,
// newest first.
func Versions(ctx context.Context, s Store, name string) ([]Blob, error) {
	base := baseName(name)
	blobs, err := s.List(ctx, base)
	if err != nil {
		return nil, err
	}
	out := blobs[:0]
	for _, b := range blobs {
		if strings.Contains(b.Pathname, base) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// Latest returns the newest version of a document.
func Latest(ctx context.Context, s Store, name string) (Blob, bool, error) {
	versions, err := Versions(ctx, s, name)
	if err != nil {
		return Blob{}, false, err
	}
	if len(versions) == 0 {
		return Blob{}, false, nil
	}
	return versions[0], true, nil
}

func baseName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// withRandomSuffix turns "leaderboard.json" into "leaderboard-<id>.json".
func withRandomSuffix(pathname string) string {
	ext := path.Ext(pathname)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.TrimSuffix(pathname, ext) + "-" + id[:21] + ext
}

func contentTypeOr(opts PutOptions) string {
	if opts.ContentType != "" {
		return opts.ContentType
	}
	return "application/json"
}
