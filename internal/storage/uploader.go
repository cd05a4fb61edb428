package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrUnknownKind     = errors.New("unknown upload kind")
	ErrEmpty           = errors.New("empty file")
)

// Upload kinds double as key prefixes.
const (
	KindCovers      = "covers"
	KindBackgrounds = "backgrounds"
	KindSamples     = "samples"
)

// PublicPrefix is where the server exposes stored objects. Both backends are
// read through it, so a MinIO bucket never needs public access.
const PublicPrefix = "/uploads"

type UploaderConfig struct {
	MaxSize    int64
	ImageTypes []string
	DocTypes   []string
}

type Uploader struct {
	store   ObjectStore
	maxSize int64
	allowed map[string][]string
}

func NewUploader(store ObjectStore, cfg UploaderConfig) *Uploader {
	return &Uploader{
		store:   store,
		maxSize: cfg.MaxSize,
		allowed: map[string][]string{
			KindCovers:      cfg.ImageTypes,
			KindBackgrounds: cfg.ImageTypes,
			KindSamples:     cfg.DocTypes,
		},
	}
}

// Stored is the result of a successful upload.
type Stored struct {
	Key         string `json:"key"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Save validates r by its content, not by any client supplied name or
// header, and stores it under a fresh random name.
func (u *Uploader) Save(ctx context.Context, kind string, r io.Reader) (Stored, error) {
	allowed, ok := u.allowed[kind]
	if !ok {
		return Stored{}, ErrUnknownKind
	}

	data, err := io.ReadAll(io.LimitReader(r, u.maxSize+1))
	if err != nil {
		return Stored{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > u.maxSize {
		return Stored{}, ErrTooLarge
	}
	if len(data) == 0 {
		return Stored{}, ErrEmpty
	}

	mt := mimetype.Detect(data)
	ct := mt.String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if !slices.Contains(allowed, ct) {
		return Stored{}, fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}

	key := kind + "/" + uuid.NewString() + mt.Extension()
	if err := u.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), ct); err != nil {
		return Stored{}, fmt.Errorf("store upload: %w", err)
	}
	return Stored{Key: key, Path: PublicPrefix + "/" + key, ContentType: ct, Size: int64(len(data))}, nil
}

// Open returns a stored object by key for serving.
func (u *Uploader) Open(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	key = strings.TrimPrefix(key, "/")
	kind, _, ok := strings.Cut(key, "/")
	if _, known := u.allowed[kind]; !ok || !known {
		return nil, Info{}, ErrObjectNotFound
	}
	return u.store.Open(ctx, key)
}

// Delete removes the object behind a path returned by Save. Paths outside
// the upload area are ignored.
func (u *Uploader) Delete(ctx context.Context, path string) error {
	key, ok := strings.CutPrefix(path, PublicPrefix+"/")
	if !ok {
		return nil
	}
	return u.store.Delete(ctx, key)
}
