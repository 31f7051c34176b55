// Package uploader pushes local image assets to object storage. Failures are
// reported as a Degraded result rather than a bare error so that callers can
// decide per asset whether the failure is fatal.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/google/uuid"
)

// AssetReader loads a local asset by category and filename
type AssetReader interface {
	Read(c assets.Category, name string) (*assets.ImageAsset, error)
}

// ObjectStore stores bytes and returns a URL for them
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// RemoteAsset is an uploaded asset. It is scoped to the orchestration that
// created it and never reused.
type RemoteAsset struct {
	URL string
	Key string
}

// Status is the outcome kind of an upload
type Status int

const (
	StatusUploaded Status = iota
	StatusDegraded
)

func (s Status) String() string {
	if s == StatusUploaded {
		return "uploaded"
	}
	return "degraded"
}

// UploadError describes a failed read or transfer of an asset
type UploadError struct {
	Category assets.Category
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s image %q: %v", e.Category, e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Result is either Uploaded (Remote set) or Degraded (Err set).
type Result struct {
	Status Status
	Remote RemoteAsset
	Err    *UploadError
}

// Uploaded reports whether the asset reached storage
func (r Result) Uploaded() bool {
	return r.Status == StatusUploaded
}

// Uploader reads assets and pushes them to object storage
type Uploader struct {
	reader AssetReader
	store  ObjectStore
	prefix string
}

// New creates an uploader writing objects under prefix
func New(reader AssetReader, store ObjectStore, prefix string) *Uploader {
	return &Uploader{
		reader: reader,
		store:  store,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Upload reads the named asset and stores it. The call blocks until storage
// acknowledges the object.
func (u *Uploader) Upload(ctx context.Context, c assets.Category, filename string) Result {
	asset, err := u.reader.Read(c, filename)
	if err != nil {
		slog.Error("asset_read_failed", "category", c, "filename", filename, "error", err)
		return degraded(c, filename, err)
	}

	key := u.objectKey(asset)
	slog.Info("asset_upload_start",
		"category", c,
		"filename", filename,
		"size", len(asset.Bytes),
		"media_type", asset.MediaType,
	)

	url, err := u.store.Put(ctx, key, asset.Bytes, asset.MediaType)
	if err != nil {
		slog.Error("asset_upload_failed", "category", c, "filename", filename, "error", err)
		return degraded(c, filename, err)
	}

	slog.Info("asset_upload_complete", "category", c, "filename", filename, "s3_key", key)

	return Result{
		Status: StatusUploaded,
		Remote: RemoteAsset{URL: url, Key: key},
	}
}

func (u *Uploader) objectKey(asset *assets.ImageAsset) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(asset.Filename))
	return path.Join(u.prefix, string(asset.Category), name)
}

func degraded(c assets.Category, filename string, err error) Result {
	return Result{
		Status: StatusDegraded,
		Err:    &UploadError{Category: c, Filename: filename, Err: err},
	}
}
