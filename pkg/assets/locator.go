package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/egress-lab/evacsim/pkg/errors"
	"github.com/egress-lab/evacsim/pkg/security"
)

// ErrNoFacilityAsset is returned when no facility image was given and the
// facility collection holds no usable image.
var ErrNoFacilityAsset = errors.New("no image files found in facility folder")

// Selection is the pair of filenames an orchestration will use.
// An empty Crowd means no crowd asset.
type Selection struct {
	Facility string
	Crowd    string
}

// Locator resolves and reads assets under root/<category>/
type Locator struct {
	root      string
	validator *security.Validator
}

// NewLocator creates a locator rooted at root
func NewLocator(root string, validator *security.Validator) *Locator {
	return &Locator{root: root, validator: validator}
}

// MaxFileSize is the per-file limit, or 0 when sizes are not checked
func (l *Locator) MaxFileSize() int64 {
	if l.validator == nil {
		return 0
	}
	return l.validator.MaxFileSize()
}

// Dir returns the directory backing a collection
func (l *Locator) Dir(c Category) string {
	return filepath.Join(l.root, string(c))
}

// List returns the supported image files of a collection in directory order.
// A missing directory is an empty collection.
func (l *Locator) List(c Category) ([]string, error) {
	entries, err := os.ReadDir(l.Dir(c))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		slog.Error("asset_list_failed", "category", c, "error", err)
		return nil, apperrors.Wrapf(err, "list %s assets", c)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Resolve picks the facility and crowd filenames. Explicit names are used
// verbatim; missing ones fall back to the first entry of their collection.
func (l *Locator) Resolve(facility, crowd string) (Selection, error) {
	sel := Selection{Facility: facility, Crowd: crowd}

	if sel.Facility == "" {
		names, err := l.List(Facility)
		if err != nil {
			return Selection{}, err
		}
		if len(names) == 0 {
			slog.Warn("asset_resolve_no_facility", "dir", l.Dir(Facility))
			return Selection{}, ErrNoFacilityAsset
		}
		sel.Facility = names[0]
	}

	if sel.Crowd == "" {
		names, err := l.List(Crowd)
		if err != nil {
			slog.Warn("asset_resolve_crowd_list_failed", "error", err)
		} else if len(names) > 0 {
			sel.Crowd = names[0]
		}
	}

	slog.Info("asset_resolved", "facility", sel.Facility, "crowd", sel.Crowd)
	return sel, nil
}

// Read loads an asset into memory
func (l *Locator) Read(c Category, name string) (*ImageAsset, error) {
	path, err := l.path(c, name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "stat %s asset", c)
	}
	if l.validator != nil {
		if err := l.validator.ValidateFileSize(info.Size()); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "read %s asset", c)
	}

	return &ImageAsset{
		Category:  c,
		Filename:  name,
		MediaType: MediaType(name),
		Bytes:     data,
	}, nil
}

// Open returns a read handle for streaming an asset to a client.
func (l *Locator) Open(c Category, name string) (*os.File, fs.FileInfo, error) {
	path, err := l.path(c, name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s is a directory: %w", name, fs.ErrNotExist)
	}
	return f, info, nil
}

// Save stores an uploaded image in a collection as <unix-millis>_<name> and
// returns the stored filename.
func (l *Locator) Save(c Category, name string, r io.Reader) (string, error) {
	if l.validator != nil {
		if err := l.validator.ValidateFilename(name); err != nil {
			return "", err
		}
	}

	dir := l.Dir(c)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.Wrap(err, "failed to create asset directory")
	}

	stored := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), name)
	target := filepath.Join(dir, stored)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to create asset file")
	}

	src := r
	if l.validator != nil {
		src = io.LimitReader(r, l.validator.MaxFileSize()+1)
	}
	size, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && l.validator != nil {
		err = l.validator.ValidateFileSize(size)
	}
	if err != nil {
		os.Remove(target)
		return "", apperrors.Wrap(err, "failed to store asset")
	}

	slog.Info("asset_saved", "category", c, "filename", stored, "size", size)
	return stored, nil
}

func (l *Locator) path(c Category, name string) (string, error) {
	if l.validator != nil {
		if err := l.validator.ValidateFilename(name); err != nil {
			return "", err
		}
	}
	return filepath.Join(l.Dir(c), name), nil
}
