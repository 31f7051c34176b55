// Package assets locates and reads the local facility and crowd image collections.
package assets

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category names a local asset collection
type Category string

const (
	Facility Category = "facility"
	Crowd    Category = "crowd"
)

// ParseCategory validates a collection name received from a caller
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Facility, Crowd:
		return Category(s), nil
	default:
		return "", fmt.Errorf("invalid asset category %q", s)
	}
}

// ImageAsset is a local image read into memory for upload
type ImageAsset struct {
	Category  Category
	Filename  string
	MediaType string
	Bytes     []byte
}

// OctetStream is reported for extensions outside the media type table
const OctetStream = "application/octet-stream"

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".avif": "image/avif",
}

// MediaType infers the MIME type of filename from its extension.
func MediaType(filename string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return OctetStream
}

// IsSupported reports whether filename has a supported image extension.
// Placeholders such as .gitkeep fail the extension check.
func IsSupported(filename string) bool {
	_, ok := mediaTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}
