package security

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFilename marks a name that does not refer to a single asset entry
	ErrInvalidFilename = errors.New("security: invalid filename")
	// ErrFileTooLarge marks a file over the configured size limit
	ErrFileTooLarge = errors.New("security: file too large")
)

// Validator provides security validation for asset filenames and sizes
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new security validator
func NewValidator(maxFileSize int64) *Validator {
	slog.Info("security_validator_init", "max_file_size_mb", maxFileSize/1024/1024)

	return &Validator{maxFileSize: maxFileSize}
}

// ValidateFilename checks that name refers to a single entry inside an asset
// collection. Absolute paths, directory separators and traversal are rejected.
func (v *Validator) ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "empty")
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	}

	if filepath.IsAbs(name) {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "absolute_path")
		return fmt.Errorf("%w: absolute path not allowed: %s", ErrInvalidFilename, name)
	}

	if strings.ContainsAny(name, `/\`) {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "path_separator")
		return fmt.Errorf("%w: path separator not allowed: %s", ErrInvalidFilename, name)
	}

	if name == "." || name == ".." || strings.HasPrefix(filepath.Clean(name), "..") {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "path_traversal")
		return fmt.Errorf("%w: path traversal detected: %s", ErrInvalidFilename, name)
	}

	return nil
}

// ValidateFileSize checks if a file exceeds max file size
func (v *Validator) ValidateFileSize(size int64) error {
	if size > v.maxFileSize {
		slog.Error("security_file_size_exceeded",
			"file_size_mb", size/1024/1024,
			"max_file_size_mb", v.maxFileSize/1024/1024)
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrFileTooLarge, size, v.maxFileSize)
	}
	return nil
}

// MaxFileSize returns the configured per-file limit in bytes
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}
