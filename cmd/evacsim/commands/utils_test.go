package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	sqlitePath := filepath.Join(root, "state", "runs.db")
	fsmPath := filepath.Join(root, "state", "fsm.db")
	assetDir := filepath.Join(root, "images")

	if err := ensureDirectories(sqlitePath, fsmPath, assetDir); err != nil {
		t.Fatalf("ensureDirectories failed: %v", err)
	}

	for _, dir := range []string{
		filepath.Dir(sqlitePath),
		fsmPath,
		filepath.Join(assetDir, "facility"),
		filepath.Join(assetDir, "crowd"),
	} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
}

func TestEnsureDirectories_OptionalPaths(t *testing.T) {
	root := t.TempDir()
	if err := ensureDirectories(filepath.Join(root, "runs.db"), "", ""); err != nil {
		t.Fatalf("ensureDirectories failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "facility")); !os.IsNotExist(err) {
		t.Error("asset collections should not be created without an asset dir")
	}
}

func TestSetLogLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		setLogLevel(tt.level)
		h := slog.Default().Handler()
		if !h.Enabled(context.Background(), tt.want) {
			t.Errorf("%s: level %v should be enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && h.Enabled(context.Background(), tt.want-1) {
			t.Errorf("%s: level below %v should be disabled", tt.level, tt.want)
		}
	}
}
