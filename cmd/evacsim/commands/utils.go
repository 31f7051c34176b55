package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/egress-lab/evacsim/internal/config"
	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/egress-lab/evacsim/pkg/errors"
	"github.com/egress-lab/evacsim/pkg/scenario"
	"github.com/egress-lab/evacsim/pkg/security"
	"github.com/egress-lab/evacsim/pkg/storage"
	"github.com/egress-lab/evacsim/pkg/synth"
	"github.com/egress-lab/evacsim/pkg/uploader"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, fsmDBPath, assetDir string) error {
	// Create database directory
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	// Create FSM database directory (only needed for generate command)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	// Create asset collections so listing and upload work on a fresh checkout
	if assetDir != "" {
		for _, c := range []assets.Category{assets.Facility, assets.Crowd} {
			if err := os.MkdirAll(filepath.Join(assetDir, string(c)), 0755); err != nil {
				return errors.Wrap(err, "failed to create asset directory")
			}
		}
	}

	return nil
}

func newStorage(ctx context.Context, cfg *config.Config) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, storage.Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
		PresignTTL:    cfg.PresignTTL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "S3 client failed")
	}
	return client, nil
}

// newOrchestrator wires the locator, uploader and synthesizer from config
func newOrchestrator(ctx context.Context, cfg *config.Config) (*scenario.Orchestrator, *assets.Locator, error) {
	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	validator := security.NewValidator(cfg.MaxFileSize)
	locator := assets.NewLocator(cfg.AssetDir, validator)
	up := uploader.New(locator, store, cfg.S3Prefix)

	client := synth.NewClient(synth.Options{
		BaseURL:      cfg.FalQueueURL,
		APIKey:       cfg.FalKey,
		PollInterval: cfg.PollInterval,
	})
	synthesizer := scenario.NewServiceSynthesizer(client, cfg.ModelID, nil)

	orch := scenario.NewOrchestrator(locator, up, synthesizer,
		scenario.WithDefaultPrompts(cfg.PromptA, cfg.PromptB),
		scenario.WithDefaultFlow(cfg.DefaultFlow),
	)
	return orch, locator, nil
}
