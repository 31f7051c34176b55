package commands

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/egress-lab/evacsim/pkg/db"
	"github.com/egress-lab/evacsim/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// cleanupConcurrency bounds parallel S3 deletes
const cleanupConcurrency = 8

var (
	cleanupRuns    bool
	cleanupUploads bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up finished runs and uploaded assets",
	Long: `Clean up resources left behind by orchestrations:
  --runs      Delete finished runs from the ledger
  --uploads   Delete uploaded assets under the configured S3 prefix`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupRuns, "runs", false, "Delete finished runs")
	cleanupCmd.Flags().BoolVar(&cleanupUploads, "uploads", false, "Delete uploaded assets")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if !cleanupRuns && !cleanupUploads {
		return fmt.Errorf("must specify --runs or --uploads")
	}

	ctx := context.Background()

	if cleanupRuns {
		if err := cleanupFinishedRuns(ctx); err != nil {
			return err
		}
	}
	if cleanupUploads {
		if err := cleanupUploadedAssets(ctx); err != nil {
			return err
		}
	}
	return nil
}

func cleanupFinishedRuns(ctx context.Context) error {
	if err := ensureDirectories(cfg.SQLitePath, "", ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	n, err := repo.DeleteFinished(ctx)
	if err != nil {
		return errors.Wrap(err, "delete runs failed")
	}

	fmt.Printf("✅ Removed %d finished runs\n", n)
	return nil
}

func cleanupUploadedAssets(ctx context.Context) error {
	if cfg.S3Bucket == "" {
		return fmt.Errorf("s3-bucket cannot be empty")
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	keys, err := store.ListObjects(ctx, cfg.S3Prefix+"/")
	if err != nil {
		return errors.Wrap(err, "list uploads failed")
	}

	fmt.Printf("🧹 Cleaning up %d uploaded assets...\n", len(keys))

	removed := deleteObjects(ctx, store, keys)

	fmt.Printf("✅ Removed %d uploaded assets\n", removed)
	return nil
}

type objectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// deleteObjects removes keys in parallel and returns how many were deleted.
// Failures are reported and skipped.
func deleteObjects(ctx context.Context, store objectDeleter, keys []string) int64 {
	var removed atomic.Int64
	var g errgroup.Group
	g.SetLimit(cleanupConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := store.Delete(ctx, key); err != nil {
				fmt.Printf("⚠️  Failed to delete %s: %v\n", key, err)
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return removed.Load()
}
