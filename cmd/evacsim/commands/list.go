package commands

import (
	"context"
	"fmt"

	"github.com/egress-lab/evacsim/pkg/db"
	"github.com/egress-lab/evacsim/pkg/errors"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List orchestration runs and their status",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// Ensure database directory exists
	if err := ensureDirectories(cfg.SQLitePath, "", ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	runs, err := repo.List(context.Background())
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-36s %-7s %-9s %-10s %-28s %-28s %-20s\n", "ID", "MODE", "SCENARIO", "STATUS", "FACILITY", "CROWD", "CREATED")
	fmt.Println("------------------------------------------------------------------------------------------------------------------------------------------------")

	for _, run := range runs {
		fmt.Printf("%-36s %-7s %-9s %-10s %-28s %-28s %-20s\n",
			run.ID, run.Mode, dash(run.Scenario), run.Status,
			dash(run.FacilityImage), dash(run.CrowdImage), run.CreatedAt)
		if run.ErrorMessage != "" {
			fmt.Printf("    error: %s\n", run.ErrorMessage)
		}
	}

	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
