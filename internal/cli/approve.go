package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborline/payguard/internal/core/config"
	"github.com/harborline/payguard/internal/infra/storage/postgres"
	"github.com/harborline/payguard/internal/recovery"
)

var approveCmd = &cobra.Command{
	Use:   "approve [failure_id]",
	Short: "Re-arm a failure record that is awaiting manual approval",
	Args:  cobra.ExactArgs(1),
	Run:   runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) {
	id := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewFailureRepo(db)
	orch := recovery.NewOrchestrator(repo, nil, nil, nil, recovery.OrchestratorConfig{})

	if err := orch.Approve(ctx, id); err != nil {
		slog.Error("Failed to approve retry", "id", id, "error", err)
		os.Exit(1)
	}

	f, err := repo.GetByID(ctx, id)
	if err != nil {
		slog.Error("Failed to reload record", "id", id, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Approved retry for %s, next attempt at %s\n", f.ID, f.NextRetryAt.Format("2006-01-02 15:04:05"))
}
