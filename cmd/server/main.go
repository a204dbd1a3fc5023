package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/foodshop/pkg/config"
	"github.com/Skotchmaster/foodshop/pkg/db"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:          "foodshop",
	Short:        "Multi-supplier food ordering storefront",
	SilenceUsage: true,
	RunE:         serveCommand,
}

func main() {
	rootCmd.AddCommand(newServeCommand(), newMigrateCommand(), newSuperAdminCommand(), newReindexCommand())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore loads configuration, connects and migrates the database.
func openStore(ctx context.Context) (config.Config, *slog.Logger, *gorm.DB, error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return cfg, log, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		_ = db.Close(gdb)
		return cfg, log, nil, fmt.Errorf("migrate: %w", err)
	}
	return cfg, log, gdb, nil
}
