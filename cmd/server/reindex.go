package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/internal/search"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/db"
)

func newReindexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every product into the Elasticsearch index",
		RunE:  reindexCommand,
	}
}

func reindexCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, gdb, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if cfg.ESURL == "" {
		return errors.New("ES_URL is not set")
	}
	es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
	if err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}

	catalog := &service.CatalogService{Repo: repo.New(gdb), Index: search.NewIndex(es, cfg.ESIndex)}
	n, err := catalog.Reindex(ctx)
	if err != nil {
		return err
	}
	log.Info("reindex complete", "products", n, "index", cfg.ESIndex)
	return nil
}
