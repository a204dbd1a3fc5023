package main

import (
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/foodshop/pkg/db"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, gdb, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("schema up to date")
			return db.Close(gdb)
		},
	}
}
