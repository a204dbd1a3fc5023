package main

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/db"
)

const (
	nameFlag     = "name"
	emailFlag    = "email"
	passwordFlag = "password"
)

var superAdminFlags = map[string]cobraflags.Flag{
	nameFlag: &cobraflags.StringFlag{
		Name:  nameFlag,
		Value: "Super Admin",
		Usage: "Display name of the account",
	},
	emailFlag: &cobraflags.StringFlag{
		Name:  emailFlag,
		Usage: "Login email (required)",
	},
	passwordFlag: &cobraflags.StringFlag{
		Name:  passwordFlag,
		Usage: "Initial password, at least 8 characters (required)",
	},
}

func newSuperAdminCommand() *cobra.Command {
	superAdminCmd := &cobra.Command{
		Use:   "superadmin",
		Short: "Manage the protected super admin account",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the super admin if none exists yet",
		RunE:  createSuperAdminCommand,
	}
	cobraflags.RegisterMap(createCmd, superAdminFlags)

	superAdminCmd.AddCommand(createCmd)
	return superAdminCmd
}

func createSuperAdminCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	_, log, gdb, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	admin := &service.AdminService{Repo: repo.New(gdb)}
	u, err := admin.CreateSuperAdmin(ctx,
		superAdminFlags[nameFlag].GetString(),
		superAdminFlags[emailFlag].GetString(),
		superAdminFlags[passwordFlag].GetString(),
	)
	if err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}
	log.Info("super admin created", "user_id", u.ID, "email", u.Email)
	return nil
}
