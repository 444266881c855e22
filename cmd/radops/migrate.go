package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"radhiant_ops/internal/config"
	"radhiant_ops/internal/migrate"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(migrate.Commands, "|") + "]",
		Short:     "Apply the Postgres schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrate.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			// only the database settings are needed here
			_ = godotenv.Load()
			var db config.DBSettings
			if err := envconfig.Process("", &db); err != nil {
				return fmt.Errorf("parsing config: %w", err)
			}
			if !strings.EqualFold(db.Driver, "postgres") {
				return fmt.Errorf("migrations target postgres, RADOPS_DB_DRIVER is %q", db.Driver)
			}

			sqlDB, err := migrate.Open(db.PostgresDSN())
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return migrate.Run(cmd.Context(), sqlDB, command)
		},
	}
}
