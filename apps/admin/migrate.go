package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/juku/storage/database"
)

var migrateFunc = database.RunMigration // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Args:  requireArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateFunc(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
