package main

import (
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/juku/core/organization"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sqlx.DB
	orgSvc *organization.Service
	out    io.Writer
}

func (cli *commandLine) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Juku administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.SetOut(cli.out)
	cmd.SetErr(cli.out)

	cmd.AddCommand(cli.migrateCommand())
	cmd.AddCommand(cli.addOrgCommand())
	cmd.AddCommand(cli.provisionCommand())
	cmd.AddCommand(cli.classesCommand())
	return cmd
}

// run executes the command line; args includes the program name.
func (cli *commandLine) run(args []string) error {
	cmd := cli.rootCommand()
	if len(args) > 0 {
		args = args[1:]
	}
	cmd.SetArgs(args)
	return cmd.Execute()
}

// requireArgs prints the command usage when fewer than n arguments are given.
func requireArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			_ = cmd.Usage()
			return errHelp
		}
		return nil
	}
}
