package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (cli *commandLine) classesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classes CODE|ID",
		Short: "List the classes of an organization",
		Args:  requireArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			org, err := cli.orgSvc.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			classes, err := cli.orgSvc.ListClasses(ctx, org.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cli.out, "%s (%s): %d class(es)\n", org.Name, org.Code, len(classes))
			w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
			for _, cs := range classes {
				fmt.Fprintf(w, "%s\t%s-%s\t%s\t%s\t%d\n", cs.Weekday(), cs.StartTime[:5], cs.EndTime[:5], cs.Name, cs.Location.Name, cs.Capacity)
			}
			return w.Flush()
		},
	}
}
