package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/internal/demo"
)

func componentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List the demo components with their state and actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := livecmp.NewRegistry([]byte("livecmp-describe"))
			demo.Register(reg, demo.Deps{})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATE\tACTIONS")
			for _, name := range reg.Names() {
				fields, actions, err := reg.Describe(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, orDash(fields), orDash(actions))
			}
			return tw.Flush()
		},
	}
}

func orDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
