package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// graphCmd represents the graph command.
var graphCmd = &cobra.Command{
	Use:   "graph [targets...]",
	Short: "Print the resolved dependency graph in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = []string{"sync"}
		}

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		order, err := orch.Order(names...)
		if err != nil {
			return err
		}
		edges, err := orch.Edges(names...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range order {
			if deps := edges[name]; len(deps) > 0 {
				for _, dep := range deps {
					fmt.Fprintf(out, "%s -> %s\n", name, dep)
				}
			} else {
				fmt.Fprintln(out, name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
