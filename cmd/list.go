package cmd

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered targets and their state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		names := make([]string, 0, len(orch.Targets))
		for name := range orch.Targets {
			names = append(names, name)
		}
		slices.Sort(names)

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Target", "Kind", "Prerequisites", "State"})
		table.SetBorder(false)
		table.SetColumnAlignment([]int{
			tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		})

		for _, name := range names {
			t := orch.Targets[name]

			kind := "file"
			state := "always"
			if t.Phony {
				kind = "phony"
			} else if stale, err := orch.IsStale(name); err != nil {
				state = "unknown"
			} else if stale {
				state = "stale"
			} else {
				state = "up to date"
			}

			table.Append([]string{name, kind, strings.Join(t.Prereqs, ", "), state})
		}

		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
