package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ZacxDev/mpymake/ui"
)

var dryRunFlag bool
var uiFlag bool

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run [targets...]",
	Short: "Build the named targets (default: compile)",
	Long: `Resolve each named target against the target table and pattern rules,
build stale prerequisites depth-first, then run the target's own action.
Well-known targets: docs, compile, sync, clean. A request for a .mpy
path compiles the matching .py source with mpy-cross.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = []string{"compile"}
		}

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		orch.DryRun = dryRunFlag

		if uiFlag {
			orch.Stdout = io.Discard
			orch.Stderr = io.Discard

			done := make(chan struct{})
			var runErr error
			go func() {
				defer close(done)
				runErr = orch.Run(names...)
			}()
			if err := ui.Run(orch.Status, done); err != nil {
				return err
			}
			<-done
			return runErr
		}

		orch.Stdout = cmd.OutOrStdout()
		orch.Stderr = cmd.ErrOrStderr()
		return orch.Run(names...)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&dryRunFlag, "dry-run", "n", false, "report what would run without executing actions")
	runCmd.Flags().BoolVar(&uiFlag, "ui", false, "show live target status while building")
}
