// Package cmd provides the root command and CLI setup for mpymake.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ZacxDev/mpymake/config"
	"github.com/ZacxDev/mpymake/executor"
	"github.com/ZacxDev/mpymake/fs"
)

var mpyCrossFlag string
var mountFlag string
var targetFileFlag string
var debugLogFlag string

const rootLongDescription = `mpymake drives the build chores of a CircuitPython driver project:
compiling sources to .mpy bytecode with mpy-cross, building the Sphinx
documentation tree, and syncing compiled artifacts onto a mounted
CIRCUITPY volume.

Targets rebuild only when their inputs are newer than their outputs.
Extra targets can be declared in a Starlark file (default mpymake.star).`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mpymake",
	Short: "Build, document and sync a CircuitPython driver project",
	Long:  rootLongDescription,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if debugLogFlag != "" {
			log.SetOutput(&lumberjack.Logger{
				Filename:   debugLogFlag,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
			})
		} else {
			log.SetOutput(io.Discard)
		}
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	config.Init()
	configureRootFlags(rootCmd)
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&mpyCrossFlag, "mpy-cross", viper.GetString("mpy-cross"), "path to the mpy-cross executable")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("mpy-cross"), "mpy-cross")

	cmd.PersistentFlags().StringVar(&mountFlag, "mount", viper.GetString("mount"), "destination directory for sync (the mounted device volume)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("mount"), "mount")

	cmd.PersistentFlags().StringVarP(&targetFileFlag, "file", "f", viper.GetString("file"), "Starlark file declaring extra targets")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("file"), "file")

	cmd.PersistentFlags().StringVar(&debugLogFlag, "debug-log", "", "write diagnostic output to a rotating log file")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// newOrchestrator assembles the orchestrator from the effective
// configuration.
func newOrchestrator() (*executor.Orchestrator, error) {
	cfg := config.Load()
	targets, patterns, err := cfg.Targets()
	if err != nil {
		return nil, err
	}
	return executor.New(targets, patterns, fs.RealFileSystem{}, executor.RealCommandRunner{}), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
