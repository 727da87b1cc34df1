// Package cmd implements the dawsched CLI's subcommands, playing the same
// role the teacher's flag-parsing main.go plays but split cobra-style across
// one file per subcommand (root/play/render/inspect).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dawsched/core/internal/config"
)

var configPath string

// Root is the dawsched root command.
var Root = &cobra.Command{
	Use:   "dawsched",
	Short: "Playback scheduling core demo CLI",
	Long:  "dawsched drives the transport, content scheduler, and voice bookkeeper against a small built-in demo pattern.",
}

func init() {
	Root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config overlay (defaults to built-in values)")
	Root.AddCommand(playCmd, renderCmd, inspectCmd)
}

// Execute runs the root command, the entry point main.go calls.
func Execute() {
	if err := Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
