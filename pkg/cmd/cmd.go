// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "artvault",
		Short: "A versioned artifact sharing and storage service",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose output")

	registerServeCommand()
	registerMigrateCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
