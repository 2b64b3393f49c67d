// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oneconcern/pacbox/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the configuration",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print the default configuration",
	Long:  "Print the default configuration as YAML. The output is a valid pacboxd.yaml file.",
	Args:  cobra.NoArgs,
	// the default configuration does not depend on any configuration file
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := config.Default().YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(o)
		return err
	},
}

func init() {
	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(configCmd)
}
