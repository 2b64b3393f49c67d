// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oneconcern/pacbox/pkg/app"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <package file>...",
	Short: "Deploy package files to a section",
	Long: `Copy package files to the pool and register them in a section of the box.

A detached signature may be deployed along with a single package file.`,
	Example: `pacboxd deploy --section stable/core/x86_64 --signature foo-1.0-1-x86_64.pkg.tar.zst.sig foo-1.0-1-x86_64.pkg.tar.zst`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section := params.deploy.section
		if err := section.Validate(); err != nil {
			return err
		}
		if params.deploy.signature != "" && len(args) > 1 {
			return status.ErrInvalidArgument.Describe("a signature goes with a single package file, got %d files", len(args))
		}

		return withOffline(func(a app.Application) error {
			ctx := cmd.Context()
			for _, file := range args {
				pkg, err := app.Deployments(a).Deploy(ctx, section, file, params.deploy.signature)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deployed %s to %s\n", pkg, section)
			}
			if !params.deploy.export {
				return nil
			}
			exporter := app.Exporter(a)
			exporter.AddDirtySections(section)
			return exporter.ExportToDisk(ctx)
		})
	},
}

func init() {
	requiredFlags := []string{addDeploySectionFlag(deployCmd)}
	addSignatureFlag(deployCmd)
	addExportAfterDeployFlag(deployCmd)

	for _, flag := range requiredFlags {
		if err := deployCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(deployCmd)
}
