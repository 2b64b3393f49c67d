// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oneconcern/pacbox/pkg/app"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the repository tree",
	Long: `Export the repository databases and package links of the box, then exit.

All sections are exported, unless some are specified with --section.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sections := params.export.sections
		return withOffline(func(a app.Application) error {
			if len(sections) == 0 {
				sections = app.Box(a).Sections()
			}
			exporter := app.Exporter(a)
			exporter.AddDirtySections(sections...)
			return exporter.ExportToDisk(cmd.Context())
		})
	},
}

func init() {
	addExportSectionsFlag(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
