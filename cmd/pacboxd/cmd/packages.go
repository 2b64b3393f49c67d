// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/oneconcern/pacbox/pkg/app"
	"github.com/oneconcern/pacbox/pkg/model"
)

var listCmd = &cobra.Command{
	Use:   "list <section>",
	Short: "List the packages of a section",
	Long:  "List the packages of a section, as branch/repository/architecture, with their pool location and file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, err := model.ParseSection(args[0])
		if err != nil {
			return err
		}
		return withOffline(func(a app.Application) error {
			pkgs, err := app.Packages(a).List(cmd.Context(), section)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("PACKAGE", "LOCATION", "SIGNED", "FILE")
			for _, pkg := range pkgs {
				table.AddRow(pkg, pkg.Location, pkg.HasSignature, pkg.Filepath)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the changes made to the box",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOffline(func(a app.Application) error {
			entries, err := app.LogEntries(a).Events(cmd.Context())
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s %s\n",
					entry.ID, entry.Time.Format(time.RFC3339), entryType(entry.Type), entry.Package.Section, entry.Package)
			}
			return nil
		})
	},
}

func entryType(typ model.LogEntryType) string {
	s := fmt.Sprintf("%-6s", typ)
	switch typ {
	case model.LogEntryAdd:
		return color.GreenString(s)
	case model.LogEntryRemove:
		return color.RedString(s)
	default:
		return color.YellowString(s)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(logCmd)
}
