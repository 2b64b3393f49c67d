// Copyright © 2018 One Concern

package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oneconcern/pacbox/pkg/model"
)

type paramsT struct {
	root struct {
		configFile string
		logLevel   string
	}
	deploy struct {
		section   model.Section
		signature string
		export    bool
	}
	export struct {
		sections []model.Section
	}
}

var params = paramsT{}

const (
	logLevelFlag = "log-level"
	sectionFlag  = "section"
)

func addConfigFlag(cmd *cobra.Command) string {
	const c = "config"
	cmd.PersistentFlags().StringVar(&params.root.configFile, c, "", "Configuration file, in place of the pacboxd.yaml file found in the usual places")
	return c
}

func addLogLevelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().StringVar(&params.root.logLevel, logLevelFlag, "", "Log level: info, debug, none or any zap level")
	return logLevelFlag
}

func addDeploySectionFlag(cmd *cobra.Command) string {
	cmd.Flags().Var(&sectionValue{section: &params.deploy.section}, sectionFlag, "Section to deploy to, as branch/repository/architecture")
	return sectionFlag
}

func addSignatureFlag(cmd *cobra.Command) string {
	const c = "signature"
	cmd.Flags().StringVar(&params.deploy.signature, c, "", "Detached signature of the package file")
	return c
}

func addExportAfterDeployFlag(cmd *cobra.Command) string {
	const c = "export"
	cmd.Flags().BoolVar(&params.deploy.export, c, false, "Export the section once the package is deployed")
	return c
}

func addExportSectionsFlag(cmd *cobra.Command) string {
	cmd.Flags().Var(&sectionsValue{sections: &params.export.sections}, sectionFlag, "Sections to export, as branch/repository/architecture (defaults to all sections)")
	return sectionFlag
}

var (
	_ pflag.Value = &sectionValue{}
	_ pflag.Value = &sectionsValue{}
)

// sectionValue is a flag holding a section, as branch/repository/architecture
type sectionValue struct {
	section *model.Section
}

func (v *sectionValue) String() string {
	if v.section == nil || *v.section == (model.Section{}) {
		return ""
	}
	return v.section.String()
}

func (v *sectionValue) Set(s string) error {
	section, err := model.ParseSection(s)
	if err != nil {
		return err
	}
	*v.section = section
	return nil
}

func (v *sectionValue) Type() string { return "section" }

// sectionsValue is a repeatable flag accumulating sections
type sectionsValue struct {
	sections *[]model.Section
}

func (v *sectionsValue) String() string {
	if v.sections == nil {
		return ""
	}
	values := make([]string, 0, len(*v.sections))
	for _, section := range *v.sections {
		values = append(values, section.String())
	}
	return strings.Join(values, ",")
}

func (v *sectionsValue) Set(s string) error {
	for _, value := range strings.Split(s, ",") {
		section, err := model.ParseSection(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*v.sections = append(*v.sections, section)
	}
	return nil
}

func (v *sectionsValue) Type() string { return "sections" }
