// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/app"
	"github.com/oneconcern/pacbox/pkg/config"
	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pacboxd",
	Short: "pacboxd serves pacman package repositories",
	Long: `pacboxd keeps track of the packages of pacman repositories and exports them as a repository tree.

Packages are organized in sections: a branch, a repository and an architecture.
Each section is exported as a repository database, next to links to the package files of the pool.

Packages get into the pool by deployment, or by being dropped in the manual pool.
`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

var (
	cfg    *config.Config
	logger *zap.Logger

	// used to patch over calls to os.Exit() during test
	osExit = os.Exit
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.Chain(err))
		osExit(1)
	}
}

func init() {
	addConfigFlag(rootCmd)
	addLogLevelFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cmd *cobra.Command, _ []string) error {
	v := config.NewViper()
	if params.root.configFile != "" {
		v.SetConfigFile(params.root.configFile)
	}
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup(logLevelFlag)); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config.ErrInvalidConfig.Wrap(err)
		}
	}

	var err error
	if cfg, err = config.Load(v); err != nil {
		return err
	}
	if logger, err = dlogger.GetLogger(cfg.Log.Level); err != nil {
		return config.ErrInvalidConfig.Describe("log level %q", cfg.Log.Level).Wrap(err)
	}
	if file := v.ConfigFileUsed(); file != "" {
		logger.Debug("using config file", zap.String("file", file))
	}
	return nil
}

// offline starts an application for one-shot commands
func offline() (app.Application, error) {
	a := app.New(cfg, logger)
	if err := app.NewPacbox(a, app.Offline()); err != nil {
		return nil, err
	}
	if err := a.Init(); err != nil {
		_ = a.Stop()
		return nil, err
	}
	if err := a.Start(); err != nil {
		_ = a.Stop()
		return nil, err
	}
	return a, nil
}

// withOffline runs fn against an offline application, which is stopped afterwards
func withOffline(fn func(app.Application) error) (err error) {
	a, err := offline()
	if err != nil {
		return err
	}
	defer func() {
		if e := a.Stop(); err == nil {
			err = e
		}
	}()
	return fn(a)
}
