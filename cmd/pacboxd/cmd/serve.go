// Copyright © 2018 One Concern

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/app"
	"github.com/oneconcern/pacbox/pkg/errors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	Long: `Run the daemon: watch the manual pool, export dirty sections and serve metrics.

The daemon stops on SIGINT or SIGTERM. On SIGHUP, it rescans the manual pool and exports all sections again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := app.New(cfg, logger)
		if err := app.NewPacbox(a); err != nil {
			return err
		}
		if err := a.Init(); err != nil {
			_ = a.Stop()
			return err
		}

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(signals)

		if err := a.Start(); err != nil {
			_ = a.Stop()
			return err
		}
		logger.Info("serving", zap.String("box", cfg.Box.Dir), zap.String("pool", cfg.Pool.Dir))

		for sig := range signals {
			if sig != syscall.SIGHUP {
				logger.Info("received signal, stopping", zap.Stringer("signal", sig))
				break
			}
			if err := a.Reload(); err != nil {
				logger.Error("reload failed", zap.String("chain", errors.Chain(err)))
			}
		}
		return a.Stop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
