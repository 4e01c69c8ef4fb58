package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adopsbot/adopsbot/internal/daemon"
	"github.com/adopsbot/adopsbot/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the permission sync and the command gateway",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, args); err != nil {
				return err
			}

			if devMode {
				cfg.DevMode = true
			}

			return logger.Init(cfg.Log) //nolint:wrapcheck
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			defer func() {
				if err := logger.Close(); err != nil {
					log.Error().Err(err).Msg("failed to flush logs")
				}
			}()

			d, err := daemon.New(&cfg)
			if err != nil {
				log.Error().Err(err).Msg("failed to start")
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err = d.Run(ctx); err != nil {
				log.Error().Err(err).Msg("stopped with error")
				return err //nolint:wrapcheck
			}

			log.Info().Msg("stopped")

			return nil
		},
	}
)
