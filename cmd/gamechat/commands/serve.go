package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"gamechat/internal/app"
	"gamechat/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// A relay without a reachable store cannot serve; bootstrap
		// failure after the bounded retries is fatal.
		application, err := app.New(cfg)
		if err != nil {
			log.WithError(err).Fatal("failed to start chat relay")
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- application.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("received shutdown signal")
		case err := <-errCh:
			if err != nil {
				log.WithError(err).Error("server stopped unexpectedly")
				return err
			}
			return nil
		}

		return application.Stop(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
