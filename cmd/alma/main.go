package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	"almaconnector/pkg/logging"
)

var (
	configFile string
)

// @title        Alma Connector Resource API
// @version      1.0
// @description  Serves Alma records as InvenioRDM metadata

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @BasePath  /
// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:           "alma",
		Short:         "Alma connector for the repository",
		Long:          "Synchronizes records between the repository and Alma and serves Alma records over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (falls back to CONFIG_FILE)")

	rootCmd.AddCommand(
		importCmd(),
		createCmd(),
		updateCmd(),
		jobsCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		newPrinter(os.Stdout).Error(err.Error())
		os.Exit(1)
	}
}

// setup loads the configuration and the logger shared by every command.
// The config file is optional; environment variables fill the rest.
func setup() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}

	return cfg, log, nil
}

// withApp runs fn against an initialized App and shuts it down afterwards.
func withApp(fn func(ctx context.Context, app *App) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := NewApp(cfg, log)
	if err := app.Initialize(ctx, false); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := app.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.ErrorwCtx(ctx, "Shutdown error", "error", err)
		}
	}()

	return fn(ctx, app)
}
