package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railsched/app"
	"github.com/kilianp07/railsched/config"
	"github.com/kilianp07/railsched/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "railsched",
	Short:        "Rail section schedule optimizer",
	SilenceUsage: true,
	RunE:         run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the optimization HTTP API",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration file. A missing default file falls back
// to built-in defaults and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
