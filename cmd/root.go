package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kilianp07/crisismatch/app"
	"github.com/kilianp07/crisismatch/config"
	"github.com/kilianp07/crisismatch/infra/logger"
)

var (
	cfgPath string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "crisismatch",
	Short: "Crisis responder matching service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal outside development.
		if err := godotenv.Load(envFile); err != nil {
			logger.New("main").Debugf("no env file %s: %v", envFile, err)
		}
	},
	RunE: run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the matching API and background loops",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the configuration")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
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
