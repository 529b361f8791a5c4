// Command leeteectl is the operator tool for the Lee & Tee player: backups,
// content checks and setup helpers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leetee/internal/config"
	"leetee/internal/logger"
)

var (
	logMode string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "leeteectl",
	Short:         "Operator tool for the Lee & Tee lesson player",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			cfg = config.Load()
		}
		mode := logMode
		if mode == "" {
			mode = cfg.LogMode
		}
		l, err := logger.New(mode)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "Log mode: dev or prod (default: LOG_MODE)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(hashPINCmd)
	rootCmd.AddCommand(badWordsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
