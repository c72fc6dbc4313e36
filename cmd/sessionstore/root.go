package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sessionstore"
	"github.com/aretw0/sessionstore/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "sessionstore",
	Short:         "Sessionstore keeps ephemeral sandbox sessions in memory or Redis",
	Long:          `Sessionstore stores time-limited session state (language, files) keyed by an opaque id. Set REDIS_URL or REDIS_URI to use Redis; otherwise sessions live in process memory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
}

// app bundles what a command needs. The store is created once per invocation
// and passed explicitly to whatever uses it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sessionstore.Store
}

func newApp(cmd *cobra.Command, extra ...sessionstore.Option) (*app, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.StoreOptions(logger)
	if err != nil {
		return nil, err
	}

	store, err := sessionstore.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close session store", "error", err)
	}
}
