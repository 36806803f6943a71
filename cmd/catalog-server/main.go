package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/creature-catalog/internal/config"
	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logPretty  bool
	baseURL    string
	offset     int
	limit      int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "catalog-server",
		Short:         "Fetch and serve an enriched creature catalog page",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "human-readable log output")
	flags.StringVar(&opts.baseURL, "base-url", "", "catalog API base url")
	flags.IntVar(&opts.offset, "offset", 0, "page offset")
	flags.IntVar(&opts.limit, "limit", 0, "page size")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newFetchCmd(opts))

	return cmd
}

// loadConfig resolves defaults, file, environment and then explicitly set
// flags, and installs the global logger.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = opts.logPretty
	}
	if flags.Changed("base-url") {
		cfg.Catalog.BaseURL = opts.baseURL
	}
	if flags.Changed("offset") {
		cfg.Pipeline.Offset = opts.offset
	}
	if flags.Changed("limit") {
		cfg.Pipeline.Limit = opts.limit
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	logging.Setup(cfg.LoggingConfig())
	return cfg, nil
}
