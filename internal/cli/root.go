// Package cli wires the urlguard commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/urlguard"
	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

// NewRootCommand builds the urlguard command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "urlguard",
		Short: "Phishing URL classification service with a persisted feature cache.",
		Long: `urlguard extracts DNS, TLS, registration and page-content features of a URL,
classifies it as safe or phishing, and caches the extracted features so that
repeat checks within the expiration window skip the network lookups.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./urlguard.yaml or /etc/urlguard/urlguard.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCommand(opts),
		newCheckCommand(opts),
		newPurgeCommand(opts),
		newStatsCommand(opts),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	return cfg, nil
}

func (o *rootOptions) openGuard(ctx context.Context) (*urlguard.Guard, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	g, err := urlguard.New(ctx, urlguard.WithConfig(cfg))
	if err != nil {
		_ = cfg.Logger.Sync()
		return nil, err
	}
	return g, nil
}

func closeGuard(ctx context.Context, g *urlguard.Guard) {
	logger := g.Config().Logger
	if err := g.Close(ctx); err != nil {
		logger.Warn("Failed to close cleanly", zap.Error(err))
	}
	_ = logger.Sync()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
