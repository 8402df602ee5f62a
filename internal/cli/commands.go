package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"goflare.io/urlguard"
	"goflare.io/urlguard/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, err := opts.openGuard(ctx)
			if err != nil {
				return err
			}
			defer closeGuard(cmd.Context(), g)

			cfg := g.Config()
			return server.New(g, g.Registry(), cfg.Server, cfg.Logger).Run(ctx)
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Classify a single URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := opts.openGuard(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGuard(cmd.Context(), g)

			verdict, err := g.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, verdict)
		},
	}
}

func newPurgeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired entries from the result cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := opts.openGuard(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGuard(cmd.Context(), g)

			n, err := g.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries\n", n)
			return nil
		},
	}
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the last persisted cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := opts.openGuard(cmd.Context())
			if err != nil {
				return err
			}
			// Read before Close, which writes this process's own snapshot.
			report, err := g.Stats(cmd.Context())
			closeGuard(cmd.Context(), g)
			if errors.Is(err, urlguard.ErrStatsUnavailable) {
				return errors.New("no cache statistics available yet")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}
