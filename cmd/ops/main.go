// Command ops is the AutoTrack operations CLI.
//
// Usage:
//
//	autotrack-ops sweep
//	autotrack-ops sweep --dry-run
//	autotrack-ops vapid generate
//	autotrack-ops snapshot export
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/autotrack/internal/config"
	"github.com/albapepper/autotrack/internal/push"
	"github.com/albapepper/autotrack/internal/store"
	"github.com/albapepper/autotrack/internal/sweep"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "autotrack-ops",
		Short: "AutoTrack operations CLI",
	}

	root.AddCommand(sweepCmd())
	root.AddCommand(vapidCmd())
	root.AddCommand(snapshotCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one notification sweep pass and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				sender := push.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, logger)
				sweeper := sweep.NewSweeper(st, sender, logger)

				report, err := sweeper.Run(ctx, sweep.Options{DryRun: dryRun})
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and count without sending or persisting")
	return cmd
}

// --------------------------------------------------------------------------
// vapid command
// --------------------------------------------------------------------------

func vapidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vapid",
		Short: "VAPID key utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh VAPID key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, publicKey, err := push.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate VAPID keys: %w", err)
			}
			fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
			fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
			return nil
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// snapshot command
// --------------------------------------------------------------------------

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Household snapshot utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the full household snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				snap, _, err := st.Snapshot(ctx)
				if err != nil {
					return err
				}
				return printJSON(snap)
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

func withStore(fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	return fn(ctx, cfg, st)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
