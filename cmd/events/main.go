// Package main provides a CLI for reading the auth event stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vestibule/vestibule/internal/events"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var errNoRedis = errors.New("no Redis URL: set --redis-url or REDIS_URL")

type envConfig struct {
	RedisURL string `env:"REDIS_URL"`
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "events",
		Short:        "Inspect the vestibule auth event stream",
		SilenceUsage: true,
	}

	cmd.AddCommand(recentCmd())

	return cmd
}

func recentCmd() *cobra.Command {
	var (
		redisURL   string
		count      int64
		outputJSON bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the newest auth events, newest first",
		Long: `Print the newest auth events from the Redis stream.

Examples:
  events recent                      # Last 20 events from $REDIS_URL
  events recent -n 100 --json        # Last 100 as JSON lines
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("redis-url") {
				var cfg envConfig
				if err := env.Parse(&cfg); err != nil {
					return fmt.Errorf("parse environment: %w", err)
				}
				redisURL = cfg.RedisURL
			}
			if redisURL == "" {
				return errNoRedis
			}
			if count <= 0 {
				return fmt.Errorf("count must be positive, got %d", count)
			}

			opts, err := redis.ParseURL(redisURL)
			if err != nil {
				return fmt.Errorf("parse Redis URL: %w", err)
			}
			client := redis.NewClient(opts)
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			recent, err := events.NewPublisher(client, nil, nil).Recent(ctx, count)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), recent)
			}
			return printTable(cmd.OutOrStdout(), recent)
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL (default $REDIS_URL)")
	cmd.Flags().Int64VarP(&count, "count", "n", 20, "Number of events to print")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output one JSON object per line")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Redis read timeout")

	return cmd
}

func printTable(w io.Writer, recent []events.AuthEvent) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tOUTCOME\tUSER\tSUBJECT")
	for _, e := range recent {
		user := "-"
		if e.UserID > 0 {
			user = fmt.Sprint(e.UserID)
		}
		at := time.UnixMilli(e.OccurredAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", at, e.Type, e.Outcome, user, e.Subject)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, recent []events.AuthEvent) error {
	enc := json.NewEncoder(w)
	for _, e := range recent {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
