// Package main provides the schema migration CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vestibule/vestibule/internal/config"
	"github.com/vestibule/vestibule/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dbFlags are shared by every subcommand. Defaults come from the same
// environment variables the API server reads.
type dbFlags struct {
	driver      string
	databaseURL string
	sqlitePath  string
}

func rootCmd() *cobra.Command {
	flags := &dbFlags{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the vestibule credential store schema",
		Long: `Apply, roll back and inspect the bundled schema migrations.

Examples:
  migrate up                                   # Apply pending migrations
  migrate status --driver sqlite               # Show SQLite migration state
  migrate down --database-url postgres://...   # Roll back one migration
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.applyEnvDefaults(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "Store driver: postgres or sqlite (default $DATABASE_DRIVER)")
	cmd.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL URL (default $DATABASE_URL or DB_* parts)")
	cmd.PersistentFlags().StringVar(&flags.sqlitePath, "sqlite-path", "", "SQLite database file (default $SQLITE_PATH)")

	cmd.AddCommand(upCmd(flags))
	cmd.AddCommand(downCmd(flags))
	cmd.AddCommand(statusCmd(flags))

	return cmd
}

// applyEnvDefaults fills flags the user did not set from the environment.
func (f *dbFlags) applyEnvDefaults(cmd *cobra.Command) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	if !cmd.Flags().Changed("driver") {
		f.driver = cfg.DatabaseDriver
	}
	if !cmd.Flags().Changed("database-url") {
		f.databaseURL = cfg.DatabaseDSN()
	}
	if !cmd.Flags().Changed("sqlite-path") {
		f.sqlitePath = cfg.SQLitePath
	}
	return nil
}

func (f *dbFlags) open(ctx context.Context) (*repository.Migrator, error) {
	switch f.driver {
	case config.DriverPostgres:
		return repository.NewPostgresMigrator(f.databaseURL)
	case config.DriverSQLite:
		return repository.OpenSQLiteMigrator(ctx, f.sqlitePath)
	case config.DriverMemory:
		return nil, fmt.Errorf("the memory driver has no schema to migrate")
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, f.driver)
	}
}

func upCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, flags, func(ctx context.Context, m *repository.Migrator) error {
				version, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}
}

func downCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, flags, func(ctx context.Context, m *repository.Migrator) error {
				version, err := m.Down(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}
}

func statusCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List bundled migrations and whether each is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, flags, func(ctx context.Context, m *repository.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				return printStatus(cmd.OutOrStdout(), statuses)
			})
		},
	}
}

func withMigrator(cmd *cobra.Command, flags *dbFlags, fn func(context.Context, *repository.Migrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := flags.open(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(ctx, m)
}

func printStatus(w io.Writer, statuses []repository.MigrationStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tSOURCE")
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, state, s.Source)
	}
	return tw.Flush()
}
