package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/spf13/cobra"

	"github.com/fieldcrew/mobsched/modules"
	"github.com/fieldcrew/mobsched/pkg/application"
	"github.com/fieldcrew/mobsched/pkg/configuration"
)

type migrationLine struct {
	Module    string `json:"module"`
	Version   int64  `json:"version"`
	Path      string `json:"path"`
	Direction string `json:"direction,omitempty"`
	State     string `json:"state,omitempty"`
	AppliedAt string `json:"applied_at,omitempty"`
}

func newMigrateCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	cmd.PersistentFlags().StringVar(&module, "module", "", "Only run migrations of this module")

	run := func(action string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			sources, err := migrationSources(module)
			if err != nil {
				return err
			}
			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()

			for _, src := range sources {
				if err := runMigrations(cmd.Context(), cmd.OutOrStdout(), db, src, action); err != nil {
					return err
				}
			}
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: noArgs, RunE: run("up")})
	cmd.AddCommand(&cobra.Command{Use: "down", Short: "Roll back the latest migration of each module", Args: noArgs, RunE: run("down")})
	cmd.AddCommand(&cobra.Command{Use: "status", Short: "List migrations and whether they are applied", Args: noArgs, RunE: run("status")})
	return cmd
}

// migrationSources collects the schemas registered by the built-in modules.
func migrationSources(only string) ([]application.MigrationSource, error) {
	conf := configuration.Use()
	app := application.New(&application.ApplicationOptions{Logger: conf.Logger()})
	if err := modules.Load(app, modules.BuiltInModules(conf)...); err != nil {
		return nil, withCode(exitUsage, err)
	}
	sources := app.Migrations().Sources()
	if only == "" {
		return sources, nil
	}
	for _, src := range sources {
		if src.Module == only {
			return []application.MigrationSource{src}, nil
		}
	}
	return nil, withCode(exitUsage, fmt.Errorf("unknown module %q", only))
}

func newProvider(db *sql.DB, src application.MigrationSource) (*goose.Provider, error) {
	fsys, err := fs.Sub(src.FS, src.Dir)
	if err != nil {
		return nil, err
	}
	store, err := database.NewStore(database.DialectPostgres, fmt.Sprintf("goose_%s_version", src.Module))
	if err != nil {
		return nil, err
	}
	return goose.NewProvider("", db, fsys, goose.WithStore(store))
}

func runMigrations(ctx context.Context, w io.Writer, db *sql.DB, src application.MigrationSource, action string) error {
	provider, err := newProvider(db, src)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("%s migrations: %w", src.Module, err))
	}

	switch action {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			if wErr := writeJSONLine(w, resultLine(src.Module, r)); wErr != nil {
				return wErr
			}
		}
		if err != nil {
			return withCode(exitDB, fmt.Errorf("%s migrate up: %w", src.Module, err))
		}
	case "down":
		r, err := provider.Down(ctx)
		if r != nil {
			if wErr := writeJSONLine(w, resultLine(src.Module, r)); wErr != nil {
				return wErr
			}
		}
		if err != nil {
			return withCode(exitDB, fmt.Errorf("%s migrate down: %w", src.Module, err))
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return withCode(exitDB, fmt.Errorf("%s migrate status: %w", src.Module, err))
		}
		for _, s := range statuses {
			line := migrationLine{Module: src.Module, State: string(s.State)}
			if s.Source != nil {
				line.Version = s.Source.Version
				line.Path = s.Source.Path
			}
			if !s.AppliedAt.IsZero() {
				line.AppliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			if err := writeJSONLine(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func resultLine(module string, r *goose.MigrationResult) migrationLine {
	line := migrationLine{Module: module, Direction: r.Direction}
	if r.Source != nil {
		line.Version = r.Source.Version
		line.Path = r.Source.Path
	}
	return line
}
