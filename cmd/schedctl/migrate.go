package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"scheduling-api/internal/config"
	"scheduling-api/internal/migrate"
)

func migrateCmd() *cobra.Command {
	var dsn, dir string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Long: `Apply the .sql files in --dir that are not yet recorded in schema_migrations.

The database defaults to DB_DSN. Each file runs in its own transaction and an
applied file whose contents changed is reported as an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = config.Load().DBDSN
			}
			if dsn == "" {
				return errors.New("no database: set --dsn or DB_DSN")
			}
			out := cmd.OutOrStdout()

			if dryRun {
				files, err := migrate.Files(os.DirFS(dir))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Found %d migration files\n", len(files))
				for _, f := range files {
					fmt.Fprintf(out, "  %s  %s\n", f.Checksum[:12], f.Name)
				}
				return nil
			}

			db, err := sql.Open("pgx", dsn)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}

			applied, err := migrate.Apply(ctx, db, os.DirFS(dir))
			for _, name := range applied {
				fmt.Fprintf(out, "Applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Nothing to apply")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string")
	cmd.Flags().StringVar(&dir, "dir", "db/migrations", "migrations directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list migrations without touching the database")
	return cmd
}
