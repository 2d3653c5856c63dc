package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/codr1/themekit/internal/db"
)

func init() {
	migrateCmd := &cobra.Command{Use: "migrate", Short: "Schema migrations"}

	for _, command := range []string{"up", "down", "version"} {
		command := command
		migrateCmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: "Run migrate " + command,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				database, err := db.Open(cfg)
				if err != nil {
					return err
				}
				m, err := db.NewMigrator(database)
				if err != nil {
					database.Close()
					return err
				}
				defer m.Close()
				return runMigrate(m, command, os.Stdout)
			},
		})
	}

	rootCmd.AddCommand(migrateCmd)
}

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
}

func runMigrate(m migrator, command string, out io.Writer) error {
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Fprintln(out, "Successfully ran migrations up")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}
		fmt.Fprintln(out, "Successfully ran migrations down")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(out, "No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		fmt.Fprintf(out, "Version: %d, Dirty: %v\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate command: %s", command)
	}
	return nil
}
