package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"chronicle/internal/config"
	"chronicle/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type opener func() (*gorm.DB, *config.Config, error)

// errNotReady is returned by `status --strict` when posts cannot rely on slug uniqueness yet.
var errNotReady = errors.New("schema is not ready")

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Chronicle schema management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(upCmd(open), autoCmd(open), statusCmd(open), downCmd(open))
	return root
}

func upCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := open()
			if err != nil {
				return err
			}
			if err := database.RunMigrations(cmd.Context(), db); err != nil {
				return fmt.Errorf("sql migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sql migrations applied")
			return nil
		},
	}
}

func autoCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "auto",
		Short: "Run GORM AutoMigrate for every model (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := open()
			if err != nil {
				return err
			}
			cfg.DBSchemaMode = database.SchemaModeAuto
			if err := database.ApplySchema(cmd.Context(), db, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "models migrated")
			return nil
		},
	}
}

func statusCmd(open opener) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending migrations and the state of the posts table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := open()
			if err != nil {
				return err
			}
			report, err := database.InspectSchema(cmd.Context(), db, cfg)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if strict && !report.Ready() {
				return errNotReady
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail unless every migration, table and the slug index are in place")
	return cmd
}

func printReport(w io.Writer, r *database.SchemaReport) {
	fmt.Fprintf(w, "mode=%s env=%s sql=%t auto=%t\n", r.Plan.Mode, r.Environment, r.Plan.SQL, r.Plan.Auto)
	if r.Plan.SQL {
		fmt.Fprintf(w, "migrations: %d applied, %d pending\n", len(r.Applied), len(r.Pending))
		for _, m := range r.Pending {
			fmt.Fprintf(w, "  pending %s\n", m.String())
		}
	}
	for _, t := range r.MissingTables {
		fmt.Fprintf(w, "missing table: %s\n", t)
	}
	fmt.Fprintf(w, "slug index: %s\n", present(r.SlugIndex))
	if r.DuplicateSlugs > 0 {
		fmt.Fprintf(w, "duplicate slugs: %d (resolve before creating %s)\n", r.DuplicateSlugs, database.SlugIndexName)
	}
	if r.SearchIndex {
		fmt.Fprintln(w, "search index: present")
	}
}

func present(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func downCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "down <version>",
		Short: "Roll back one applied SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < 1 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			db, _, err := open()
			if err != nil {
				return err
			}
			if err := database.RollbackMigration(cmd.Context(), db, version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %06d\n", version)
			return nil
		},
	}
}
