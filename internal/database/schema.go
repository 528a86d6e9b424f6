package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chronicle/internal/config"
	"chronicle/internal/middleware"
	"chronicle/internal/models"

	"gorm.io/gorm"
)

// Values accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// Index names shared by the SQL migration and the GORM model tags.
const (
	SlugIndexName   = "idx_posts_slug"
	SearchIndexName = "idx_posts_search"
)

// SchemaPlan says which schema steps run for a mode in an environment.
type SchemaPlan struct {
	Mode string
	SQL  bool
	Auto bool
}

// PlanSchema resolves cfg.DBSchemaMode. AutoMigrate is never planned for
// production or staging databases; there the embedded SQL owns the schema.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	managed := managedEnv(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		return SchemaPlan{Mode: mode, SQL: true}, nil
	case SchemaModeHybrid:
		return SchemaPlan{Mode: mode, SQL: true, Auto: !managed}, nil
	case SchemaModeAuto:
		if managed {
			return SchemaPlan{}, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q, use sql or hybrid", cfg.Env)
		}
		return SchemaPlan{Mode: mode, Auto: true}, nil
	default:
		return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", cfg.DBSchemaMode)
	}
}

func managedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// AutoMigrate creates or alters tables for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema executes the plan for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.Auto {
		middleware.Logger.InfoContext(ctx, "running gorm automigrate",
			slog.String("mode", plan.Mode), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// SchemaReport is the output of InspectSchema.
type SchemaReport struct {
	Plan        SchemaPlan
	Environment string
	Applied     []int
	Pending     []Migration
	// MissingTables lists persistent tables that do not exist yet.
	MissingTables []string
	// SlugIndex reports whether the unique index on posts.slug exists.
	SlugIndex bool
	// DuplicateSlugs counts slugs held by more than one post; the unique index
	// cannot be built while it is non-zero.
	DuplicateSlugs int64
	// SearchIndex is only checked on PostgreSQL.
	SearchIndex bool
}

// Ready reports whether the posts table can rely on slug uniqueness.
func (r *SchemaReport) Ready() bool {
	return len(r.Pending) == 0 && len(r.MissingTables) == 0 && r.SlugIndex
}

// InspectSchema reports pending migrations and the state of the post tables.
func InspectSchema(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaReport, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	report := &SchemaReport{Plan: plan, Environment: cfg.Env}

	if plan.SQL {
		applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
		if err != nil {
			return nil, err
		}
		report.Applied = applied
		done := make(map[int]bool, len(applied))
		for _, v := range applied {
			done[v] = true
		}
		for _, m := range GetMigrations() {
			if !done[m.Version] {
				report.Pending = append(report.Pending, m)
			}
		}
	}

	tx := db.WithContext(ctx)
	migrator := tx.Migrator()
	for _, model := range PersistentModels() {
		if !migrator.HasTable(model) {
			stmt := &gorm.Statement{DB: tx}
			if err := stmt.Parse(model); err != nil {
				return nil, err
			}
			report.MissingTables = append(report.MissingTables, stmt.Table)
		}
	}
	if !migrator.HasTable(&models.Post{}) {
		return report, nil
	}

	report.SlugIndex = migrator.HasIndex(&models.Post{}, SlugIndexName)
	if tx.Dialector.Name() == "postgres" {
		report.SearchIndex = migrator.HasIndex(&models.Post{}, SearchIndexName)
	}

	dupes := tx.Model(&models.Post{}).Select("slug").Group("slug").Having("COUNT(*) > 1")
	if err := tx.Table("(?) AS dupes", dupes).Count(&report.DuplicateSlugs).Error; err != nil {
		return nil, fmt.Errorf("count duplicate slugs: %w", err)
	}
	return report, nil
}
