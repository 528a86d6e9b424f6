// Package bootstrap prepares the database and Redis for the server and CLI commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chronicle/internal/cache"
	"chronicle/internal/config"
	"chronicle/internal/database"
	"chronicle/internal/middleware"
	"chronicle/internal/models"
	"chronicle/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with fake content.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis, ensures the development root admin
// and optionally seeds demo content.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; the client is nil when unreachable.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo && !cfg.IsProduction() {
		if err := seedIfEmpty(ctx, cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the configured root account when
// APP_ENV=development and DEV_BOOTSTRAP_ROOT is set. It is a no-op otherwise.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "chronicle_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@chronicle.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashed),
				Name:     "Root",
				Role:     models.RoleAdmin,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		case root.Role != models.RoleAdmin:
			return tx.Model(&models.User{}).Where("id = ?", root.ID).Update("role", models.RoleAdmin).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", slog.String("email", email))
	return nil
}

func seedIfEmpty(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := seed.New(db, 0).Run(ctx, seed.Options{
		NumUsers:    8,
		NumPosts:    40,
		NumComments: 80,
		DraftRatio:  0.15,
		Categories:  cfg.CategoryList(),
		SkipBcrypt:  true,
	})
	return err
}
