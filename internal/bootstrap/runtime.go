// Package bootstrap connects the runtime dependencies shared by the server and the CLI tools.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"press/internal/cache"
	"press/internal/config"
	"press/internal/database"
	"press/internal/middleware"
	"press/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis leaves the redis client nil, e.g. for one-shot CLI commands.
	SkipRedis bool
}

// InitRuntime connects to the database and Redis and ensures the development
// root admin when DEV_BOOTSTRAP_ROOT is set. The redis client is nil when
// Redis is unreachable or skipped.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	var r *redis.Client
	if !opts.SkipRedis {
		cache.InitRedis(cfg.RedisURL)
		r = cache.GetClient()
	}

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}
	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes an active admin with a complete
// profile. It only acts in development with DEV_BOOTSTRAP_ROOT enabled.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "press_root"
	}
	email := strings.ToLower(strings.TrimSpace(cfg.DevRootEmail))
	if email == "" {
		email = "root@press.local"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		err := tx.Where("username = ?", username).First(&root).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hash),
				IsActive: true,
				IsAdmin:  true,
				Profile: &models.Profile{
					Name:        "Root",
					Description: "Site administrator",
				},
			}
			return tx.Create(&root).Error
		case err != nil:
			return err
		}
		return tx.Model(&root).Updates(map[string]any{"is_admin": true, "is_active": true}).Error
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", "username", username)
	return nil
}
