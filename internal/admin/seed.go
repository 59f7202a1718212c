package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// Seeder creates the first admin account.
type Seeder interface {
	EnsureInitialAdmin(ctx context.Context, seed database.AdminSeed) (bool, error)
}

// SeedInitialAdmin creates the configured web admin when no admin exists yet.
// Without a password nothing is seeded. A TOTP secret is generated when none
// is configured and logged once so it can be enrolled in an authenticator.
func SeedInitialAdmin(ctx context.Context, store Seeder, cfg config.AdminConfig, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "admin_seed")

	if cfg.Password == "" {
		log.InfoContext(ctx, "No admin password configured, skipping initial admin seeding")
		return false, nil
	}

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	secret, generated := cfg.TOTPSecret, false
	if secret == "" {
		if secret, err = auth.NewTOTPSecret(cfg.Username); err != nil {
			return false, fmt.Errorf("failed to generate admin TOTP secret: %w", err)
		}
		generated = true
	}

	created, err := store.EnsureInitialAdmin(ctx, database.AdminSeed{
		Username:     cfg.Username,
		PasswordHash: hash,
		TOTPSecret:   secret,
	})
	if err != nil {
		return false, err
	}
	if !created {
		log.DebugContext(ctx, "Admin already exists, initial admin not seeded")
		return false, nil
	}

	if generated {
		log.WarnContext(ctx, "Initial admin created with a generated TOTP secret; add it to an authenticator app",
			"username", cfg.Username, "totp_secret", secret, "issuer", auth.TOTPIssuer)
	} else {
		log.InfoContext(ctx, "Initial admin created", "username", cfg.Username)
	}
	return true, nil
}
