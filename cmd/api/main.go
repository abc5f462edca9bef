package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/config"
	"authgate/internal/httpserver"
	"authgate/internal/httpserver/handlers"
	"authgate/internal/logger"
	"authgate/internal/models"
	"authgate/internal/ratelimit"
	"authgate/internal/seed"
	"authgate/internal/store"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Permission{}, &models.Role{}, &models.User{},
		&models.Session{}, &models.Setting{}, &models.AuditLog{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	ctx := context.Background()
	stores := store.New(db)
	defaults := models.Setting{
		AccessTokenSecret:  cfg.AccessTokenSecret,
		RefreshTokenSecret: cfg.RefreshTokenSecret,
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		ExtendedRefreshTTL: cfg.ExtendedRefreshTTL,
		MaxLoginAttempts:   cfg.MaxLoginAttempts,
		LockoutDuration:    cfg.LockoutDuration,
	}
	if err := seed.Run(ctx, stores, defaults, cfg.AdminEmail, cfg.AdminPassword, lg); err != nil {
		lg.Fatalw("seed failed", "error", err)
	}
	settings, err := stores.Settings.Get(ctx, defaults)
	if err != nil {
		lg.Fatalw("settings load failed", "error", err)
	}

	tokens := auth.NewTokenService(settings.AccessTokenSecret, settings.RefreshTokenSecret,
		auth.WithAccessTTL(config.ParseTTL(settings.AccessTokenTTL, 15*time.Minute)),
		auth.WithRefreshTTL(
			config.ParseTTL(settings.RefreshTokenTTL, 7*24*time.Hour),
			config.ParseTTL(settings.ExtendedRefreshTTL, 30*24*time.Hour),
		),
	)
	recorder := audit.NewRecorder(db, lg)
	svc := auth.NewService(stores, tokens, recorder, lg)
	mw := auth.NewMiddleware(tokens, stores.Permissions, lg)
	limiter := ratelimit.NewMemory(settings.MaxLoginAttempts, config.ParseTTL(settings.LockoutDuration, time.Minute))
	defer limiter.Stop()

	go purgeSessions(ctx, stores.Sessions, lg)

	router := httpserver.NewRouter(httpserver.Deps{
		Stores:       stores,
		Auth:         svc,
		MW:           mw,
		Audit:        recorder,
		LoginLimiter: limiter,
		Cookies: handlers.CookieConfig{
			Secure:    cfg.Production(),
			AccessTTL: tokens.AccessTTL(),
		},
		SettingDefaults: defaults,
		Log:             lg,
	})

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

// purgeSessions sweeps expired session rows hourly; sessions are already
// invisible to lookups once past expiry, this only reclaims storage.
func purgeSessions(ctx context.Context, sessions *store.Sessions, lg *zap.SugaredLogger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for range t.C {
		n, err := sessions.PurgeExpired(ctx)
		if err != nil {
			lg.Warnw("session purge failed", "error", err)
			continue
		}
		if n > 0 {
			lg.Infow("purged expired sessions", "count", n)
		}
	}
}
