// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	adminstore "github.com/dalemusser/donorlink/internal/app/store/admins"
	"github.com/dalemusser/donorlink/internal/app/store/audit"
	userstore "github.com/dalemusser/donorlink/internal/app/store/users"
	"github.com/dalemusser/donorlink/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// promotes the bootstrap admin and starts the change watcher.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := ensureBootstrapAdmin(ctx, deps.MongoDatabase, appCfg, logger); err != nil {
		return err
	}
	if deps.Watcher != nil {
		deps.Watcher.Start()
	}
	return nil
}

// ensureBootstrapAdmin grants admin rights to the configured account. A
// missing account is not fatal: the operator may sign up after the first
// start and restart.
func ensureBootstrapAdmin(ctx context.Context, db *mongo.Database, appCfg AppConfig, logger *zap.Logger) error {
	if appCfg.BootstrapAdminEmail == "" {
		return nil
	}

	u, err := userstore.New(db).GetByEmail(ctx, appCfg.BootstrapAdminEmail)
	if errors.Is(err, userstore.ErrNotFound) {
		logger.Warn("bootstrap admin account not found; sign up and restart to promote it",
			zap.String("email", appCfg.BootstrapAdminEmail))
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	created, err := adminstore.New(db).EnsureAdmin(ctx, *u)
	if err != nil {
		return fmt.Errorf("grant bootstrap admin: %w", err)
	}
	if created {
		al := newAuditLogger(db, appCfg, logger)
		al.AdminGranted(ctx, nil, u.ID, u.Email)
		logger.Info("bootstrap admin granted", zap.String("email", u.Email))
	}
	return nil
}

func newAuditLogger(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) *auditlog.Logger {
	return auditlog.New(audit.New(db), logger.Named("audit"), auditlog.Config{
		Auth:       appCfg.AuditLogAuth,
		Moderation: appCfg.AuditLogModeration,
	})
}
