// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/indexes"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/ratelimit"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/donorlink/internal/app/system/validators"
	"github.com/dalemusser/donorlink/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and builds the in-process back ends that
// depend on it. Timeouts are configured here so the initial ping already
// honours them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, timeouts.Long())
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(appCfg.MongoDatabase)
	hub := live.NewHub(logger.Named("live"))

	msgLimiter := newMessageLimiter(appCfg)

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool_size", appCfg.MongoMinPoolSize))

	return DBDeps{
		MongoClient:    client,
		MongoDatabase:  db,
		Hub:            hub,
		Watcher:        workers.NewChangeWatcher(db, hub, logger.Named("changewatch"), appCfg.LivePollInterval, appCfg.ChangeStreams),
		LoginLimiter:   ratelimit.NewLoginLimiter(),
		MessageLimiter: msgLimiter,
	}, nil
}

// EnsureSchema applies collection validators and indexes. Both steps are
// idempotent and safe to run on every start.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return fmt.Errorf("ensure validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("schema ensured")
	return nil
}

// newMessageLimiter returns the per-sender chat limiter, or nil when
// message_rate_per_minute is zero.
func newMessageLimiter(appCfg AppConfig) *ratelimit.Limiter {
	if appCfg.MessageRatePerMinute <= 0 {
		return nil
	}
	return ratelimit.New(appCfg.MessageRatePerMinute, time.Minute)
}
