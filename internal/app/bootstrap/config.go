// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for DonorLink.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: DONORLINK_MONGO_URI, DONORLINK_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "donorlink", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "donorlink-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "", Desc: "Signing secret for bearer tokens (blank disables tokens)"},
	{Name: "jwt_ttl", Default: "24h", Desc: "Bearer token lifetime"},

	// Camp news feed
	{Name: "news_feed_limit", Default: 50, Desc: "Newest approved announcements considered per feed load"},
	{Name: "news_radius_km", Default: 100, Desc: "Feed radius in kilometres"},

	// Live delivery
	{Name: "live_poll_interval", Default: "5s", Desc: "Subscription wake interval when change streams are unavailable"},
	{Name: "change_streams", Default: true, Desc: "Use MongoDB change streams for cross-instance live updates"},

	// Abuse limits
	{Name: "message_rate_per_minute", Default: 30, Desc: "Chat messages allowed per sender per minute (0 disables)"},

	// Admin bootstrap
	{Name: "bootstrap_admin_email", Default: "", Desc: "Email of an existing account to promote to admin on startup"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_moderation", Default: "all", Desc: "Moderation event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list queries and live reloads"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for transactional writes"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// DONORLINK_* environment variables and flags, merged with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "DONORLINK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    appValues.Duration("jwt_ttl", 24*time.Hour),

		NewsFeedLimit: appValues.Int("news_feed_limit"),
		NewsRadiusKm:  float64(appValues.Int("news_radius_km")),

		LivePollInterval: appValues.Duration("live_poll_interval", 5*time.Second),
		ChangeStreams:    appValues.Bool("change_streams"),

		MessageRatePerMinute: appValues.Int("message_rate_per_minute"),

		BootstrapAdminEmail: appValues.String("bootstrap_admin_email"),

		AuditLogAuth:       appValues.String("audit_log_auth"),
		AuditLogModeration: appValues.String("audit_log_moderation"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here to catch configuration errors before
// attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must be set")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}
	if appCfg.NewsFeedLimit <= 0 {
		return fmt.Errorf("news_feed_limit must be positive")
	}
	if appCfg.NewsRadiusKm <= 0 {
		return fmt.Errorf("news_radius_km must be positive")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters in production")
	}
	for key, v := range map[string]string{
		"audit_log_auth":       appCfg.AuditLogAuth,
		"audit_log_moderation": appCfg.AuditLogModeration,
	} {
		switch v {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, v)
		}
	}
	return nil
}
