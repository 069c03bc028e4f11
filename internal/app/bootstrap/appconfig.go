// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration. WAFFLE's CoreConfig covers
// ports, TLS, logging, CORS and body limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: donorlink-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Bearer tokens for non-browser clients. Blank secret disables them.
	JWTSecret string
	JWTTTL    time.Duration

	// Camp news feed
	NewsFeedLimit int     // newest approved announcements considered per feed load
	NewsRadiusKm  float64 // feed radius around the viewer

	// Live delivery
	LivePollInterval time.Duration // wake interval when change streams are unavailable
	ChangeStreams    bool          // try MongoDB change streams before polling

	// Chat messages allowed per sender per minute (0 disables the limit)
	MessageRatePerMinute int

	// Promoted to admin on startup if the account exists.
	BootstrapAdminEmail string

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth       string
	AuditLogModeration string

	// Handler timeouts (zero keeps the defaults)
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
