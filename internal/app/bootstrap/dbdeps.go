// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/ratelimit"
	"github.com/dalemusser/donorlink/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and back-end dependencies for the app. It is
// built once in ConnectDB and shared by every later hook.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Hub routes change notifications to live subscriptions.
	Hub *live.Hub
	// Watcher feeds changes made by other instances into Hub.
	Watcher *workers.ChangeWatcher
	// LoginLimiter throttles password guessing.
	LoginLimiter *ratelimit.LoginLimiter
	// MessageLimiter caps chat sends per user. Nil when disabled.
	MessageLimiter *ratelimit.Limiter
}
