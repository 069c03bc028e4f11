// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	accountfeature "github.com/dalemusser/donorlink/internal/app/features/account"
	adminfeature "github.com/dalemusser/donorlink/internal/app/features/admin"
	chatsfeature "github.com/dalemusser/donorlink/internal/app/features/chats"
	donorsfeature "github.com/dalemusser/donorlink/internal/app/features/donors"
	healthfeature "github.com/dalemusser/donorlink/internal/app/features/health"
	newsfeature "github.com/dalemusser/donorlink/internal/app/features/news"
	ngosfeature "github.com/dalemusser/donorlink/internal/app/features/ngos"
	adminstore "github.com/dalemusser/donorlink/internal/app/store/admins"
	campnewsstore "github.com/dalemusser/donorlink/internal/app/store/campnews"
	chatstore "github.com/dalemusser/donorlink/internal/app/store/chats"
	ngostore "github.com/dalemusser/donorlink/internal/app/store/ngos"
	userstore "github.com/dalemusser/donorlink/internal/app/store/users"
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/nearby"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Stores are built once here and shared
// by the feature handlers; every store that writes notifies deps.Hub so
// open streams refresh.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fetch fresh user data on each request so admin grants and revocations
	// take effect without a new sign-in.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	if appCfg.JWTSecret != "" {
		if err := sessionMgr.EnableTokens(appCfg.JWTSecret, appCfg.JWTTTL); err != nil {
			logger.Error("bearer token init failed", zap.Error(err))
			return nil, err
		}
		logger.Info("bearer tokens enabled", zap.Duration("ttl", appCfg.JWTTTL))
	}

	httpjson.SetLogger(logger.Named("httpjson"))

	db := deps.MongoDatabase
	hub := deps.Hub

	users := userstore.New(db)
	admins := adminstore.New(db)
	ngos := ngostore.New(db, hub)
	news := campnewsstore.New(db, hub, logger)
	chats := chatstore.New(db, hub, logger)
	feed := nearby.NewFeed(news, hub, appCfg.NewsFeedLimit, appCfg.NewsRadiusKm)
	auditLog := newAuditLogger(db, appCfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, hub, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Route("/api", func(api chi.Router) {
		accountHandler := accountfeature.NewHandler(users, admins, sessionMgr, deps.LoginLimiter, auditLog, logger)
		api.Mount("/account", accountfeature.Routes(accountHandler, sessionMgr))

		donorsHandler := donorsfeature.NewHandler(users, logger)
		api.Mount("/donors", donorsfeature.Routes(donorsHandler, sessionMgr))

		chatsHandler := chatsfeature.NewHandler(chats, users, logger)
		chatsHandler.SendLimit = deps.MessageLimiter
		api.Mount("/chats", chatsfeature.Routes(chatsHandler, sessionMgr))

		ngosHandler := ngosfeature.NewHandler(ngos, news, logger)
		api.Mount("/ngos", ngosfeature.Routes(ngosHandler, sessionMgr))

		newsHandler := newsfeature.NewHandler(news, ngos, feed, logger)
		api.Mount("/news", newsfeature.Routes(newsHandler, sessionMgr))

		adminHandler := adminfeature.NewHandler(ngos, news, admins, auditLog, logger)
		api.Mount("/admin", adminfeature.Routes(adminHandler, sessionMgr))
	})

	return r, nil
}
