// Package app wires configuration, storage, background loops and the HTTP
// surface into a runnable gateway process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unigw/unigw/internal/config"
	"github.com/unigw/unigw/internal/db"
	"github.com/unigw/unigw/internal/feed"
	"github.com/unigw/unigw/internal/http/api/admin"
	"github.com/unigw/unigw/internal/http/api/gateway"
	"github.com/unigw/unigw/internal/ratelimit"
	"github.com/unigw/unigw/internal/routing"
	"github.com/unigw/unigw/internal/watcher"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// shutdownTimeout bounds graceful HTTP shutdown.
	shutdownTimeout = 10 * time.Second
	// pruneInterval is how often expired request logs are removed.
	pruneInterval = time.Hour
)

// RunServer loads configuration, prepares the database and serves the admin
// and data planes until the context is canceled.
func RunServer(ctx context.Context, appCfg config.AppConfig, portOverride int) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(appCfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	if portOverride > 0 {
		cfg.Port = portOverride
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	defer closeConn(conn)

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := syncMasterKey(conn, cfg.MasterKey); errSeed != nil {
		return errSeed
	}
	if errSecret := ensureJWTSecret(&cfg); errSecret != nil {
		return errSecret
	}

	engine := routing.NewEngine()
	discovery := routing.NewDiscovery()

	w := watcher.New(conn, discovery.Invalidate)
	// Load both snapshots before the first request; login verifies the master
	// key hash through the settings snapshot.
	w.PollRoutes(ctx, true)
	w.PollSettings(ctx, true)
	w.Start(ctx)
	defer w.Stop()

	// The writer drains on Close, which runs after the listener has stopped
	// accepting and in-flight handlers are done.
	writer := feed.NewWriter(conn, feed.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	writer.Start(context.Background())
	defer writer.Close()

	var provider ratelimit.SettingsProvider
	if cfg.Redis.Enabled() {
		provider = ratelimit.WithRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	limiter := ratelimit.NewManager(provider, nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())

	admin.RegisterAdminRoutes(r, conn, cfg.JWT, discovery)
	gateway.RegisterGatewayRoutes(r, conn, engine, discovery, limiter, writer)

	startPruneLoop(ctx, conn, cfg.LogRetention)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Error("server shutdown error")
		}
	}()

	log.Infof("unigw listening on %s", addr)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// Migrate prepares the database for the configured DSN without serving.
func Migrate(appCfg config.AppConfig) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(appCfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	defer closeConn(conn)

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := syncMasterKey(conn, cfg.MasterKey); errSeed != nil {
		return errSeed
	}
	log.Info("database migrated")
	return nil
}

// startPruneLoop removes request logs older than the retention window.
func startPruneLoop(ctx context.Context, conn *gorm.DB, retention time.Duration) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			pruned, errPrune := feed.PruneBefore(ctx, conn, time.Now().UTC().Add(-retention))
			if errPrune != nil {
				log.WithError(errPrune).Warn("request log prune failed")
			} else if pruned > 0 {
				log.Infof("pruned %d request logs older than %s", pruned, retention)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// closeConn closes the underlying sql connection pool.
func closeConn(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("db close error")
	}
}
