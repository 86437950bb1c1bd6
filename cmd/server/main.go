// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/cache"
	"github.com/jason-s-yu/arena/internal/config"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/handlers"
	"github.com/jason-s-yu/arena/internal/seed"
	"github.com/jason-s-yu/arena/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// backend is what the server needs from either store implementation.
type backend interface {
	arena.Store
	seed.Writer
}

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("ARENA_CONFIG"))
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.PrivateKeyPath != "" && cfg.Auth.PublicKeyPath != "" {
		if err := auth.InitFromPath(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.TokenExpiry); err != nil {
			return err
		}
	} else if err := auth.Init(cfg.Auth.TokenExpiry); err != nil {
		return err
	}

	var st backend
	switch cfg.Store.Kind {
	case "postgres":
		if err := database.ConnectDB(ctx, cfg.Database.DSN(), cfg.Database.MaxConns); err != nil {
			return err
		}
		defer database.DB.Close()
		if err := database.EnsureSchema(ctx, database.DB); err != nil {
			return err
		}
		st = database.NewStore(database.DB)
	default:
		logger.Warn("using in-memory store; state is lost on restart and not shared between replicas")
		st = store.NewMemory()
	}

	if cfg.Store.SeedFile != "" {
		data, err := seed.Load(cfg.Store.SeedFile)
		if err != nil {
			return err
		}
		counts, err := seed.Apply(ctx, st, data)
		if err != nil {
			return err
		}
		logger.WithField("counts", counts).Info("seed file applied")
	}

	if cfg.Feed.Relay == "redis" || cfg.Historian.Enabled {
		if err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return err
		}
		defer cache.Rdb.Close()
	}

	hub := feed.NewHub(logger)
	var relay feed.Relay
	switch cfg.Feed.Relay {
	case "redis":
		relay = feed.NewRedisRelay(cache.Rdb, feed.DefaultRedisPrefix, logger)
	case "nats":
		nc, err := feed.DialNATS(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		relay = feed.NewNATSRelay(nc, logger)
	case "postgres":
		relay = feed.NewPostgresRelay(database.DB, feed.DefaultNotifyChannel, logger)
	}

	// With a relay, every event (including this instance's own) reaches the
	// hub through the relay subscription.
	var publisher feed.Publisher = hub
	if relay != nil {
		publisher = relay
		defer relay.Close()
	}

	var actions arena.ActionSink
	if cfg.Historian.Enabled {
		actions = cache.NewActionQueue(cache.Rdb, cfg.Redis.Queue)
	}

	coord := arena.NewCoordinator(arena.Config{
		Store:   st,
		Feed:    publisher,
		Actions: actions,
		Logger:  logger,
	})

	srv := &handlers.ArenaServer{
		Coordinator:         coord,
		Hub:                 hub,
		Profiles:            st,
		Logger:              logger,
		AdminPassphraseHash: cfg.Auth.AdminPassphraseHash,
		TokenMaxAge:         cfg.Auth.TokenExpiry,
		ObserverExpiry:      cfg.Timer.Mode == "observer",
		Tick:                cfg.Timer.Tick,
		OriginPatterns:      cfg.HTTP.AllowedOrigins,
	}
	if srv.AdminPassphraseHash == "" {
		logger.Warn("ARENA_AUTH_ADMIN_PASSPHRASE_HASH is empty; admin login is disabled")
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           c.Handler(srv.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx, hub) })
	}
	if cfg.Timer.Mode == "server" {
		tk := arena.NewTimekeeper(coord, hub)
		g.Go(func() error { return tk.Run(gctx) })
	}

	return g.Wait()
}
