package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/foodshop/internal/cartstore"
	"github.com/Skotchmaster/foodshop/internal/httpserver"
	"github.com/Skotchmaster/foodshop/internal/mykafka"
	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/internal/search"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/db"
	authmw "github.com/Skotchmaster/foodshop/pkg/middleware/auth"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  serveCommand,
	}
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, gdb, err := openStore(ctx)
	if err != nil {
		return err
	}
	cfg.MustServe()
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Error("db close error", "error", err)
		}
	}()
	r := repo.New(gdb)

	var carts cartstore.Store = cartstore.NewMemoryStore(cfg.CartTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		carts = cartstore.NewRedisStore(rdb, cfg.CartTTL)
		log.Info("cart store: redis", "addr", cfg.RedisAddr)
	} else {
		log.Warn("REDIS_ADDR not set, carts are kept in process memory")
	}

	var events service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		prod := mykafka.NewProducer(cfg.KafkaBrokers)
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error("kafka close error", "error", err)
			}
		}()
		events = prod
	}

	var index service.ProductIndex
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Error("elasticsearch unavailable, search falls back to SQL", "error", err)
		} else {
			index = search.NewIndex(es, cfg.ESIndex)
		}
	}

	catalog := &service.CatalogService{Repo: r, Index: index, Events: events}
	cart := &service.CartService{Store: carts, Catalog: catalog}
	authSvc := &service.AuthService{
		Repo:          r,
		Carts:         carts,
		Events:        events,
		JWTSecret:     cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	httpserver.Register(e, &httpserver.Deps{
		DB:        gdb,
		Logger:    log,
		Session:   authmw.NewAutoRefreshMiddleware(cfg.JWTAccessSecret, authSvc, cfg.CookieSecure),
		Auth:      &httpserver.AuthHTTP{Svc: authSvc, CookieSecure: cfg.CookieSecure},
		Catalog:   &httpserver.CatalogHTTP{Svc: catalog},
		Cart:      &httpserver.CartHTTP{Svc: cart},
		Orders:    &httpserver.OrderHTTP{Svc: &service.OrderService{Repo: r, Cart: cart, Events: events}},
		Admin:     &httpserver.AdminHTTP{Svc: &service.AdminService{Repo: r, Events: events}},
		RateLimit: float64(cfg.RateLimitRPS),
		RateBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("shutdown complete")
	return nil
}
