package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mercadito/internal/auth"
	"mercadito/internal/catalogo"
	"mercadito/internal/config"
	"mercadito/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("catalogo: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadService("catalogo", "5001")
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCatalogo()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	store, err := catalogo.NewStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}

	var products catalogo.ProductStore = store
	if cacheCfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cacheCfg.RedisAddr})
		defer client.Close()
		products = catalogo.NewCachedStore(store, client, cacheCfg.CacheTTL, log.Printf)
		log.Printf("catalogo: cache redis en %s (ttl %s)", cacheCfg.RedisAddr, cacheCfg.CacheTTL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	handler := catalogo.NewHandler(products, observability.NewMetrics("catalogo"), log.Printf)
	handler.Register(e, auth.RequireToken(cfg.Token))

	return serve(ctx, e, cfg.Port)
}

func serve(ctx context.Context, e *echo.Echo, port string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + port)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
