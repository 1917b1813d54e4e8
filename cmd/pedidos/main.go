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

	_ "github.com/jackc/pgx/v5/stdlib"

	"mercadito/internal/auth"
	"mercadito/internal/config"
	"mercadito/internal/observability"
	"mercadito/internal/pedidos"
	"mercadito/internal/realtime"
	"mercadito/internal/remoto"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("pedidos: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadService("pedidos", "5000")
	if err != nil {
		return err
	}
	callCfg, err := config.LoadCall()
	if err != nil {
		return err
	}
	peersCfg, err := config.LoadPedidos()
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

	store, err := pedidos.NewStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}

	caller := remoto.New(remoto.Config{
		Token:       cfg.Token,
		Timeout:     callCfg.Timeout,
		MaxRetries:  callCfg.MaxRetries,
		MaxFailures: callCfg.BreakerMaxFailures,
		OpenFor:     callCfg.BreakerOpenFor,
		Logf:        log.Printf,
	})

	var events pedidos.EventPublisher
	if peersCfg.AMQPURL != "" {
		publisher, err := pedidos.NewAMQPPublisher(peersCfg.AMQPURL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		events = publisher
		log.Printf("pedidos: eventos via amqp")
	} else {
		log.Printf("pedidos: AMQP_URL vacio, eventos solo en el feed websocket")
	}

	feed := realtime.NewHub()
	go feed.Run()

	metrics := observability.NewMetrics("pedidos")
	orchestrator := pedidos.NewOrchestrator(pedidos.OrchestratorConfig{
		Catalog:   pedidos.NewHTTPCatalog(caller, peersCfg.ProductsURL),
		Inventory: pedidos.NewHTTPInventory(caller, peersCfg.InventoryURL),
		Payments:  pedidos.NewHTTPPayments(caller, peersCfg.PaymentsURL),
		Store:     store,
		Events:    events,
		Feed:      feed,
		Metrics:   metrics,
		Logf:      log.Printf,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	handler := pedidos.NewHandler(orchestrator, store, feed, metrics, log.Printf)
	handler.Register(e, auth.RequireToken(cfg.Token))

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + cfg.Port)
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
