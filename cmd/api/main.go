package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/metrics"
	"storefront/internal/outbox"
	categoryrepo "storefront/internal/repository/category"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	catalogsvc "storefront/internal/service/catalog"
	ordersvc "storefront/internal/service/order"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, logger, stopCh); err != nil {
		logger.Fatalf("%v", err)
	}
}

// run serves until stop fires or the server fails. Everything it opens is
// released before it returns, including on setup errors.
func run(cfg config.Config, logger *log.Logger, stop <-chan os.Signal) error {
	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer dbpool.Close()

	m := metrics.New()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	categoryRepo := categoryrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)

	catalogService := catalogsvc.New(productRepo, categoryRepo, cfg.FileURLHost)
	orderService := ordersvc.New(orderRepo, cfg.StrictOptions, logger, m)

	publisher, err := events.Open(cfg.EventsBroker, cfg.RabbitURL, cfg.KafkaBrokers, logger)
	if err != nil {
		return fmt.Errorf("open events publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Printf("close publisher: %v", err)
		}
	}()
	logger.Printf("events broker=%s", cfg.EventsBroker)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Orders:  orderService,
		Catalog: catalogService,
	}, httpserver.Options{
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	relay := outbox.NewRelay(outbox.NewStore(dbpool, logger), publisher, outbox.RelayConfig{
		Interval:  cfg.OutboxPollInterval,
		BatchSize: cfg.OutboxBatchSize,
	}, logger, m)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(relayCtx)
	}()
	// Deferred after the publisher close, so the relay stops first.
	defer func() {
		stopRelay()
		wg.Wait()
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-stop:
		logger.Printf("received signal %s, shutting down", sig)
	case runErr = <-serverErr:
		logger.Printf("server error: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
	return runErr
}
