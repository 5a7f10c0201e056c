// Package main is the entry point for the acmesync replication node.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acmesync/internal/config"
	"acmesync/internal/core/locking"
	"acmesync/internal/domain/auth"
	"acmesync/internal/domain/client"
	"acmesync/internal/domain/order"
	"acmesync/internal/domain/product"
	"acmesync/internal/domain/stock"
	"acmesync/internal/domain/user"
	v1 "acmesync/internal/infrastructure/http/v1"
	"acmesync/internal/infrastructure/storage/catalog_repo"
	"acmesync/internal/infrastructure/storage/document_repo"
	"acmesync/internal/infrastructure/storage/register_repo"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/internal/status"
	"acmesync/pkg/logger"
)

func main() {
	settings := config.Load()

	log, err := logger.New(logger.Config{
		Level:       settings.LogLevel,
		Development: settings.AppEnv == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting acmesync node", "node", settings.NodeName, "peers", settings.Peers)

	// --- Storage ---
	db, err := sqlite.Open(settings.DatabasePath)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	txm := sqlite.NewTxManager(db)
	versions := sqlite.NewVersionedStore(txm)
	ledger := sqlite.NewLedger(txm, settings.LedgerRetention)
	outbox := sqlite.NewOutbox(txm)
	audit, err := sqlite.NewAuditLog(txm)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}

	// --- Replication plumbing ---
	registry := replication.NewPeerRegistry(settings.Peers, outbox)
	events := replication.NewEventLog(outbox, settings.NodeName, settings.Peers)
	locks := locking.NewTable()

	// --- Domain services ---
	clientSvc := client.NewService(
		catalog_repo.NewClientRepo(txm), versions, events, audit, registry, settings.NodeName)
	productSvc := product.NewService(
		catalog_repo.NewProductRepo(txm), versions, events, audit, registry, settings.NodeName)
	userSvc := user.NewService(
		catalog_repo.NewUserRepo(txm), versions, events, audit, registry, settings.NodeName)
	stockSvc := stock.NewService(
		register_repo.NewStockRepo(txm), productSvc, locks, txm, versions, events, audit, registry, settings.NodeName)
	orderSvc := order.NewService(
		document_repo.NewOrderRepo(txm), clientSvc, productSvc, stockSvc,
		locks, txm, versions, events, audit, registry, settings.NodeName)

	// --- Inbound receiver ---
	receiver := replication.NewReceiver(txm, ledger, log)
	receiver.Register(replication.EventClientUpsert, clientSvc)
	receiver.Register(replication.EventProductUpsert, productSvc)
	receiver.Register(replication.EventUserUpsert, userSvc)
	receiver.Register(replication.EventOrderCreated, orderSvc)
	receiver.Register(replication.EventStockUpdate, stockSvc)

	// --- Bootstrap admin ---
	if err := userSvc.EnsureAdmin(ctx, settings.AdminUser, settings.AdminPassword); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	// --- JWT ---
	jwtConfig := auth.DefaultJWTConfig(settings.JWTSecret)
	jwtConfig.AccessTokenTTL = settings.JWTExpiry
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Status ---
	reporter := status.NewReporter(
		settings.NodeName, clientSvc, productSvc,
		catalog_repo.NewUserRepo(txm), orderSvc, stockSvc, registry)

	// --- Outbound engine ---
	engine := replication.NewEngine(
		registry, ledger, settings.ReplicaToken,
		settings.RetryInterval, settings.RequestTimeout, log)
	engine.Start()

	// --- Router + HTTP server ---
	router := v1.NewRouter(v1.RouterConfig{
		NodeName:     settings.NodeName,
		ReplicaToken: settings.ReplicaToken,
		DB:           db,
		Logger:       log,
		JWT:          jwtService,
		Clients:      clientSvc,
		Products:     productSvc,
		Users:        userSvc,
		Orders:       orderSvc,
		Stock:        stockSvc,
		Receiver:     receiver,
		Reporter:     reporter,
	})

	server := &http.Server{
		Addr:         ":" + settings.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", settings.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down node...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	// Stop dispatch after the HTTP surface is down; unsent events stay in
	// the outbox for the next start.
	engine.Stop()

	log.Info("node stopped")
}
