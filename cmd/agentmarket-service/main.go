package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/iamaanahmad/agentmarket/internal/config"
	"github.com/iamaanahmad/agentmarket/internal/escrow"
	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/httpserver"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/reconcile"
	"github.com/iamaanahmad/agentmarket/internal/registry"
	"github.com/iamaanahmad/agentmarket/internal/reputation"
	"github.com/iamaanahmad/agentmarket/internal/royalty"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

func main() {
	runReconciler := flag.Bool("run-reconciler", false, "start the distribution reconcile sweep")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	st := store.NewPGStore(db)
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.EnsureSchema(startupCtx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	if _, err := st.EnsureRoyaltyConfig(startupCtx, models.RoyaltyConfig{
		CreatorShare:    cfg.CreatorShare,
		PlatformShare:   cfg.PlatformShare,
		TreasuryShare:   cfg.TreasuryShare,
		PlatformAccount: cfg.PlatformAccount,
		TreasuryAccount: cfg.TreasuryAccount,
	}); err != nil {
		log.Fatalf("royalty config: %v", err)
	}
	startupCancel()

	emitter := buildEmitter(cfg)
	defer emitter.Close()

	reg := registry.New(st, emitter)
	dist := royalty.New(st, emitter)
	esc := escrow.New(st, dist, emitter, cfg.OpenSubmitter)
	rep := reputation.New(st, emitter)

	server := httpserver.New(cfg, reg, esc, rep, dist, st)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if shouldRunReconciler(*runReconciler) {
		log.Printf("starting reconcile sweep (interval %s)", cfg.ReconcileInterval)
		sweeper := reconcile.New(st, emitter, reconcile.Config{Interval: cfg.ReconcileInterval})
		go sweeper.Run(ctx)
	}

	go func() {
		log.Printf("agentmarket service listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer)
}

// buildEmitter wires the Kafka emitter (with optional S3 archiving) when
// brokers are configured, and falls back to the no-op emitter otherwise so
// local runs need no infrastructure.
func buildEmitter(cfg config.Config) events.Emitter {
	if len(cfg.KafkaBrokers) == 0 {
		log.Printf("no Kafka brokers configured, events disabled")
		return events.NopEmitter{}
	}
	var archiver events.Archiver
	if cfg.ArchiveBucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a, err := events.NewS3Archiver(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.Fatalf("s3 archiver init: %v", err)
		}
		archiver = a
	}
	emitter, err := events.NewKafkaEmitter(events.KafkaEmitterConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		Archiver: archiver,
	})
	if err != nil {
		log.Fatalf("kafka emitter init: %v", err)
	}
	return emitter
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func shouldRunReconciler(flagValue bool) bool {
	if flagValue {
		return true
	}
	if v := os.Getenv("AGENTMARKET_RECONCILER"); v != "" {
		enabled, err := strconv.ParseBool(v)
		return err == nil && enabled
	}
	return false
}
