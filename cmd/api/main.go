package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/config"
	"github.com/shopworks/erp-api/internal/httpapi"
	"github.com/shopworks/erp-api/internal/obs"
	"github.com/shopworks/erp-api/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN is required")
	}
	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	svc, err := auth.NewService(store, cfg.Auth.JWTSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithSessionRevocationOnPasswordChange(cfg.Auth.RevokeSessionsOnPasswordChange),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := svc.EnsureBuiltins(ctx); err != nil {
		cancel()
		log.Fatalf("seed permissions: %v", err)
	}
	cancel()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: store.DB()}, version)
	api.SetLoginRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Expired refresh tokens are garbage; sweep them hourly.
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	go purgeLoop(purgeCtx, store)

	log.Printf("Starting erp-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	purgeCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

func purgeLoop(ctx context.Context, store *pg.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := store.RefreshTokens().PurgeExpired(opCtx)
			cancel()
			if err != nil {
				log.Printf("purge refresh tokens: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("purged %d expired refresh tokens", n)
			}
		}
	}
}
