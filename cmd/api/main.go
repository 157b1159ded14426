package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcadian-io/authd/internal/auth"
	"github.com/arcadian-io/authd/internal/config"
	"github.com/arcadian-io/authd/internal/httpapi"
	"github.com/arcadian-io/authd/internal/obs"
	"github.com/arcadian-io/authd/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	issuer, err := auth.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	authSvc, err := auth.NewService(store.Users(), store.Roles(), issuer,
		auth.WithHashCost(cfg.HashCost))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	userSvc, err := auth.NewUserService(store.Users(), store.Roles(),
		auth.WithUserHashCost(cfg.HashCost))
	if err != nil {
		log.Fatalf("user service: %v", err)
	}
	roleSvc, err := auth.NewRoleService(store.Roles())
	if err != nil {
		log.Fatalf("role service: %v", err)
	}

	// Built-in roles must exist before the first registration; this runs
	// once here, never per request.
	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := roleSvc.SeedDefaults(seedCtx); err != nil {
		cancel()
		log.Fatalf("seed roles: %v", err)
	}
	cancel()

	api := httpapi.New(authSvc, userSvc, roleSvc, issuer,
		httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authd %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
