package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scheduling-api/internal"
	"scheduling-api/internal/config"
)

func main() {
	// Load and validate configuration
	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := internal.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Store error: %v", err)
	}

	srv, err := internal.NewServer(cfg, st)
	if err != nil {
		st.Close()
		log.Fatalf("Server error: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Println("Starting Scheduling API server...")
	log.Printf("Store: %s", cfg.StoreDriver)
	log.Printf("JWT Issuer: %s", cfg.JWTIssuer)
	log.Printf("JWT Audience: %s", cfg.JWTAudience)
	log.Printf("JWT Expiry: %v", cfg.JWTExpiry)
	log.Printf("Default timezone: %s", cfg.DefaultTimezone)
	log.Printf("Listening on %s", cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.Close(context.Background())
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := srv.Close(shutdownCtx); err != nil {
		log.Printf("Close: %v", err)
	}
}
