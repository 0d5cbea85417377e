// Command bridge is the voice bridge's process entrypoint: it loads
// configuration, wires the AI connector transports and the optional
// profile store, and serves the telephony WebSocket endpoint until
// SIGINT/SIGTERM asks it to drain.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/birddigital/voicebridge/internal/aiconnector"
	"github.com/birddigital/voicebridge/internal/config"
	"github.com/birddigital/voicebridge/internal/listener"
	"github.com/birddigital/voicebridge/internal/profile"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[bridge] loading configuration: %v", err)
	}

	profiles := newProfileStore(cfg)
	defer profiles.Close()

	signedURLEndpoint := "https://" + cfg.AIBaseHost + "/v1/convai/conversation/get_signed_url"
	fetcher := aiconnector.NewHTTPSignedURLFetcher(signedURLEndpoint, cfg.AIAPIKey, 10*time.Second)
	dialer := aiconnector.NewWebSocketDialer()

	l := listener.New(cfg, profiles, dialer, fetcher)
	mux := http.NewServeMux()
	l.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("[bridge] listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[bridge] server error: %v", err)
		}
	}()

	waitForShutdownSignal()
	log.Printf("[bridge] shutdown signal received, draining calls (up to %s)", shutdownGrace)

	if !l.Shutdown(shutdownGrace) {
		log.Printf("[bridge] some calls did not drain within the grace period")
	}
	if err := server.Close(); err != nil {
		log.Printf("[bridge] closing HTTP server: %v", err)
	}
	log.Printf("[bridge] shutdown complete")
}

func newProfileStore(cfg *config.Config) profile.Store {
	if cfg.ProfileDatabaseURL == "" {
		log.Printf("[bridge] no PROFILE_DATABASE_URL configured, profile lookup disabled")
		return profile.NewNoop()
	}
	store, err := profile.NewPGStore(context.Background(), cfg.ProfileDatabaseURL)
	if err != nil {
		log.Printf("[bridge] connecting to profile database: %v, falling back to no-op", err)
		return profile.NewNoop()
	}
	return store
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
