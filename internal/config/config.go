// Package config loads process-wide configuration for the voice bridge.
//
// Configuration is read once at startup and never mutated afterward; every
// Call shares the same immutable Config.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects which default agent id a telephony call is routed to when
// the `start` event carries no explicit agent_id custom parameter.
type Mode string

const (
	ModeDiscovery Mode = "discovery"
	ModeDaily     Mode = "daily"
)

// Config is the bridge's process-wide, immutable configuration.
type Config struct {
	// AI provider.
	AIAPIKey          string
	AIBaseHost        string // e.g. "api.elevenlabs.io"
	DiscoveryAgentID  string
	DailyAgentID      string // optional

	// Telephony-side auth.
	AuthToken string // optional; empty disables bearer checking

	// Listener.
	ListenAddr string

	// Optional profile lookup table.
	ProfileDatabaseURL string

	// Tunables (defaults match spec.md §5).
	SilenceMs           int
	UtteranceMaxMs      int
	BufferMs            int
	MetadataFallbackMs  int
	LogSampleRate       int // log every Nth outbound frame; 0 disables sampling (logs none)
}

const (
	defaultSilenceMs          = 800
	defaultUtteranceMaxMs     = 3000
	defaultBufferMs           = 200
	defaultMetadataFallbackMs = 1000
	defaultLogSampleRate      = 50
	defaultListenAddr         = ":8080"
)

// Load reads configuration from the process environment, optionally
// seeded from a local .env file. It is intended to be called exactly
// once, at process startup.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] no .env file found, using system environment variables")
	}

	cfg := &Config{
		AIAPIKey:           os.Getenv("AI_API_KEY"),
		AIBaseHost:         getenvDefault("AI_BASE_HOST", "api.elevenlabs.io"),
		DiscoveryAgentID:   os.Getenv("DISCOVERY_AGENT_ID"),
		DailyAgentID:       os.Getenv("DAILY_AGENT_ID"),
		AuthToken:          os.Getenv("BRIDGE_AUTH_TOKEN"),
		ListenAddr:         getenvDefault("LISTEN_ADDR", defaultListenAddr),
		ProfileDatabaseURL: os.Getenv("PROFILE_DATABASE_URL"),
	}

	var err error
	if cfg.SilenceMs, err = getenvIntDefault("SILENCE_MS", defaultSilenceMs); err != nil {
		return nil, err
	}
	if cfg.UtteranceMaxMs, err = getenvIntDefault("UTTERANCE_MAX_MS", defaultUtteranceMaxMs); err != nil {
		return nil, err
	}
	if cfg.BufferMs, err = getenvIntDefault("BUFFER_MS", defaultBufferMs); err != nil {
		return nil, err
	}
	if cfg.MetadataFallbackMs, err = getenvIntDefault("METADATA_FALLBACK_MS", defaultMetadataFallbackMs); err != nil {
		return nil, err
	}
	if cfg.LogSampleRate, err = getenvIntDefault("LOG_SAMPLE_RATE", defaultLogSampleRate); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AIAPIKey == "" {
		return fmt.Errorf("config: AI_API_KEY is required")
	}
	if c.DiscoveryAgentID == "" {
		return fmt.Errorf("config: DISCOVERY_AGENT_ID is required")
	}
	return nil
}

// AgentIDFor returns the configured default agent id for a mode.
func (c *Config) AgentIDFor(mode Mode) string {
	if mode == ModeDaily && c.DailyAgentID != "" {
		return c.DailyAgentID
	}
	return c.DiscoveryAgentID
}

func (c *Config) SilenceTimeout() time.Duration          { return time.Duration(c.SilenceMs) * time.Millisecond }
func (c *Config) UtteranceMaxTimeout() time.Duration     { return time.Duration(c.UtteranceMaxMs) * time.Millisecond }
func (c *Config) BufferWindow() time.Duration            { return time.Duration(c.BufferMs) * time.Millisecond }
func (c *Config) MetadataFallbackTimeout() time.Duration { return time.Duration(c.MetadataFallbackMs) * time.Millisecond }

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}
