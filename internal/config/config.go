package config

import (
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LagPolicy controls what happens to a subscriber that falls behind the
// hub's buffer capacity.
type LagPolicy string

const (
	// LagResync logs the gap and continues delivery from the oldest
	// retained envelope.
	LagResync LagPolicy = "resync"
	// LagDisconnect closes the lagging subscriber's connection.
	LagDisconnect LagPolicy = "disconnect"
)

// Config holds all configuration for the relay process.
type Config struct {
	// Host and Port form the listen address.
	Host string
	Port int
	// Secret is the shared password publishers must present. Required.
	Secret string
	// AuthURL, when set, enables bearer-token validation against an
	// external service for the HTTP publish endpoint.
	AuthURL string
	// ShowRepoPage redirects "/" to the project repository when true.
	ShowRepoPage bool
	// HubCapacity bounds the broadcast buffer (envelopes).
	HubCapacity int
	// Lag selects the slow-subscriber policy.
	Lag LagPolicy
}

// New loads configuration from environment variables. A missing secret
// is a startup-fatal condition.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Host:         getEnv("COURIER_HOST", "127.0.0.1"),
		Port:         parseInt(os.Getenv("COURIER_PORT"), 3000),
		Secret:       os.Getenv("COURIER_SECRET"),
		AuthURL:      os.Getenv("COURIER_AUTH_URL"),
		ShowRepoPage: parseBool(os.Getenv("COURIER_SHOW_REPO_PAGE"), true),
		HubCapacity:  parseInt(os.Getenv("COURIER_HUB_CAPACITY"), 16),
		Lag:          parseLagPolicy(os.Getenv("COURIER_LAG_POLICY")),
	}

	if cfg.Secret == "" {
		log.Fatal("Required environment variable COURIER_SECRET is not set.")
	}
	if net.ParseIP(cfg.Host) == nil {
		log.Fatalf("COURIER_HOST %q is not a valid IP address.", cfg.Host)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		log.Fatalf("COURIER_PORT %d is out of range.", cfg.Port)
	}

	return cfg
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func parseBool(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed
	}
	return fallback
}

func parseLagPolicy(value string) LagPolicy {
	switch LagPolicy(strings.ToLower(value)) {
	case LagDisconnect:
		return LagDisconnect
	default:
		return LagResync
	}
}
