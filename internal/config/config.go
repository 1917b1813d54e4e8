package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadDotenv sync.Once

// Service holds the settings every service shares.
type Service struct {
	Name        string
	Port        string
	DatabaseURL string
	Token       string
}

// Call holds outbound-call reliability settings.
type Call struct {
	Timeout            time.Duration
	MaxRetries         int
	BreakerMaxFailures int
	BreakerOpenFor     time.Duration
}

// Pedidos holds the orchestrator's collaborator endpoints.
type Pedidos struct {
	ProductsURL  string
	InventoryURL string
	PaymentsURL  string
	AMQPURL      string
}

// Catalogo holds the catalog cache settings.
type Catalogo struct {
	RedisAddr string
	CacheTTL  time.Duration
}

// LoadService reads the shared service config from env. A .env file, if
// present, is loaded once per process.
func LoadService(name, defaultPort string) (Service, error) {
	loadDotenv.Do(func() { _ = godotenv.Load() })

	cfg := Service{
		Name:  name,
		Port:  stringOr("PORT", defaultPort),
		Token: stringOr("SERVICE_TOKEN", "penguin-secret"),
	}

	dsn, err := requiredString("DATABASE_URL")
	if err != nil {
		return cfg, err
	}
	cfg.DatabaseURL = dsn

	return cfg, nil
}

// LoadCall reads reliability settings with the defaults the collaborators
// are tuned for: 3s timeout, 2 retries, breaker opens after 3 failures
// for 30s.
func LoadCall() (Call, error) {
	cfg := Call{}
	var err error

	if cfg.Timeout, err = durationOr("CALL_TIMEOUT", 3*time.Second); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = intOr("CALL_MAX_RETRIES", 2); err != nil {
		return cfg, err
	}
	if cfg.BreakerMaxFailures, err = intOr("BREAKER_MAX_FAILURES", 3); err != nil {
		return cfg, err
	}
	if cfg.BreakerOpenFor, err = durationOr("BREAKER_OPEN_FOR", 30*time.Second); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadPedidos reads the collaborator base URLs. AMQP_URL may be empty, in
// which case order events are only logged.
func LoadPedidos() (Pedidos, error) {
	return Pedidos{
		ProductsURL:  stringOr("PRODUCTS_URL", "http://127.0.0.1:5001"),
		InventoryURL: stringOr("INVENTORY_URL", "http://127.0.0.1:5002"),
		PaymentsURL:  stringOr("PAYMENTS_URL", "http://127.0.0.1:5003"),
		AMQPURL:      strings.TrimSpace(os.Getenv("AMQP_URL")),
	}, nil
}

// LoadCatalogo reads the catalog cache settings. REDIS_ADDR may be empty,
// which disables the cache.
func LoadCatalogo() (Catalogo, error) {
	ttl, err := durationOr("PRODUCT_CACHE_TTL", 30*time.Second)
	if err != nil {
		return Catalogo{}, err
	}
	return Catalogo{
		RedisAddr: strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		CacheTTL:  ttl,
	}, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func stringOr(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func intOr(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func durationOr(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
