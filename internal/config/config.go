package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string

	JWTSecret           string
	AllowDebugPrincipal bool

	KafkaBrokers []string
	KafkaTopic   string

	ArchiveBucket string
	ArchivePrefix string

	PlatformAccount string
	TreasuryAccount string
	CreatorShare    int
	PlatformShare   int
	TreasuryShare   int

	OpenSubmitter     bool
	ReconcileInterval time.Duration
}

const (
	defaultAddr              = ":8071"
	defaultKafkaTopic        = "agentmarket.events"
	defaultPlatformAccount   = "platform"
	defaultTreasuryAccount   = "treasury"
	defaultCreatorShare      = 85
	defaultPlatformShare     = 10
	defaultTreasuryShare     = 5
	defaultReconcileInterval = time.Minute
)

func Load() (Config, error) {
	cfg := Config{
		Addr:                getEnv("AGENTMARKET_ADDR", defaultAddr),
		DatabaseURL:         firstNonEmpty(os.Getenv("AGENTMARKET_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		JWTSecret:           os.Getenv("AGENTMARKET_JWT_SECRET"),
		AllowDebugPrincipal: getBool("AGENTMARKET_ALLOW_DEBUG_PRINCIPAL", false),
		KafkaBrokers:        splitList(os.Getenv("AGENTMARKET_KAFKA_BROKERS")),
		KafkaTopic:          getEnv("AGENTMARKET_KAFKA_TOPIC", defaultKafkaTopic),
		ArchiveBucket:       os.Getenv("AGENTMARKET_ARCHIVE_BUCKET"),
		ArchivePrefix:       getEnv("AGENTMARKET_ARCHIVE_PREFIX", "agentmarket"),
		PlatformAccount:     getEnv("AGENTMARKET_PLATFORM_ACCOUNT", defaultPlatformAccount),
		TreasuryAccount:     getEnv("AGENTMARKET_TREASURY_ACCOUNT", defaultTreasuryAccount),
		CreatorShare:        getInt("AGENTMARKET_CREATOR_SHARE", defaultCreatorShare),
		PlatformShare:       getInt("AGENTMARKET_PLATFORM_SHARE", defaultPlatformShare),
		TreasuryShare:       getInt("AGENTMARKET_TREASURY_SHARE", defaultTreasuryShare),
		OpenSubmitter:       getBool("AGENTMARKET_OPEN_SUBMITTER", false),
		ReconcileInterval:   getDuration("AGENTMARKET_RECONCILE_INTERVAL", defaultReconcileInterval),
	}
	nodeEnv := os.Getenv("NODE_ENV")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or AGENTMARKET_DATABASE_URL required")
	}
	if cfg.JWTSecret == "" && !cfg.AllowDebugPrincipal {
		return Config{}, fmt.Errorf("AGENTMARKET_JWT_SECRET required unless AGENTMARKET_ALLOW_DEBUG_PRINCIPAL=true")
	}
	if nodeEnv == "production" && cfg.AllowDebugPrincipal {
		return Config{}, fmt.Errorf("AGENTMARKET_ALLOW_DEBUG_PRINCIPAL must be false in production")
	}
	if cfg.CreatorShare+cfg.PlatformShare+cfg.TreasuryShare != 100 {
		return Config{}, fmt.Errorf("royalty shares must sum to 100, got %d/%d/%d",
			cfg.CreatorShare, cfg.PlatformShare, cfg.TreasuryShare)
	}
	if cfg.PlatformAccount == cfg.TreasuryAccount {
		return Config{}, fmt.Errorf("platform and treasury accounts must differ")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
