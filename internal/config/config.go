package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the explicit configuration value object handed to the components
// at startup; nothing reads ambient process-wide settings after this.
type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string

	// DatabaseURL empty means the in-memory store (development only).
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	TokenSecret     string
	VaultPassphrase string
	Production      bool

	SessionTTL      time.Duration
	RCONMaxRetries  int
	RCONRetryDelay  time.Duration
	RCONDialTimeout time.Duration
	RCONReadTimeout time.Duration

	// Whitelist seeds operator ids at startup; normally the whitelist is
	// provisioned directly in storage.
	Whitelist []int64
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		GinMode:         "release",
		SessionTTL:      12 * time.Hour,
		RCONMaxRetries:  3,
		RCONRetryDelay:  2 * time.Second,
		RCONDialTimeout: 5 * time.Second,
		RCONReadTimeout: 5 * time.Second,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.TokenSecret = env.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.DatabaseURL = env.Getenv("DATABASE_URL")
	cfg.RedisAddr = env.Getenv("REDIS_ADDR")
	cfg.RedisPassword = env.Getenv("REDIS_PASSWORD")
	cfg.VaultPassphrase = env.Getenv("VAULT_PASSPHRASE")
	cfg.Production = env.Getenv("PRODUCTION") == "true"

	if cfg.Production && cfg.VaultPassphrase == "" {
		return Config{}, fmt.Errorf("VAULT_PASSPHRASE is required in production")
	}

	if raw := env.Getenv("SESSION_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid SESSION_TTL_SECONDS")
		}
		cfg.SessionTTL = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("RCON_MAX_RETRIES"); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries <= 0 {
			return Config{}, fmt.Errorf("invalid RCON_MAX_RETRIES")
		}
		cfg.RCONMaxRetries = retries
	}

	var err error
	if cfg.RCONRetryDelay, err = secondsVar(env, "RCON_RETRY_DELAY_SECONDS", cfg.RCONRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.RCONDialTimeout, err = secondsVar(env, "RCON_DIAL_TIMEOUT_SECONDS", cfg.RCONDialTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RCONReadTimeout, err = secondsVar(env, "RCON_READ_TIMEOUT_SECONDS", cfg.RCONReadTimeout); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("WHITELIST"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return Config{}, fmt.Errorf("invalid WHITELIST entry %q", part)
			}
			cfg.Whitelist = append(cfg.Whitelist, id)
		}
	}

	return cfg, nil
}

func secondsVar(env Env, key string, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(seconds) * time.Second, nil
}
