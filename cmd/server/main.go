package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"rconbridge/internal/auth"
	"rconbridge/internal/config"
	"rconbridge/internal/model"
	"rconbridge/internal/pipeline"
	"rconbridge/internal/rcon"
	"rconbridge/internal/server"
	"rconbridge/internal/storage"
	"rconbridge/internal/vault"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	for _, ownerID := range cfg.Whitelist {
		if err := st.AddWhitelist(context.Background(), ownerID); err != nil {
			log.Fatalf("seed whitelist: %v", err)
		}
	}

	if cfg.VaultPassphrase == "" {
		log.Printf("warning: no VAULT_PASSPHRASE set, credentials encrypted this run are unrecoverable after restart")
	}
	v, err := vault.New(cfg.VaultPassphrase)
	if err != nil {
		log.Fatal(err)
	}

	rconCfg := rcon.Config{
		DialTimeout: cfg.RCONDialTimeout,
		ReadTimeout: cfg.RCONReadTimeout,
		MaxRetries:  cfg.RCONMaxRetries,
		RetryDelay:  cfg.RCONRetryDelay,
	}
	p := pipeline.New(st, v, func(creds model.Credentials) pipeline.CommandClient {
		return rcon.NewClient(creds, rconCfg)
	}, cfg.SessionTTL)

	tokenCfg := auth.TokenConfig{
		Secret: cfg.TokenSecret,
		Expiry: cfg.SessionTTL,
		Issuer: "rconbridge",
	}

	router := server.NewRouter(server.Deps{Pipeline: p, TokenConfig: tokenCfg})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}

func openStore(cfg config.Config) (storage.Store, error) {
	var st storage.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := storage.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = gormStore
	} else {
		log.Printf("warning: DATABASE_URL not set, using in-memory storage")
		st = storage.NewMemoryStore()
	}

	if cfg.RedisAddr != "" {
		cached, err := storage.NewSessionCache(st, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		st = cached
	}
	return st, nil
}
