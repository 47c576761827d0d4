// Command api runs the accountability market's HTTP intake: it wires the
// persistence gateway, reasoning oracle, debate/matching/settlement/
// resolution engines, and the REST+WebSocket surface together, then serves
// until signaled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mochiyaki/accountability-market/internal/api"
	"github.com/mochiyaki/accountability-market/internal/config"
	"github.com/mochiyaki/accountability-market/internal/debate"
	"github.com/mochiyaki/accountability-market/internal/dispatcher"
	"github.com/mochiyaki/accountability-market/internal/metrics"
	"github.com/mochiyaki/accountability-market/internal/oracle"
	"github.com/mochiyaki/accountability-market/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional; env vars and defaults otherwise)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logFormat := "json"
	if cfg.App.Environment == "development" {
		logFormat = "console"
	}
	config.InitLogger(cfg.App.LogLevel, logFormat)
	log.Info().
		Str("version", config.Version).
		Str("environment", cfg.App.Environment).
		Msg("starting accountability market")

	if cfg.Vault.Enabled {
		vaultCfg := config.VaultConfig{
			Enabled:    cfg.Vault.Enabled,
			Address:    cfg.Vault.Address,
			AuthMethod: cfg.Vault.AuthMethod,
			MountPath:  cfg.Vault.MountPath,
			SecretPath: cfg.Vault.SecretPath,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := config.LoadSecretsFromVault(ctx, cfg, vaultCfg); err != nil {
			log.Fatal().Err(err).Msg("load secrets from vault")
		}
		cancel()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.GetStoreAddr(),
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Msg("connect to redis store")
	}
	cancel()

	gateway := store.NewRedisStore(redisClient)

	oracleClient := oracle.NewHTTPClient(oracle.Config{
		Endpoint:       cfg.Oracle.Endpoint,
		APIKey:         cfg.Oracle.APIKey,
		DefaultModel:   cfg.Oracle.Model,
		Temperature:    cfg.Oracle.Temperature,
		MaxTokens:      cfg.Oracle.MaxTokens,
		Timeout:        cfg.Oracle.Timeout(),
		RateLimitPerS:  cfg.Oracle.RateLimitRPS,
		RateLimitBurst: cfg.Oracle.RateLimitBurst,
	})

	orchestrator := debate.New(oracleClient)
	disp := dispatcher.New(gateway, orchestrator, cfg.Market.NumAgents)

	apiServer := api.NewServer(api.Config{
		Host:       cfg.API.Host,
		Port:       cfg.API.Port,
		Dispatcher: disp,
		Store:      gateway,
	})

	metricsServer := metrics.NewServer(cfg.API.PrometheusPort, zerolog.New(os.Stderr).With().Timestamp().Logger())
	if err := metricsServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown error")
	}
}
