// Command authcored runs the token engine as a standalone HTTP service.
//
// Configuration comes from the environment (optionally seeded from a .env
// file). The service listens on AUTHCORE_LISTEN_ADDR and serves the token
// endpoint at /oauth/token.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	authcore "github.com/gatewaylabs/authcore"
	"github.com/gatewaylabs/authcore/credential"
	"github.com/gatewaylabs/authcore/directory"
	"github.com/gatewaylabs/authcore/security"
	"github.com/gatewaylabs/authcore/server"
	"github.com/gatewaylabs/authcore/storage"
	"github.com/gatewaylabs/authcore/storage/memory"
	valkeystore "github.com/gatewaylabs/authcore/storage/valkey"
	"github.com/gatewaylabs/authcore/token"
)

type config struct {
	ListenAddr string `env:"AUTHCORE_LISTEN_ADDR" envDefault:":8080"`

	// Issuer is the external base URL of the service
	Issuer string `env:"AUTHCORE_ISSUER" envDefault:"http://localhost:8080"`

	// EncryptionKey is a base64-encoded 32-byte AES key. Required in
	// production; generated with a warning when absent.
	EncryptionKey string `env:"AUTHCORE_ENCRYPTION_KEY"`

	// StorageBackend selects "memory" or "valkey"
	StorageBackend string `env:"AUTHCORE_STORAGE" envDefault:"memory"`

	ValkeyAddress  string `env:"AUTHCORE_VALKEY_ADDRESS" envDefault:"localhost:6379"`
	ValkeyPassword string `env:"AUTHCORE_VALKEY_PASSWORD"`
	ValkeyDB       int    `env:"AUTHCORE_VALKEY_DB" envDefault:"0"`

	// CredentialTypesFile points to a YAML file of credential type
	// definitions. Empty means the built-in definitions.
	CredentialTypesFile string `env:"AUTHCORE_CREDENTIAL_TYPES_FILE"`

	AccessTokenTTL  time.Duration `env:"AUTHCORE_ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"AUTHCORE_REFRESH_TOKEN_TTL" envDefault:"336h"`

	RateLimitPerSecond int  `env:"AUTHCORE_RATE_LIMIT" envDefault:"10"`
	RateLimitBurst     int  `env:"AUTHCORE_RATE_LIMIT_BURST" envDefault:"20"`
	TrustProxy         bool `env:"AUTHCORE_TRUST_PROXY" envDefault:"false"`
	TrustedProxyCount  int  `env:"AUTHCORE_TRUSTED_PROXY_COUNT" envDefault:"1"`

	EnableAuditLogging bool   `env:"AUTHCORE_AUDIT_LOGGING" envDefault:"true"`
	LogLevel           string `env:"AUTHCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat          string `env:"AUTHCORE_LOG_FORMAT" envDefault:"json"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authcored: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	key, err := loadEncryptionKey(cfg, logger)
	if err != nil {
		return err
	}
	enc, err := security.NewEncryptor(key)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}

	store, stopStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer stopStore()

	types, err := loadCredentialTypes(cfg)
	if err != nil {
		return err
	}

	creds, err := credential.NewService(store, store, enc, types, logger)
	if err != nil {
		return fmt.Errorf("failed to create credential service: %w", err)
	}

	tokens, err := token.NewService(store, enc, token.Config{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	srv, err := server.New(creds, tokens, directory.NewMemory(), logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv.SetAuditor(security.NewAuditor(logger, cfg.EnableAuditLogging))

	handler, err := authcore.NewHandler(srv, authcore.Config{
		Issuer:             cfg.Issuer,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		TrustProxy:         cfg.TrustProxy,
		TrustedProxyCount:  cfg.TrustedProxyCount,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	defer handler.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting token service", "addr", cfg.ListenAddr, "issuer", cfg.Issuer)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func setupLogger(cfg config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func loadEncryptionKey(cfg config, logger *slog.Logger) ([]byte, error) {
	if cfg.EncryptionKey != "" {
		key, err := security.KeyFromBase64(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTHCORE_ENCRYPTION_KEY: %w", err)
		}
		return key, nil
	}

	key, err := security.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	logger.Warn("AUTHCORE_ENCRYPTION_KEY not set, generated ephemeral key; stored secrets will not survive a restart",
		"key_base64", base64.StdEncoding.EncodeToString(key))
	return key, nil
}

func openStore(cfg config, logger *slog.Logger) (storage.Store, func(), error) {
	switch cfg.StorageBackend {
	case "memory":
		s := memory.New()
		return s, s.Stop, nil
	case "valkey":
		s, err := valkeystore.New(valkeystore.Config{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			DB:       cfg.ValkeyDB,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to valkey: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func loadCredentialTypes(cfg config) (map[string]credential.Definition, error) {
	if cfg.CredentialTypesFile == "" {
		return nil, nil
	}
	types, err := credential.LoadDefinitions(cfg.CredentialTypesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential types: %w", err)
	}
	return types, nil
}
