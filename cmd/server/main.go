// Package main is the entry point for the semantic layer API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"

	"github.com/yu-iskw/lightdash/internal/api"
	"github.com/yu-iskw/lightdash/internal/app"
	"github.com/yu-iskw/lightdash/internal/config"
	internaldb "github.com/yu-iskw/lightdash/internal/db"
	"github.com/yu-iskw/lightdash/internal/middleware"
	"github.com/yu-iskw/lightdash/internal/service/artifact"
	"github.com/yu-iskw/lightdash/internal/warehouse"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "Path to a .env file loaded before the environment is read")
	listen := flags.String("listen", "", "Listen address (overrides LISTEN_ADDR)")
	projectsFile := flags.String("projects", "", "Projects file (overrides PROJECTS_FILE)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *projectsFile != "" {
		cfg.ProjectsFile = *projectsFile
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// writeDB: single-connection pool for serialized writes (WAL + txlock=immediate).
	// readDB:  4-connection pool for concurrent reads.
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		return fmt.Errorf("open metastore: %w", err)
	}
	defer writeDB.Close() //nolint:errcheck
	defer readDB.Close()  //nolint:errcheck

	applied, err := internaldb.RunMigrations(ctx, writeDB)
	if err != nil {
		return fmt.Errorf("migrate metastore: %w", err)
	}
	if applied > 0 {
		logger.Info("applied metastore migrations", "count", applied)
	}

	wh, err := warehouse.OpenDuckDB(cfg.WarehouseDSN)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close() //nolint:errcheck

	application, err := app.New(ctx, app.Deps{
		Cfg:       cfg,
		WriteDB:   writeDB,
		ReadDB:    readDB,
		Warehouse: wh,
		Artifacts: artifact.NewReader(cfg.Storage.ArtifactOptions()),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	// SIGHUP re-reads the projects file.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := application.ReloadProjects(ctx); err != nil {
					logger.Error("reload projects failed", "error", err)
				}
			}
		}
	}()

	validator, err := buildValidator(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	handler := api.NewHandler(application.Services.Catalog, application.Services.MetricsExplorer, logger.With("component", "api"))
	router := api.NewRouter(api.RouterConfig{
		Handler:     handler,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Authenticate: middleware.Authenticate(middleware.AuthConfig{
			Validator: validator,
			Admins:    cfg.Auth.Admins,
			Logger:    logger,
		}),
		RateLimit: middleware.RateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		RequestID:      middleware.RequestID,
		RequestLogging: middleware.RequestLogger(logger),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
	logger.Info("try: curl -H 'Authorization: Bearer <jwt>' http://" + curlHostForListenAddr(cfg.ListenAddr) + "/v1/projects/<uuid>/explores")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// buildValidator accepts HS256 tokens signed with the shared secret and, when
// configured, tokens issued by the OIDC provider.
func buildValidator(ctx context.Context, auth config.AuthConfig) (middleware.JWTValidator, error) {
	var chain middleware.ChainValidator
	if auth.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	switch {
	case auth.JWKSURL != "":
		chain = append(chain, middleware.NewOIDCValidatorFromJWKS(ctx, auth.JWKSURL, auth.IssuerURL, auth.Audience))
	case auth.IssuerURL != "":
		v, err := middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		chain = append(chain, v)
	}
	if len(chain) == 0 {
		return nil, errors.New("no token validator configured")
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// curlHostForListenAddr turns a listen address into a host:port usable in a
// curl hint. Wildcard and empty hosts become localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
