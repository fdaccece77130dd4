package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-blog/pkg/simpleblog/api"
	"github.com/tendant/simple-blog/pkg/simpleblog/config"
)

const defaultJWTSecret = "dev-only-secret"

// Config holds the process settings that sit outside the blog stack. The
// stack itself is configured from BLOG_* variables by config.WithEnv.
type Config struct {
	JWTSecret string `env:"BLOG_JWT_SECRET" env-default:"dev-only-secret"`
	LogLevel  string `env:"BLOG_LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"BLOG_LOG_FORMAT" env-default:"text"`
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv("BLOG_"))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}
	if serverConfig.Environment == "production" && cfg.JWTSecret == defaultJWTSecret {
		slog.Error("BLOG_JWT_SECRET must be set in production")
		os.Exit(1)
	}

	ctx := context.Background()
	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(ctx, serverConfig.DatabaseURL, serverConfig.DBSchema); err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	stack, err := serverConfig.Build(ctx, logger)
	if err != nil {
		slog.Error("Failed to build blog", "err", err)
		os.Exit(1)
	}
	defer stack.Close()

	auth, err := api.NewAuth(cfg.JWTSecret, stack.Blog.Sessions)
	if err != nil {
		slog.Error("Failed to initialize auth", "err", err)
		os.Exit(1)
	}

	slog.Info("Simple Blog starting",
		"env", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"identity", serverConfig.IdentityType,
		"storage", serverConfig.Storage.Type,
		"signed_urls", stack.Signer.IsEnabled(),
	)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", api.Routes(stack.Blog, auth, stack.Files, stack.Signer))
	})

	// Start server
	server.Run()
}
