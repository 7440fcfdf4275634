// Package config reads the platelog configuration from the environment and
// opens the store and analyzer it names.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/etnz/platelog"
	"github.com/etnz/platelog/analysis"
	"github.com/etnz/platelog/store/jsonl"
	"github.com/etnz/platelog/store/remote"
	"github.com/etnz/platelog/store/sqlite"
)

// Config is the environment configuration.
type Config struct {
	// User is the default user meals are logged for.
	User string `env:"PLATELOG_USER,expand" envDefault:"${USER}"`
	// Store is "sqlite:<file>", "jsonl:<folder>" or the http(s) URL of a meal backend.
	Store string `env:"PLATELOG_STORE,expand" envDefault:"sqlite:${HOME}/.platelog.db"`
	// Analyzer is "gemini" or the http(s) URL of a food analysis service.
	Analyzer string `env:"PLATELOG_ANALYZER" envDefault:"gemini"`
	Model    string `env:"PLATELOG_MODEL" envDefault:"gemini-2.0-flash"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	Project      string `env:"GOOGLE_CLOUD_PROJECT"`
	Location     string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`

	// CacheSize is the number of analyses kept in memory, 0 disables the cache.
	CacheSize int           `env:"PLATELOG_CACHE_SIZE" envDefault:"256"`
	CacheTTL  time.Duration `env:"PLATELOG_CACHE_TTL" envDefault:"24h"`

	LogLevel slog.Level `env:"PLATELOG_LOG_LEVEL" envDefault:"warn"`
}

// Parse loads the configuration from the environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// UserID returns the configured user, or an error if there is none.
func (c Config) UserID() (platelog.UserID, error) {
	user := strings.TrimSpace(c.User)
	if user == "" {
		return "", fmt.Errorf("no user: set PLATELOG_USER or use -user")
	}
	return platelog.UserID(user), nil
}

// StoreCloser is a store that may hold resources to release.
type StoreCloser interface {
	platelog.Store
	io.Closer
}

type nopCloser struct{ platelog.Store }

func (nopCloser) Close() error { return nil }

// OpenStore opens the configured store.
func (c Config) OpenStore(ctx context.Context, logger *slog.Logger) (StoreCloser, error) {
	switch {
	case strings.HasPrefix(c.Store, "sqlite:"):
		return sqlite.Open(ctx, strings.TrimPrefix(c.Store, "sqlite:"))
	case strings.HasPrefix(c.Store, "jsonl:"):
		s, err := jsonl.Open(strings.TrimPrefix(c.Store, "jsonl:"))
		if err != nil {
			return nil, err
		}
		return nopCloser{s}, nil
	case strings.HasPrefix(c.Store, "http://"), strings.HasPrefix(c.Store, "https://"):
		return nopCloser{remote.New(c.Store, logger)}, nil
	default:
		return nil, fmt.Errorf("unsupported store %q: want sqlite:<file>, jsonl:<folder> or an http(s) URL", c.Store)
	}
}

// OpenAnalyzer creates the configured analyzer, cached unless CacheSize is 0.
func (c Config) OpenAnalyzer(ctx context.Context, logger *slog.Logger) (platelog.Analyzer, error) {
	var a platelog.Analyzer
	switch {
	case c.Analyzer == "gemini":
		client, err := analysis.NewClient(ctx, analysis.ClientConfig{
			APIKey:   c.GeminiAPIKey,
			Project:  c.Project,
			Location: c.Location,
		}, logger)
		if err != nil {
			return nil, err
		}
		g := analysis.NewGemini(client, c.Model)
		g.Logger = logger
		a = g
	case strings.HasPrefix(c.Analyzer, "http://"), strings.HasPrefix(c.Analyzer, "https://"):
		a = analysis.NewHTTP(c.Analyzer, logger)
	default:
		return nil, fmt.Errorf("unsupported analyzer %q: want gemini or an http(s) URL", c.Analyzer)
	}
	if c.CacheSize <= 0 {
		return a, nil
	}
	cached := analysis.Cached(a, c.CacheSize, c.CacheTTL)
	cached.Logger = logger
	return cached, nil
}
