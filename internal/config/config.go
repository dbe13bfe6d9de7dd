package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the top-level application configuration, loaded from config
// files and ARXIV_* environment variables.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Arxiv     ArxivConfig     `mapstructure:"arxiv"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Orcid     OrcidConfig     `mapstructure:"orcid"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	// DSN is the postgres connection string (postgres driver only).
	DSN string `mapstructure:"dsn"`
	// Path is the database file path (sqlite driver only).
	Path string `mapstructure:"path"`
}

// ArxivConfig configures the arXiv Atom API client.
type ArxivConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	PageSize    int           `mapstructure:"page_size"`
	MaxResults  int           `mapstructure:"max_results"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// EnrichConfig controls the enrichment fan-out.
type EnrichConfig struct {
	// MaxConcurrency bounds in-flight enrichment across all papers.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// SimilarityThreshold is the minimum normalized similarity for two
	// affiliation strings to be treated as the same institution.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// SourcesFile optionally points at a YAML source catalog overriding
	// the built-in defaults.
	SourcesFile string `mapstructure:"sources_file"`
	// SourceTimeout caps a single source call for one paper.
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	// RankingsFile points at a CSV of institution rankings.
	RankingsFile string `mapstructure:"rankings_file"`
}

// OrcidConfig configures the ORCID public API client.
type OrcidConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// AnthropicConfig configures the LLM used for affiliation extraction.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig controls zap logger construction.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file (optional) and the
// environment, applying defaults for anything unset.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "arxiv.db")
	v.SetDefault("store.dsn", "")

	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("arxiv.page_size", 100)
	v.SetDefault("arxiv.max_results", 1000)
	v.SetDefault("arxiv.rate_limit", 0.33)
	v.SetDefault("arxiv.timeout", 30*time.Second)
	v.SetDefault("arxiv.max_attempts", 3)

	v.SetDefault("enrich.max_concurrency", 4)
	v.SetDefault("enrich.similarity_threshold", 0.86)
	v.SetDefault("enrich.sources_file", "")
	v.SetDefault("enrich.source_timeout", 60*time.Second)
	v.SetDefault("enrich.rankings_file", "")

	v.SetDefault("orcid.base_url", "https://pub.orcid.org/v3.0")
	v.SetDefault("orcid.timeout", 15*time.Second)
	v.SetDefault("orcid.enabled", true)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.max_tokens", 4096)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix("ARXIV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrapf(err, "config: read %s", cfgFile)
		}
	} else {
		v.SetConfigName("arxiv-fetcher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/arxiv-fetcher")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !eris.As(err, &notFound) {
				return nil, eris.Wrap(err, "config: read")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DSN == "" {
			return eris.New("config: store.dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.Path == "" {
			return eris.New("config: store.path is required for the sqlite driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Enrich.MaxConcurrency < 1 {
		return eris.New("config: enrich.max_concurrency must be at least 1")
	}
	if c.Enrich.SimilarityThreshold < 0 || c.Enrich.SimilarityThreshold > 1 {
		return eris.New("config: enrich.similarity_threshold must be in [0,1]")
	}
	return nil
}

// InitLogger builds the global zap logger from the log section and installs
// it via zap.ReplaceGlobals.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrapf(err, "config: parse log level %q", cfg.Level)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
