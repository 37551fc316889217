package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Summary   SummaryConfig   `yaml:"summary" mapstructure:"summary"`
	Answer    AnswerConfig    `yaml:"answer" mapstructure:"answer"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Upload    UploadConfig    `yaml:"upload" mapstructure:"upload"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	SummaryModel      string  `yaml:"summary_model" mapstructure:"summary_model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// SummaryConfig configures document summarization and its cache.
type SummaryConfig struct {
	SmallThreshold   int    `yaml:"small_threshold" mapstructure:"small_threshold"`
	LargeThreshold   int    `yaml:"large_threshold" mapstructure:"large_threshold"`
	ChunkSize        int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxKeyPoints     int    `yaml:"max_key_points" mapstructure:"max_key_points"`
	FallbackChars    int    `yaml:"fallback_chars" mapstructure:"fallback_chars"`
	ChunkConcurrency int    `yaml:"chunk_concurrency" mapstructure:"chunk_concurrency"`
	AutoMode         string `yaml:"auto_mode" mapstructure:"auto_mode"` // sync, async, off
	AsyncWorkers     int    `yaml:"async_workers" mapstructure:"async_workers"`
	TaskTimeoutSecs  int    `yaml:"task_timeout_secs" mapstructure:"task_timeout_secs"`
}

// AnswerConfig configures answer generation context assembly.
type AnswerConfig struct {
	MaxContextChars int `yaml:"max_context_chars" mapstructure:"max_context_chars"`
	DocRawChars     int `yaml:"doc_raw_chars" mapstructure:"doc_raw_chars"`
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ScrapeConfig configures web source fetching.
type ScrapeConfig struct {
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	BrowserEnabled     bool   `yaml:"browser_enabled" mapstructure:"browser_enabled"`
	BrowserTimeoutSecs int    `yaml:"browser_timeout_secs" mapstructure:"browser_timeout_secs"`
	ChromePath         string `yaml:"chrome_path" mapstructure:"chrome_path"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OCRConfig configures the fallback text extraction for scanned PDFs.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // none, local, mistral
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_key" mapstructure:"mistral_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// UploadConfig limits multipart uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RFPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.summary_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_second", 2.0)
	v.SetDefault("summary.small_threshold", 2000)
	v.SetDefault("summary.large_threshold", 15000)
	v.SetDefault("summary.chunk_size", 12000)
	v.SetDefault("summary.max_key_points", 10)
	v.SetDefault("summary.fallback_chars", 20000)
	v.SetDefault("summary.chunk_concurrency", 4)
	v.SetDefault("summary.auto_mode", "sync")
	v.SetDefault("summary.async_workers", 4)
	v.SetDefault("summary.task_timeout_secs", 120)
	v.SetDefault("answer.max_context_chars", 60000)
	v.SetDefault("answer.doc_raw_chars", 8000)
	v.SetDefault("answer.concurrency", 4)
	v.SetDefault("scrape.timeout_secs", 20)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; rfpdesk/1.0)")
	v.SetDefault("scrape.max_body_bytes", 2<<20)
	v.SetDefault("scrape.browser_enabled", false)
	v.SetDefault("scrape.browser_timeout_secs", 30)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("ocr.provider", "none")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("upload.max_bytes", 25<<20)
}

// Validate checks that the keys required by the given command are present.
func (c *Config) Validate(mode string) error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver (RFPDESK_STORE_DATABASE_URL)")
		}
	case "sqlite":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}

	if c.Summary.SmallThreshold <= 0 || c.Summary.LargeThreshold <= c.Summary.SmallThreshold {
		return eris.Errorf("config: summary thresholds must satisfy 0 < small (%d) < large (%d)",
			c.Summary.SmallThreshold, c.Summary.LargeThreshold)
	}

	switch c.Summary.AutoMode {
	case "sync", "async", "off":
	default:
		return eris.Errorf("config: summary.auto_mode must be sync, async or off, got %q", c.Summary.AutoMode)
	}

	if mode == "serve" || mode == "summarize" {
		if c.Anthropic.Key == "" {
			zap.L().Warn("anthropic key not set, model-backed summaries and answers will fail")
		}
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
