package domain

import (
	"os"
	"strconv"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`
	RefData  RefDataConfig  `json:"refData"`
	Datasets DatasetConfig  `json:"datasets"`
	Narrator NarratorConfig `json:"narrator"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// RefDataConfig holds reference data source paths.
type RefDataConfig struct {
	// CountriesPath is the CSV of high-risk countries (column "Name").
	CountriesPath string `json:"countriesPath"`

	// KeywordsPath is the CSV of risk keywords (column "Keyword").
	KeywordsPath string `json:"keywordsPath"`
}

// DatasetConfig holds in-memory dataset store settings.
type DatasetConfig struct {
	// MaxDatasets bounds the number of uploaded datasets held in memory.
	// The least recently used dataset is evicted at the cap.
	MaxDatasets int `json:"maxDatasets"`
}

// NarratorConfig holds settings for the external SAR narrative service.
// The endpoint is any OpenAI-compatible chat-completions API.
type NarratorConfig struct {
	BaseURL     string  `json:"baseUrl"`
	APIKey      string  `json:"-"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	TimeoutSecs int     `json:"timeoutSecs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the default single-node configuration:
// in-memory cache, channel event bus, reference CSVs under ./data.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		RefData: RefDataConfig{
			CountriesPath: "./data/high_risk_countries.csv",
			KeywordsPath:  "./data/high_risk_keywords.csv",
		},
		Datasets: DatasetConfig{
			MaxDatasets: 32,
		},
		Narrator: NarratorConfig{
			Model:       "llama3-70b-8192",
			Temperature: 0.5,
			TimeoutSecs: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// FromEnv returns the default configuration with KESTREL_* environment
// overrides applied.
func FromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("KESTREL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v, ok := envInt("KESTREL_PORT"); ok {
		cfg.Server.Port = v
	}
	if v := os.Getenv("KESTREL_COUNTRIES_FILE"); v != "" {
		cfg.RefData.CountriesPath = v
	}
	if v := os.Getenv("KESTREL_KEYWORDS_FILE"); v != "" {
		cfg.RefData.KeywordsPath = v
	}
	if v, ok := envInt("KESTREL_MAX_DATASETS"); ok {
		cfg.Datasets.MaxDatasets = v
	}

	if v := os.Getenv("KESTREL_CACHE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KESTREL_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}

	if v := os.Getenv("KESTREL_BUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	if v := os.Getenv("KESTREL_SAR_BASE_URL"); v != "" {
		cfg.Narrator.BaseURL = v
	}
	if v := os.Getenv("KESTREL_SAR_API_KEY"); v != "" {
		cfg.Narrator.APIKey = v
	}
	if v := os.Getenv("KESTREL_SAR_MODEL"); v != "" {
		cfg.Narrator.Model = v
	}

	if os.Getenv("KESTREL_TRACING") == "true" {
		cfg.Tracing.Enabled = true
	}

	return cfg
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
