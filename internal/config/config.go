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
	Geo       GeoConfig       `yaml:"geo" mapstructure:"geo"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Validator ValidatorConfig `yaml:"validator" mapstructure:"validator"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// GeoConfig names the boundaries and sizes the buffer.
type GeoConfig struct {
	DistrictName string  `yaml:"district_name" mapstructure:"district_name"`
	BufferName   string  `yaml:"buffer_name" mapstructure:"buffer_name"`
	BufferKm     float64 `yaml:"buffer_km" mapstructure:"buffer_km"`
}

// BatchConfig configures the chunked categorization driver.
type BatchConfig struct {
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
	Workers   int `yaml:"workers" mapstructure:"workers"`
}

// ValidatorConfig holds the distribution-check thresholds and the expected
// metro envelope for observed coordinates.
type ValidatorConfig struct {
	MissingCoordHighPct   float64 `yaml:"missing_coord_high_pct" mapstructure:"missing_coord_high_pct"`
	MissingCoordMediumPct float64 `yaml:"missing_coord_medium_pct" mapstructure:"missing_coord_medium_pct"`
	InsideHighPct         float64 `yaml:"inside_high_pct" mapstructure:"inside_high_pct"`
	OutsideLowPct         float64 `yaml:"outside_low_pct" mapstructure:"outside_low_pct"`
	MetroMinLat           float64 `yaml:"metro_min_lat" mapstructure:"metro_min_lat"`
	MetroMaxLat           float64 `yaml:"metro_max_lat" mapstructure:"metro_max_lat"`
	MetroMinLng           float64 `yaml:"metro_min_lng" mapstructure:"metro_min_lng"`
	MetroMaxLng           float64 `yaml:"metro_max_lng" mapstructure:"metro_max_lng"`
}

// IngestConfig configures the open-data client.
type IngestConfig struct {
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent  string  `yaml:"user_agent" mapstructure:"user_agent"`
	PageSize   int     `yaml:"page_size" mapstructure:"page_size"`
	MaxRetries int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ServerConfig configures the stats HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("DISTRICTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "districtwatch.db")
	v.SetDefault("geo.district_name", "district")
	v.SetDefault("geo.buffer_name", "district_buffer")
	v.SetDefault("geo.buffer_km", 0.5)
	v.SetDefault("batch.chunk_size", 10000)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("validator.missing_coord_high_pct", 20)
	v.SetDefault("validator.missing_coord_medium_pct", 10)
	v.SetDefault("validator.inside_high_pct", 10)
	v.SetDefault("validator.outside_low_pct", 90)
	v.SetDefault("validator.metro_min_lat", 35.8)
	v.SetDefault("validator.metro_max_lat", 36.5)
	v.SetDefault("validator.metro_min_lng", -87.3)
	v.SetDefault("validator.metro_max_lng", -86.3)
	v.SetDefault("ingest.page_size", 1000)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.rate_per_sec", 5)
	v.SetDefault("ingest.user_agent", "districtwatch/1.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the fields required for the given mode plus the shared
// bounds every mode relies on.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Batch.ChunkSize < 1 || c.Batch.ChunkSize > 100000 {
		problems = append(problems, "batch.chunk_size must be between 1 and 100000")
	}
	if c.Batch.Workers < 1 || c.Batch.Workers > 64 {
		problems = append(problems, "batch.workers must be between 1 and 64")
	}

	switch mode {
	case "ingest":
		if c.Ingest.BaseURL == "" {
			problems = append(problems, "ingest.base_url is required")
		}
	case "categorize", "report", "export", "boundary":
		if c.Geo.BufferKm <= 0 {
			problems = append(problems, "geo.buffer_km must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
