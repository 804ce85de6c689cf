package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/poi-harvester/internal/collector"
	"github.com/sells-group/poi-harvester/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Amap    AmapConfig    `yaml:"amap" mapstructure:"amap"`
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// AmapConfig holds place-search API credentials and endpoint settings.
type AmapConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HarvestConfig tunes pagination, rate shaping, and retries.
type HarvestConfig struct {
	PageSize     int `yaml:"page_size" mapstructure:"page_size"`
	MaxPages     int `yaml:"max_pages" mapstructure:"max_pages"`
	QPS          int `yaml:"qps" mapstructure:"qps"`
	MaxRetries   int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelayMS int `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CollectorConfig converts the harvest section into the collection engine's
// config.
func (h HarvestConfig) CollectorConfig() collector.Config {
	return collector.Config{
		PageSize: h.PageSize,
		MaxPages: h.MaxPages,
		RPS:      float64(h.QPS),
		Retry: resilience.RetryConfig{
			MaxRetries: h.MaxRetries,
			Delay:      time.Duration(h.RetryDelayMS) * time.Millisecond,
		},
	}
}

// OutputConfig configures where harvested data is written.
type OutputConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	AddTimestamp bool   `yaml:"add_timestamp" mapstructure:"add_timestamp"`
	TimeFormat   string `yaml:"time_format" mapstructure:"time_format"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DSN returns the connection string for the configured driver.
func (s StoreConfig) DSN() string {
	if s.Driver == "postgres" {
		return s.DatabaseURL
	}
	return s.Path
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("POI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("amap.base_url", "https://restapi.amap.com/v5/place")
	v.SetDefault("harvest.page_size", 25)
	v.SetDefault("harvest.max_pages", 100)
	v.SetDefault("harvest.qps", 2)
	v.SetDefault("harvest.max_retries", 3)
	v.SetDefault("harvest.retry_delay_ms", 1000)
	v.SetDefault("harvest.timeout_secs", 30)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.add_timestamp", true)
	v.SetDefault("output.time_format", "20060102_1504")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "poi_harvester.db")
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

// Validate checks the fields a given mode requires. Modes: "harvest" needs
// API credentials and sane paging bounds, "serve" needs a listen port and a
// store, "grid" needs nothing beyond defaults.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkHarvest := func() {
		if c.Amap.Key == "" {
			problems = append(problems, "amap.key is required")
		}
		if c.Harvest.PageSize < 1 || c.Harvest.PageSize > 25 {
			problems = append(problems, "harvest.page_size must be between 1 and 25")
		}
		if c.Harvest.MaxPages < 1 {
			problems = append(problems, "harvest.max_pages must be >= 1")
		}
		if c.Harvest.QPS < 1 {
			problems = append(problems, "harvest.qps must be >= 1")
		}
	}

	switch mode {
	case "harvest":
		checkHarvest()
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Store.DSN() == "" {
			problems = append(problems, "store."+storeDSNField(c.Store.Driver)+" is required")
		}
	case "grid":
		// Tiling is local; nothing to check.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func storeDSNField(driver string) string {
	if driver == "postgres" {
		return "database_url"
	}
	return "path"
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
