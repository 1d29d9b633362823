package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Temporal TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
	Captcha  CaptchaConfig  `yaml:"captcha" mapstructure:"captcha"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// TemporalConfig configures the task-queue connection.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// CaptchaConfig configures the captcha oracle.
type CaptchaConfig struct {
	SolverURL   string `yaml:"solver_url" mapstructure:"solver_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScrapeConfig configures the scrape runs: the search matrix and the pacing
// contract with the court sites.
type ScrapeConfig struct {
	Articles      []string `yaml:"articles" mapstructure:"articles"`
	SubTypes      []string `yaml:"sub_types" mapstructure:"sub_types"`
	EntryDateFrom string   `yaml:"entry_date_from" mapstructure:"entry_date_from"`
	MinDelaySecs  int      `yaml:"min_delay_secs" mapstructure:"min_delay_secs"`
	MaxDelaySecs  int      `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MinDelay returns the lower bound of the inter-fetch delay window.
func (c ScrapeConfig) MinDelay() time.Duration { return time.Duration(c.MinDelaySecs) * time.Second }

// MaxDelay returns the upper bound of the inter-fetch delay window.
func (c ScrapeConfig) MaxDelay() time.Duration { return time.Duration(c.MaxDelaySecs) * time.Second }

// BatchConfig configures the roster walk and session retention.
type BatchConfig struct {
	PageSize      int    `yaml:"page_size" mapstructure:"page_size"`
	TickCron      string `yaml:"tick_cron" mapstructure:"tick_cron"`
	CleanCron     string `yaml:"clean_cron" mapstructure:"clean_cron"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}

// Retention returns the session retention window.
func (c BatchConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// CatalogConfig locates the court roster file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("COURTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("captcha.timeout_secs", 60)
	v.SetDefault("scrape.articles", []string{
		"205", "207", "213", "214", "222", "223", "244", "280",
		"328", "329", "332", "337", "338", "339", "361",
	})
	v.SetDefault("scrape.sub_types", []string{"Первая инстанция", "Апелляционная инстанция"})
	v.SetDefault("scrape.entry_date_from", "24.02.2022")
	v.SetDefault("scrape.min_delay_secs", 2)
	v.SetDefault("scrape.max_delay_secs", 20)
	v.SetDefault("scrape.timeout_secs", 120)
	v.SetDefault("batch.page_size", 5)
	v.SetDefault("batch.tick_cron", "*/15 * * * *")
	v.SetDefault("batch.clean_cron", "0 0 * * *")
	v.SetDefault("batch.retention_days", 7)
	v.SetDefault("catalog.path", "data/courts.yaml")
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
