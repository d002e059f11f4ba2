package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Territory TerritoryConfig `yaml:"territory" mapstructure:"territory"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the postal lookup and geocoding services.
type GeocodeConfig struct {
	ViaCEPURL    string  `yaml:"viacep_url" mapstructure:"viacep_url"`
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	CacheEnabled bool    `yaml:"cache_enabled" mapstructure:"cache_enabled"`
}

// ImportConfig configures spreadsheet imports.
type ImportConfig struct {
	ClientCodeStart   int    `yaml:"client_code_start" mapstructure:"client_code_start"`
	MaxCommentColumns int    `yaml:"max_comment_columns" mapstructure:"max_comment_columns"`
	LockFile          string `yaml:"lock_file" mapstructure:"lock_file"`
}

// TerritoryConfig points at the seller territory file.
type TerritoryConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ScorerConfig holds the keyword tiers used to prioritize leads. Empty
// tiers fall back to the built-in Portuguese lists.
type ScorerConfig struct {
	CriticalKeywords    []string `yaml:"critical_keywords" mapstructure:"critical_keywords"`
	TemperatureKeywords []string `yaml:"temperature_keywords" mapstructure:"temperature_keywords"`
	CosmeticKeywords    []string `yaml:"cosmetic_keywords" mapstructure:"cosmetic_keywords"`
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, a YAML file, and the environment, in
// increasing precedence. An empty path looks for an optional config.yaml in
// the working directory; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospect.db")
	v.SetDefault("geocode.viacep_url", "https://viacep.com.br/ws")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "prospect-cli/1.0")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("geocode.max_retries", 3)
	v.SetDefault("geocode.cache_enabled", true)
	v.SetDefault("import.client_code_start", 10000)
	v.SetDefault("import.max_comment_columns", 10)
	v.SetDefault("import.lock_file", ".prospect.lock")
	v.SetDefault("territory.file", "sellers.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// migrate, import, assign, score, and serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "migrate", "score":
	case "import":
		errs = append(errs, c.validateGeocode()...)
		if c.Import.ClientCodeStart <= 0 {
			errs = append(errs, "import.client_code_start must be > 0")
		}
		if c.Import.MaxCommentColumns < 1 || c.Import.MaxCommentColumns > 100 {
			errs = append(errs, "import.max_comment_columns must be between 1 and 100")
		}
	case "assign":
		errs = append(errs, c.validateGeocode()...)
		if c.Territory.File == "" {
			errs = append(errs, "territory.file is required")
		}
	case "serve":
		errs = append(errs, c.validateGeocode()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Nominatim's usage policy caps clients at one request per second.
func (c *Config) validateGeocode() []string {
	var errs []string
	if c.Geocode.RatePerSec <= 0 || c.Geocode.RatePerSec > 1 {
		errs = append(errs, "geocode.rate_per_sec must be in (0, 1]")
	}
	if c.Geocode.UserAgent == "" {
		errs = append(errs, "geocode.user_agent is required")
	}
	if c.Geocode.MaxRetries < 0 {
		errs = append(errs, "geocode.max_retries must be >= 0")
	}
	return errs
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
