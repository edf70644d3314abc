package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Widgets  WidgetsConfig  `mapstructure:"widgets"`
	Feeds    FeedsConfig    `mapstructure:"feeds"`
	Chatbots ChatbotsConfig `mapstructure:"chatbots"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Storage backends
const (
	BackendKV         = "kv"
	BackendRelational = "relational"
)

// Blob store drivers
const (
	KVDriverMemory = "memory"
	KVDriverSQL    = "sql"
	KVDriverSheets = "sheets"
)

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend    string           `mapstructure:"backend"` // kv or relational
	KV         KVConfig         `mapstructure:"kv"`
	Relational RelationalConfig `mapstructure:"relational"`
	Sheets     SheetsConfig     `mapstructure:"sheets"`
}

// KVConfig holds blob store settings
type KVConfig struct {
	Driver string `mapstructure:"driver"` // memory, sql or sheets
}

// RelationalConfig holds database connection settings.
// The sql blob store driver reuses this connection.
type RelationalConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// SheetsConfig holds Google Sheets blob store settings
type SheetsConfig struct {
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
	RequestsPerMinute  int    `mapstructure:"requests_per_minute"`
}

// WidgetsConfig controls generated embed snippets
type WidgetsConfig struct {
	EmbedBaseURL string `mapstructure:"embed_base_url"`
	Height       int    `mapstructure:"height"`
}

// FeedsConfig holds feed defaults
type FeedsConfig struct {
	DefaultRefreshInterval int `mapstructure:"default_refresh_interval"` // minutes
}

// ChatbotsConfig holds chatbot defaults
type ChatbotsConfig struct {
	DefaultLanguage    string `mapstructure:"default_language"`
	DefaultPersonality string `mapstructure:"default_personality"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".chatzia"))
		}
	}

	v.SetEnvPrefix("CHATZIA")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("storage.backend", "CHATZIA_STORAGE_BACKEND")
	v.BindEnv("storage.kv.driver", "CHATZIA_STORAGE_KV_DRIVER")
	v.BindEnv("storage.relational.driver", "CHATZIA_DATABASE_DRIVER")
	v.BindEnv("storage.relational.dsn", "CHATZIA_DATABASE_DSN")
	v.BindEnv("storage.sheets.spreadsheet_id", "CHATZIA_SHEETS_SPREADSHEET_ID")
	v.BindEnv("storage.sheets.credentials_file", "CHATZIA_SHEETS_CREDENTIALS_FILE")
	v.BindEnv("storage.sheets.service_account_json", "CHATZIA_SHEETS_SERVICE_ACCOUNT_JSON")
	v.BindEnv("logging.level", "CHATZIA_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendKV)
	v.SetDefault("storage.kv.driver", KVDriverSQL)
	v.SetDefault("storage.relational.driver", "sqlite")
	v.SetDefault("storage.relational.dsn", "./data/chatzia.db")
	v.SetDefault("storage.sheets.sheet_name", "Storage")
	v.SetDefault("storage.sheets.requests_per_minute", 60)

	v.SetDefault("widgets.embed_base_url", "https://feedflow.app/widget")
	v.SetDefault("widgets.height", 600)

	v.SetDefault("feeds.default_refresh_interval", 60)

	v.SetDefault("chatbots.default_language", "es")
	v.SetDefault("chatbots.default_personality", "professional")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendKV:
		switch c.Storage.KV.Driver {
		case KVDriverMemory:
		case KVDriverSQL:
			if err := c.Storage.Relational.validate(); err != nil {
				return err
			}
		case KVDriverSheets:
			if c.Storage.Sheets.SpreadsheetID == "" {
				return fmt.Errorf("storage.sheets.spreadsheet_id is required")
			}
			if c.Storage.Sheets.ServiceAccountJSON == "" && c.Storage.Sheets.CredentialsFile == "" {
				return fmt.Errorf("storage.sheets needs credentials_file or service_account_json")
			}
		default:
			return fmt.Errorf("unknown storage.kv.driver %q", c.Storage.KV.Driver)
		}
	case BackendRelational:
		if err := c.Storage.Relational.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	u, err := url.Parse(c.Widgets.EmbedBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("widgets.embed_base_url must be an absolute URL")
	}
	if c.Feeds.DefaultRefreshInterval <= 0 {
		return fmt.Errorf("feeds.default_refresh_interval must be positive")
	}
	return nil
}

func (r RelationalConfig) validate() error {
	if r.Driver != "sqlite" && r.Driver != "postgres" {
		return fmt.Errorf("unknown storage.relational.driver %q", r.Driver)
	}
	if r.DSN == "" {
		return fmt.Errorf("storage.relational.dsn is required")
	}
	return nil
}
