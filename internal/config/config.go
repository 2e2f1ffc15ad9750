package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration shared by the stockwatch binaries.
type Config struct {
	Server  Server  `yaml:"server"`
	Client  Client  `yaml:"client"`
	Storage Storage `yaml:"storage"`
	Quotes  Quotes  `yaml:"quotes"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration for watch-server.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Client configures watch-client and watch-cli.
type Client struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	StateDir    string        `yaml:"state_dir"`
	AutoRefresh time.Duration `yaml:"auto_refresh"`
	ChartHeight int           `yaml:"chart_height"`
}

// Storage holds paths for data persistence on the server.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Quotes selects and tunes the upstream price provider.
type Quotes struct {
	Provider    string        `yaml:"provider"` // "alpaca" or "yahoo"
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Workers     int           `yaml:"workers"`
	Retries     int           `yaml:"retries"`
	RatePerMin  int           `yaml:"rate_per_min"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	YahooURL    string        `yaml:"yahoo_url"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Server: Server{Host: "0.0.0.0", Port: 5001, GRPCPort: 5002},
		Client: Client{
			BaseURL:     "http://localhost:5001",
			Timeout:     30 * time.Second,
			StateDir:    defaultStateDir(),
			AutoRefresh: 5 * time.Minute,
			ChartHeight: 8,
		},
		Storage: Storage{DataDir: "data", SQLitePath: "data/stocks.db"},
		Quotes: Quotes{
			Provider:    "yahoo",
			CacheTTL:    5 * time.Minute,
			Workers:     8,
			Retries:     2,
			RatePerMin:  120,
			HTTPTimeout: 8 * time.Second,
			YahooURL:    "https://query2.finance.yahoo.com",
		},
		Alpaca:  Alpaca{Feed: "iex"},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults, then applies environment variable overrides. A missing file is
// not an error. A .env file in the working directory, if present, is loaded
// into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Path returns the config file location from STOCKWATCH_CONFIG, or the
// conventional default.
func Path() string {
	if p := os.Getenv("STOCKWATCH_CONFIG"); p != "" {
		return p
	}
	return "config/stockwatch.yaml"
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKWATCH_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := os.Getenv("STOCKWATCH_STATE_DIR"); v != "" {
		cfg.Client.StateDir = v
	}
	if v := os.Getenv("STOCKWATCH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("QUOTE_PROVIDER"); v != "" {
		cfg.Quotes.Provider = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/stockwatch"
	}
	return ".stockwatch"
}
