package config

import (
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"bullscan/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for bullscan.
type Config struct {
	Server   Server         `yaml:"server"`
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Backtest BacktestConfig `yaml:"backtest"`
	Screen   ScreenConfig   `yaml:"screen"`
}

// Server holds network listener configuration for bullscan-server.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address, defaulting the port to 8080.
func (s Server) Addr() string {
	port := s.Port
	if port <= 0 {
		port = 8080
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	OutputDir  string `yaml:"output_dir"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls market-data fetching.
type GatherConfig struct {
	USDaily GatherJobConfig `yaml:"us_daily"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	BatchSize       int    `yaml:"batch_size"`
	MaxWorkers      int    `yaml:"max_workers"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	Retries         int    `yaml:"retries"`
	RetryDelay      string `yaml:"retry_delay"`
}

// BacktestConfig holds the backtest parameters and the symbol universe.
type BacktestConfig struct {
	Symbols          []string `yaml:"symbols"`
	ReturnTarget     float64  `yaml:"return_target"`
	LookbackDays     int      `yaml:"lookback_days"`
	SupportWindow    int      `yaml:"support_window"`
	VolumeWindow     int      `yaml:"volume_window"`
	VolumeMultiplier float64  `yaml:"volume_multiplier"`
	StopBuffer       float64  `yaml:"stop_buffer"`
	Workers          int      `yaml:"workers"`
}

// Params returns the backtest parameters with unset fields defaulted.
func (b BacktestConfig) Params() domain.Params {
	return domain.Params{
		ReturnTarget:     b.ReturnTarget,
		LookbackDays:     b.LookbackDays,
		SupportWindow:    b.SupportWindow,
		VolumeWindow:     b.VolumeWindow,
		VolumeMultiplier: b.VolumeMultiplier,
		StopBuffer:       b.StopBuffer,
	}.WithDefaults()
}

// ScreenConfig holds the winner thresholds applied to backtest output. Zero
// values fall back to the screen package defaults.
type ScreenConfig struct {
	MinReturnPct    float64 `yaml:"min_return_pct"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`
	MinWinRatePct   float64 `yaml:"min_win_rate_pct"`
	MinSharpe       float64 `yaml:"min_sharpe"`
	MinSortino      float64 `yaml:"min_sortino"`
	MinEngulfing    int     `yaml:"min_engulfing"`
	RequireBreakout bool    `yaml:"require_breakout"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
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

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Storage.OutputDir = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Unparseable numbers are ignored and the file value stays.
	if v := os.Getenv("RETURN_TARGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.ReturnTarget = f
		}
	}
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backtest.LookbackDays = n
		}
	}

	// Standard Alpaca env vars take precedence; these are the names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
