// Package config loads flood-cli settings from config.yaml and FLOOD_* environment variables.
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
	Susceptibility SusceptibilityConfig `yaml:"susceptibility" mapstructure:"susceptibility"`
	NDWI           NDWIConfig           `yaml:"ndwi" mapstructure:"ndwi"`
	Dashboard      DashboardConfig      `yaml:"dashboard" mapstructure:"dashboard"`
	Loss           LossConfig           `yaml:"loss" mapstructure:"loss"`
	Simulate       SimulateConfig       `yaml:"simulate" mapstructure:"simulate"`
	Fetch          FetchConfig          `yaml:"fetch" mapstructure:"fetch"`
	Metrics        MetricsConfig        `yaml:"metrics" mapstructure:"metrics"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// SusceptibilityConfig configures the multi-criteria combiner.
type SusceptibilityConfig struct {
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
	Output   string `yaml:"output" mapstructure:"output"`
	Format   string `yaml:"format" mapstructure:"format"`
	Size     int    `yaml:"size" mapstructure:"size"`
	Seed     uint64 `yaml:"seed" mapstructure:"seed"`
}

// NDWIConfig configures water detection.
type NDWIConfig struct {
	Green      string  `yaml:"green" mapstructure:"green"`
	NIR        string  `yaml:"nir" mapstructure:"nir"`
	GreenVar   string  `yaml:"green_var" mapstructure:"green_var"`
	NIRVar     string  `yaml:"nir_var" mapstructure:"nir_var"`
	ZeroPolicy string  `yaml:"zero_policy" mapstructure:"zero_policy"`
	Threshold  float64 `yaml:"threshold" mapstructure:"threshold"`
	OutputDir  string  `yaml:"output_dir" mapstructure:"output_dir"`
	Size       int     `yaml:"size" mapstructure:"size"`
	Seed       uint64  `yaml:"seed" mapstructure:"seed"`
}

// DashboardConfig configures the local web dashboard.
type DashboardConfig struct {
	Addr            string   `yaml:"addr" mapstructure:"addr"`
	Table           string   `yaml:"table" mapstructure:"table"`
	Sheet           string   `yaml:"sheet" mapstructure:"sheet"`
	Locations       string   `yaml:"locations" mapstructure:"locations"`
	RateLimit       float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst       int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	CacheEntries    int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTL        int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LossConfig configures the loss & damage estimator.
type LossConfig struct {
	Depth         string `yaml:"depth" mapstructure:"depth"`
	DepthVar      string `yaml:"depth_var" mapstructure:"depth_var"`
	Buildings     string `yaml:"buildings" mapstructure:"buildings"`
	Output        string `yaml:"output" mapstructure:"output"`
	DepthOutput   string `yaml:"depth_output" mapstructure:"depth_output"`
	DemoBuildings int    `yaml:"demo_buildings" mapstructure:"demo_buildings"`
	Seed          uint64 `yaml:"seed" mapstructure:"seed"`
}

// SimulateConfig configures the cellular-automata flood model.
type SimulateConfig struct {
	DEM           string  `yaml:"dem" mapstructure:"dem"`
	DEMVar        string  `yaml:"dem_var" mapstructure:"dem_var"`
	Output        string  `yaml:"output" mapstructure:"output"`
	Size          int     `yaml:"size" mapstructure:"size"`
	Seed          uint64  `yaml:"seed" mapstructure:"seed"`
	RainfallMM    float64 `yaml:"rainfall_mm" mapstructure:"rainfall_mm"`
	Steps         int     `yaml:"steps" mapstructure:"steps"`
	InfiltrationM float64 `yaml:"infiltration_m" mapstructure:"infiltration_m"`
	EdgeOutflow   bool    `yaml:"edge_outflow" mapstructure:"edge_outflow"`
}

// FetchConfig configures remote input downloads.
type FetchConfig struct {
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// MetricsConfig configures batch-run metrics export. Textfile is written in
// the Prometheus text format after every batch run, for node_exporter's
// textfile collector. Empty disables export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
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
	v.SetEnvPrefix("FLOOD")
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
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("susceptibility.manifest", "")
	v.SetDefault("susceptibility.output", "susceptibility.tif")
	v.SetDefault("susceptibility.format", "geotiff")
	v.SetDefault("susceptibility.size", 200)
	v.SetDefault("susceptibility.seed", 7)

	v.SetDefault("ndwi.green", "")
	v.SetDefault("ndwi.nir", "")
	v.SetDefault("ndwi.green_var", "green")
	v.SetDefault("ndwi.nir_var", "nir")
	v.SetDefault("ndwi.zero_policy", "nan")
	v.SetDefault("ndwi.threshold", 0.25)
	v.SetDefault("ndwi.output_dir", "")
	v.SetDefault("ndwi.size", 256)
	v.SetDefault("ndwi.seed", 3)

	v.SetDefault("dashboard.addr", "127.0.0.1:8050")
	v.SetDefault("dashboard.table", "data/rainfall_discharge.csv")
	v.SetDefault("dashboard.sheet", "")
	v.SetDefault("dashboard.locations", "data/flood_prone.geojson")
	v.SetDefault("dashboard.rate_limit", 20.0)
	v.SetDefault("dashboard.rate_burst", 40)
	v.SetDefault("dashboard.cors_origins", []string{"*"})
	v.SetDefault("dashboard.cache_entries", 64)
	v.SetDefault("dashboard.cache_ttl_secs", 300)
	v.SetDefault("dashboard.shutdown_timeout_secs", 5)

	v.SetDefault("loss.depth", "")
	v.SetDefault("loss.depth_var", "depth")
	v.SetDefault("loss.buildings", "")
	v.SetDefault("loss.output", "losses.geojson")
	v.SetDefault("loss.depth_output", "flood_depth.tif")
	v.SetDefault("loss.demo_buildings", 80)
	v.SetDefault("loss.seed", 5)

	v.SetDefault("simulate.dem", "")
	v.SetDefault("simulate.dem_var", "elevation")
	v.SetDefault("simulate.output", "water_depth.tif")
	v.SetDefault("simulate.size", 120)
	v.SetDefault("simulate.seed", 1)
	v.SetDefault("simulate.rainfall_mm", 120.0)
	v.SetDefault("simulate.steps", 250)
	v.SetDefault("simulate.infiltration_m", 0.002)
	v.SetDefault("simulate.edge_outflow", true)

	v.SetDefault("fetch.temp_dir", "")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.rate_per_host", 5.0)
	v.SetDefault("fetch.user_agent", "flood-cli/1.0")

	v.SetDefault("metrics.textfile", "")
}

// Validate checks the settings a subcommand depends on. mode is the
// subcommand name; unknown modes only get the shared checks.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Fetch.MaxAttempts < 1 {
		problems = append(problems, "fetch.max_attempts must be >= 1")
	}
	if c.Fetch.RatePerHost <= 0 {
		problems = append(problems, "fetch.rate_per_host must be > 0")
	}

	switch mode {
	case "susceptibility":
		if c.Susceptibility.Manifest == "" && c.Susceptibility.Size < 2 {
			problems = append(problems, "susceptibility.size must be >= 2")
		}
		if c.Susceptibility.Output == "" {
			problems = append(problems, "susceptibility.output is required")
		}
	case "ndwi":
		if (c.NDWI.Green == "") != (c.NDWI.NIR == "") {
			problems = append(problems, "ndwi.green and ndwi.nir must be set together")
		}
		if c.NDWI.Threshold < -1 || c.NDWI.Threshold > 1 {
			problems = append(problems, "ndwi.threshold must be within [-1, 1]")
		}
		if c.NDWI.Green == "" && c.NDWI.Size < 1 {
			problems = append(problems, "ndwi.size must be >= 1")
		}
	case "dashboard":
		if c.Dashboard.Addr == "" {
			problems = append(problems, "dashboard.addr is required")
		}
		if c.Dashboard.Table == "" {
			problems = append(problems, "dashboard.table is required")
		}
		if c.Dashboard.RateLimit < 0 {
			problems = append(problems, "dashboard.rate_limit must be >= 0 (0 disables limiting)")
		}
		if c.Dashboard.RateLimit > 0 && c.Dashboard.RateBurst < 1 {
			problems = append(problems, "dashboard.rate_burst must be >= 1 when rate_limit is set")
		}
	case "loss":
		if c.Loss.Output == "" {
			problems = append(problems, "loss.output is required")
		}
		if c.Loss.Buildings == "" && c.Loss.DemoBuildings < 1 {
			problems = append(problems, "loss.demo_buildings must be >= 1")
		}
	case "simulate":
		if c.Simulate.Steps < 1 {
			problems = append(problems, "simulate.steps must be >= 1")
		}
		if c.Simulate.RainfallMM < 0 || c.Simulate.InfiltrationM < 0 {
			problems = append(problems, "simulate.rainfall_mm and simulate.infiltration_m must be >= 0")
		}
		if c.Simulate.DEM == "" && c.Simulate.Size < 3 {
			problems = append(problems, "simulate.size must be >= 3")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
