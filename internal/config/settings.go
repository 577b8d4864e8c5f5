package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pvyield_simulator/internal/weather"
)

// Settings configure the long-running tools (server, CLI), not a simulation run.
type Settings struct {
	LogLevel zapcore.Level `mapstructure:"-"`
	Port     uint          `mapstructure:"port"`
	HTTPLog  bool          `mapstructure:"http_log"`

	CatalogDir  string `mapstructure:"catalog_dir"`
	FrontendDir string `mapstructure:"frontend_dir"`

	Weather WeatherSettings `mapstructure:"weather"`
	Cache   CacheSettings   `mapstructure:"cache"`

	MaxParallelScenarios int `mapstructure:"max_parallel_scenarios"`
}

// WeatherSettings select and tune the weather source.
type WeatherSettings struct {
	Source    string        `mapstructure:"source"` // "pvgis" or "csv"
	BaseURL   string        `mapstructure:"base_url"`
	RadDB     string        `mapstructure:"rad_database"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CSVDir    string        `mapstructure:"csv_dir"`
	UserAgent string        `mapstructure:"user_agent"`
}

// CacheSettings control key rounding of the weather cache.
type CacheSettings struct {
	LatLonDecimals int `mapstructure:"lat_lon_decimals"`
	AngleDecimals  int `mapstructure:"angle_decimals"`
}

// NewSource builds the configured weather source.
func (w WeatherSettings) NewSource() (weather.Source, error) {
	switch w.Source {
	case "pvgis":
		c := weather.NewPVGISClient(w.BaseURL, w.Timeout)
		if w.RadDB != "" {
			c.RadDatabase = w.RadDB
		}
		if w.UserAgent != "" {
			c.UserAgent = w.UserAgent
		}
		return c, nil
	case "csv":
		if w.CSVDir == "" {
			return nil, errors.New("config param weather.csv_dir is required for the csv source")
		}
		return &weather.CSVSource{Dir: w.CSVDir}, nil
	default:
		return nil, errors.New("config param weather.source must be pvgis or csv")
	}
}

// Precision converts the cache settings into key rounding.
func (c CacheSettings) Precision() weather.Precision {
	return weather.Precision{LatLonDecimals: c.LatLonDecimals, AngleDecimals: c.AngleDecimals}
}

// EnvPrefix is prepended to every environment override, e.g. PVSIM_PORT.
const EnvPrefix = "pvsim"

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
	v.SetDefault("catalog_dir", "resources")
	v.SetDefault("frontend_dir", "")
	v.SetDefault("weather.source", "pvgis")
	v.SetDefault("weather.base_url", "https://re.jrc.ec.europa.eu/api/v5_3/")
	v.SetDefault("weather.rad_database", "PVGIS-SARAH3")
	v.SetDefault("weather.timeout", 60*time.Second)
	v.SetDefault("weather.csv_dir", "input/weather")
	v.SetDefault("weather.user_agent", "pvyield-simulator")
	v.SetDefault("cache.lat_lon_decimals", 4)
	v.SetDefault("cache.angle_decimals", 1)
	v.SetDefault("max_parallel_scenarios", 2)
}

// LoadSettings reads defaults, an optional config file named by CONFIG_FILE, and
// PVSIM_* environment overrides into v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	// alias PORT => PVSIM_PORT
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PVSIM_PORT") == "" {
		os.Setenv("PVSIM_PORT", port)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	s.LogLevel = ParseLevel(v.GetString("log_level"))

	if s.Cache.LatLonDecimals < 0 || s.Cache.AngleDecimals < 0 {
		return nil, errors.New("config params cache.*_decimals must be >= 0")
	}
	if s.MaxParallelScenarios < 1 {
		return nil, errors.New("config param max_parallel_scenarios must be >= 1")
	}
	if s.Weather.Timeout <= 0 {
		return nil, errors.New("config param weather.timeout must be > 0")
	}
	switch s.Weather.Source {
	case "pvgis", "csv":
	default:
		return nil, errors.New("config param weather.source must be pvgis or csv")
	}
	return &s, nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "trace", "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// NewLogger builds a production zap logger at the configured level.
func NewLogger(level zapcore.Level) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
