package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/weather"
)

func sampleConfig() model.Configuration {
	cfg := model.DefaultConfiguration()
	cfg.Latitude = 48.137
	cfg.Longitude = 11.575
	cfg.SystemName = "Hybrid 800"
	cfg.BatteryModel = "Cube 2"
	cfg.BatteryUnits = 2
	cfg.OptimizeStorage = true
	cfg.SubArrays = []model.SubArray{
		{MPPTInput: 1, Modules: 2, Wiring: model.WiringParallel, ModuleWp: 430.5, TiltDeg: 30, AzimuthDeg: 180,
			Shading: model.Shading{Mode: model.ShadingSimple, Level: model.ShadingLight}},
		{MPPTInput: 2, Modules: 1, Wiring: model.WiringSeries, ModuleWp: 400, TiltDeg: 90, AzimuthDeg: 270,
			Shading: model.Shading{Mode: model.ShadingMonthly, MonthlyPct: map[int]float64{1: 40, 2: 35.5, 12: 50}}},
	}
	return cfg
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"project.json", "project.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := sampleConfig()

			require.NoError(t, Save(path, cfg))
			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestUnmarshal_KeepsDefaults(t *testing.T) {
	raw := []byte(`
latitude: 50
longitude: 8
system_name: Micro Only
sub_arrays:
  - mppt_input: 1
    modules: 2
    module_wp: 400
    tilt_deg: 20
    azimuth_deg: 180
`)
	cfg, err := Unmarshal(raw, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.TimestepMinutes)
	assert.Equal(t, model.ProfileRetiree, cfg.LoadProfile)
	assert.InDelta(t, 12, cfg.TotalLossPct(), 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestUnmarshal_ReplacesLosses(t *testing.T) {
	cfg, err := Unmarshal([]byte(`{"losses_pct": {"cable": 1.5}}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"cable": 1.5}, cfg.LossesPct)
}

func TestUnmarshal_UnknownField(t *testing.T) {
	_, err := Unmarshal([]byte(`{"latitud": 1}`), FormatJSON)
	assert.Error(t, err)
	_, err = Unmarshal([]byte("latitud: 1\n"), FormatYAML)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("latitude: 120\n"), 0o644))
	_, err := Load(path)
	var cerr *model.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("noext"))
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	s, err := LoadSettings(viper.New())
	require.NoError(t, err)
	assert.Equal(t, uint(8080), s.Port)
	assert.Equal(t, "pvgis", s.Weather.Source)
	assert.Equal(t, 60*time.Second, s.Weather.Timeout)
	assert.Equal(t, 4, s.Cache.LatLonDecimals)
	assert.Equal(t, 1, s.Cache.AngleDecimals)
	assert.Equal(t, zap.InfoLevel, s.LogLevel)
}

func TestLoadSettings_EnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weather:\n  source: csv\n  csv_dir: /data\nlog_level: debug\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PVSIM_PORT", "9090")
	t.Setenv("PVSIM_CACHE_ANGLE_DECIMALS", "2")

	s, err := LoadSettings(viper.New())
	require.NoError(t, err)
	assert.Equal(t, uint(9090), s.Port)
	assert.Equal(t, "csv", s.Weather.Source)
	assert.Equal(t, "/data", s.Weather.CSVDir)
	assert.Equal(t, 2, s.Cache.AngleDecimals)
	assert.Equal(t, zap.DebugLevel, s.LogLevel)
}

func TestLoadSettings_Rejects(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PVSIM_WEATHER_SOURCE", "ftp")
	_, err := LoadSettings(viper.New())
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("bogus"))
}

func TestWeatherSettings_NewSource(t *testing.T) {
	src, err := WeatherSettings{Source: "pvgis", Timeout: time.Second, RadDB: "PVGIS-ERA5", UserAgent: "test"}.NewSource()
	require.NoError(t, err)
	pv, ok := src.(*weather.PVGISClient)
	require.True(t, ok)
	assert.Equal(t, "PVGIS-ERA5", pv.RadDatabase)
	assert.Equal(t, "test", pv.UserAgent)
	assert.Equal(t, time.Second, pv.HTTPClient.Timeout)

	src, err = WeatherSettings{Source: "csv", CSVDir: "/data"}.NewSource()
	require.NoError(t, err)
	assert.Equal(t, "csv", src.Name())

	_, err = WeatherSettings{Source: "csv"}.NewSource()
	assert.Error(t, err)
	_, err = WeatherSettings{Source: "ftp"}.NewSource()
	assert.Error(t, err)
}

func TestCacheSettings_Precision(t *testing.T) {
	p := CacheSettings{LatLonDecimals: 3, AngleDecimals: 0}.Precision()
	assert.Equal(t, weather.Precision{LatLonDecimals: 3, AngleDecimals: 0}, p)
}
