package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/weather"
)

const defaultBaseURL = "https://re.jrc.ec.europa.eu/api/v5_3/"

type options struct {
	record    string
	lat, lon  float64
	yearStart int
	yearEnd   int
	tilt      float64
	azimuth   float64
	outDir    string
	baseURL   string
	radDB     string
	timeout   time.Duration
	force     bool
	logLevel  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func newFlags(opts *options) *pflag.FlagSet {
	flags := pflag.NewFlagSet("weather-fetch", pflag.ContinueOnError)
	flags.StringVarP(&opts.record, "config", "c", "", "configuration record; fetches every sub-array orientation")
	flags.Float64Var(&opts.lat, "lat", 0, "latitude in degrees")
	flags.Float64Var(&opts.lon, "lon", 0, "longitude in degrees")
	flags.IntVar(&opts.yearStart, "year-start", 2020, "first year")
	flags.IntVar(&opts.yearEnd, "year-end", 2023, "last year")
	flags.Float64Var(&opts.tilt, "tilt", 30, "module tilt in degrees")
	flags.Float64Var(&opts.azimuth, "azimuth", 180, "module azimuth, clockwise from north")
	flags.StringVarP(&opts.outDir, "output", "o", "input/weather", "directory the CSV files are written to")
	flags.StringVar(&opts.baseURL, "url", "", "PVGIS API base URL (overrides PVGIS_URL)")
	flags.StringVar(&opts.radDB, "rad-db", "", "PVGIS radiation database (overrides PVGIS_RAD_DB)")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "timeout per request")
	flags.BoolVarP(&opts.force, "force", "f", false, "fetch again even if the file exists")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	return flags
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	var opts options
	flags := newFlags(&opts)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	// A missing .env is fine; values may come from the environment.
	_ = godotenv.Load()

	logger, err := config.NewLogger(config.ParseLevel(opts.logLevel))
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	reqs, err := requests(opts)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	client := weather.NewPVGISClient(resolveFlag(opts.baseURL, "PVGIS_URL", defaultBaseURL), opts.timeout)
	if db := resolveFlag(opts.radDB, "PVGIS_RAD_DB", ""); db != "" {
		client.RadDatabase = db
	}

	written, err := fetchAll(ctx, client, reqs, opts.outDir, opts.force, logger)
	if err != nil {
		logger.Error("fetch failed", zap.Error(err))
		return 1
	}
	logger.Info("done", zap.Int("written", written), zap.Int("requested", len(reqs)))
	return 0
}

func resolveFlag(flagVal, envKey, fallback string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

// requests lists the series to fetch: one per distinct orientation of the record,
// or the single orientation given on the command line.
func requests(opts options) ([]weather.Request, error) {
	if opts.record == "" {
		if opts.yearEnd < opts.yearStart {
			return nil, errors.New("--year-end must not be before --year-start")
		}
		return []weather.Request{{
			Latitude: opts.lat, Longitude: opts.lon,
			YearStart: opts.yearStart, YearEnd: opts.yearEnd,
			TiltDeg: opts.tilt, AzimuthDeg: opts.azimuth,
		}}, nil
	}
	cfg, err := config.Load(opts.record)
	if err != nil {
		return nil, err
	}
	return recordRequests(cfg), nil
}

func recordRequests(cfg model.Configuration) []weather.Request {
	seen := make(map[string]bool)
	var out []weather.Request
	for _, sa := range cfg.SubArrays {
		req := weather.DefaultPrecision.Round(weather.Request{
			Latitude: cfg.Latitude, Longitude: cfg.Longitude,
			YearStart: cfg.YearStart, YearEnd: cfg.YearEnd,
			TiltDeg: sa.TiltDeg, AzimuthDeg: sa.AzimuthDeg,
		})
		name := weather.FileName(req)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, req)
	}
	return out
}

// fetchAll downloads every request into dir and returns the number of files written.
func fetchAll(ctx context.Context, src weather.Source, reqs []weather.Request, dir string, force bool, logger *zap.Logger) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}
	written := 0
	for _, req := range reqs {
		path := filepath.Join(dir, weather.FileName(req))
		if !force {
			if _, err := os.Stat(path); err == nil {
				logger.Info("skipping existing file", zap.String("path", path))
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return written, err
			}
		}

		start := time.Now()
		s, err := src.Fetch(ctx, req)
		if err != nil {
			return written, fmt.Errorf("fetching tilt %.1f azimuth %.1f: %w", req.TiltDeg, req.AzimuthDeg, err)
		}
		if err := writeFile(path, s); err != nil {
			return written, err
		}
		written++
		logger.Info("weather written",
			zap.String("path", path),
			zap.Int("samples", s.Len()),
			zap.Duration("took", time.Since(start)))
	}
	return written, nil
}

// writeFile writes through a temporary file so an interrupted run leaves no partial CSV.
func writeFile(path string, s *weather.Series) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := weather.WriteCSV(f, s); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
