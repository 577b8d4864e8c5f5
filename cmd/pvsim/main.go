package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v1"

	"pvyield_simulator/internal/catalog"
	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/report"
	"pvyield_simulator/internal/scenario"
	"pvyield_simulator/internal/simulator"
	"pvyield_simulator/internal/weather"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	units      int
	jsonOut    bool
	quiet      bool
	version    bool
}

// newFlags declares the command line and binds the settings overrides into v.
func newFlags(v *viper.Viper, opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("pvsim", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "configuration record (YAML or JSON)")
	fs.IntVarP(&opts.units, "units", "u", -1, "battery units to compare up to (overrides the record)")
	fs.BoolVar(&opts.jsonOut, "json", false, "print the batch as JSON instead of a table")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.String("catalog", "", "directory holding the hardware catalog")
	fs.String("weather-source", "", "weather source: pvgis or csv")
	fs.String("weather-csv", "", "directory of cached weather CSV files")
	fs.Int("parallel", 0, "scenarios simulated at once")
	fs.String("log-level", "", "log level (debug, info, warn, error)")

	for key, name := range map[string]string{
		"catalog_dir":            "catalog",
		"weather.source":         "weather-source",
		"weather.csv_dir":        "weather-csv",
		"max_parallel_scenarios": "parallel",
		"log_level":              "log-level",
	} {
		_ = v.BindPFlag(key, fs.Lookup(name))
	}
	return fs
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	v := viper.New()
	var opts options
	fs := newFlags(v, &opts)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "pvsim %s\n", versioninfo.Short())
		return 0
	}
	if opts.configPath == "" && fs.NArg() > 0 {
		opts.configPath = fs.Arg(0)
	}
	if opts.configPath == "" {
		fmt.Fprintln(stderr, "usage: pvsim [flags] <config.yaml>")
		fs.PrintDefaults()
		return 2
	}

	settings, err := config.LoadSettings(v)
	if err != nil {
		fmt.Fprintf(stderr, "config errors: %v\n", err)
		return 2
	}
	// Log lines would tear the progress bar; stay at warn unless asked.
	if !fs.Changed("log-level") && os.Getenv("PVSIM_LOG_LEVEL") == "" {
		settings.LogLevel = zap.WarnLevel
	}
	logger, err := config.NewLogger(settings.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	if opts.units >= 0 {
		cfg = cfg.WithBatteryUnits(opts.units)
	}

	runner, err := newRunner(settings, logger)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	var obs scenario.Observer = scenario.ObserverFuncs{}
	var bar *progressBar
	if !opts.quiet {
		bar = newProgressBar(cfg.BatteryUnits+1, stderr)
		obs = bar
	}
	batch, err := runner.RunAll(ctx, cfg, obs)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		fmt.Fprintf(stderr, "simulation failed: %v\n", err)
		return exitCode(err)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		return 0
	}
	if err := printReport(stdout, batch); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return 0
}

func newRunner(settings *config.Settings, logger *zap.Logger) (*scenario.Runner, error) {
	cat, err := catalog.LoadDir(settings.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	source, err := settings.Weather.NewSource()
	if err != nil {
		return nil, err
	}
	cache := weather.NewCache(source,
		weather.WithPrecision(settings.Cache.Precision()),
		weather.WithLogger(logger.Named("weather")),
	)
	engine := simulator.New(cat, cache, simulator.WithLogger(logger.Named("simulator")))
	return scenario.New(engine,
		scenario.WithLimit(settings.MaxParallelScenarios),
		scenario.WithLogger(logger.Named("scenario")),
	), nil
}

func printReport(w io.Writer, batch *scenario.Batch) error {
	cfg := batch.Config
	fmt.Fprintln(w)
	fmt.Fprintln(w, "PV Yield Simulation")
	fmt.Fprintf(w, "  System: %s", cfg.SystemName)
	if cfg.Manufacturer != "" {
		fmt.Fprintf(w, " (%s)", cfg.Manufacturer)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Location: %.4f, %.4f  Years: %d to %d\n", cfg.Latitude, cfg.Longitude, cfg.YearStart, cfg.YearEnd)
	fmt.Fprintf(w, "  Runtime: %s\n", batch.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w)

	if err := report.WriteTable(w, report.MergeRows(batch.Results), batch.Units()); err != nil {
		return err
	}
	if len(batch.Results) > 1 {
		fmt.Fprintf(w, "\n  Battery disabled: %s\n", report.DisabledLabel(report.DisabledMonths(batch.Results)))
	}
	fmt.Fprintln(w)
	return nil
}

// exitCode maps run failures to distinct exit statuses.
func exitCode(err error) int {
	var cerr *model.ConfigurationError
	var dse *model.DataSourceError
	switch {
	case errors.As(err, &cerr):
		return 2
	case errors.As(err, &dse):
		return 3
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// progressBar renders the mean progress of all scenarios of a batch.
type progressBar struct {
	mu      sync.Mutex
	bar     *pb.ProgressBar
	percent []int
}

func newProgressBar(scenarios int, out io.Writer) *progressBar {
	bar := pb.New(scenarios * simulator.ProgressDone)
	bar.Output = out
	bar.ShowCounters = false
	bar.ShowSpeed = false
	bar.Prefix(fmt.Sprintf("%d scenarios ", scenarios))
	bar.Start()
	return &progressBar{bar: bar, percent: make([]int, scenarios)}
}

func (p *progressBar) OnProgress(units, pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if units < 0 || units >= len(p.percent) || pct <= p.percent[units] {
		return
	}
	p.percent[units] = pct
	total := 0
	for _, v := range p.percent {
		total += v
	}
	p.bar.Set(total)
}

func (p *progressBar) OnResult(int, *model.Result) {}

func (p *progressBar) Finish() {
	p.bar.Finish()
}
