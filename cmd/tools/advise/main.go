// Package main implements the advise CLI for computing an advisory locally.
//
// The weather inputs come from a JSON file, the simulated source or the live
// OpenWeatherMap API, and the full AdvisoryResult is printed as indented
// JSON. It is a debugging aid; nothing is published or recorded.
//
// Usage:
//
//	go run ./cmd/tools/advise --source=simulated --date=2026-04-15
//	go run ./cmd/tools/advise --source=file --input=testdata/wet-week.json
//	go run ./cmd/tools/advise --source=openweather --lat=-0.5833 --lon=35.1833 --soil
//
// OWM_API_KEY is read from the environment (or a .env file) for the
// openweather source.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/app"
	"farmadvisory/internal/config"
	"farmadvisory/internal/forecasts"
	"farmadvisory/internal/types"
)

// input is the --input file format.
type input struct {
	Current  types.WeatherSample  `json:"current"`
	History  types.ForecastWindow `json:"history"`
	Forecast types.ForecastWindow `json:"forecast"`
	Month    int                  `json:"month"`
}

// output is printed to stdout.
type output struct {
	Source   string                `json:"source"`
	Location *types.Location       `json:"location,omitempty"`
	Month    int                   `json:"month"`
	Warnings []string              `json:"warnings,omitempty"`
	Advisory *types.AdvisoryResult `json:"advisory"`
}

type options struct {
	source        string
	inputPath     string
	lat, lon      float64
	month         int
	date          string
	terrainFactor float64
	soil          bool
	recentDays    int
	upcomingDays  int
	historyDays   int
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("advise", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.source, "source", "simulated", "Weather input: simulated, openweather or file")
	fs.StringVar(&opts.inputPath, "input", "", "JSON file with current, history and forecast (source=file)")
	fs.Float64Var(&opts.lat, "lat", -0.3670, "Latitude")
	fs.Float64Var(&opts.lon, "lon", 35.2831, "Longitude")
	fs.IntVar(&opts.month, "month", 0, "Calendar month 1-12 (default: from --date, the input file or today)")
	fs.StringVar(&opts.date, "date", "", "Reference date YYYY-MM-DD for the simulated source (default: today)")
	fs.Float64Var(&opts.terrainFactor, "terrain-factor", advisory.DefaultTerrainFactor, "Terrain factor (0, 5]")
	fs.BoolVar(&opts.soil, "soil", false, "Apply the Kericho volcanic soil profile")
	fs.IntVar(&opts.recentDays, "recent-days", advisory.DefaultRecentDays, "History days summed for the flood score")
	fs.IntVar(&opts.upcomingDays, "upcoming-days", advisory.DefaultUpcomingDays, "Forecast days summed for the flood score")
	fs.IntVar(&opts.historyDays, "history-days", 14, "History days fetched from a weather source")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: advise [flags]\n\n")
		fmt.Fprintf(stderr, "Compute a farm advisory and print it as JSON.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	out, err := advise(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "error: writing output: %v\n", err)
		return 1
	}
	return 0
}

func advise(ctx context.Context, opts options) (*output, error) {
	if opts.terrainFactor <= 0 || opts.terrainFactor > 5 {
		return nil, fmt.Errorf("--terrain-factor must be in (0, 5], got %g", opts.terrainFactor)
	}
	if opts.month < 0 || opts.month > 12 {
		return nil, fmt.Errorf("--month must be between 1 and 12, got %d", opts.month)
	}

	now := time.Now().UTC()
	if opts.date != "" {
		d, err := time.Parse(time.DateOnly, opts.date)
		if err != nil {
			return nil, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		now = d.Add(12 * time.Hour)
	}
	clock := types.FixedClock{T: now}

	site := advisory.Site{TerrainFactor: opts.terrainFactor}
	if opts.soil {
		site.Soil = advisory.KerichoSoilProfile()
	}
	engine := advisory.NewEngine(advisory.Config{RecentDays: opts.recentDays, UpcomingDays: opts.upcomingDays})

	out := &output{Source: opts.source}
	var in input

	switch opts.source {
	case "file":
		if opts.inputPath == "" {
			return nil, fmt.Errorf("--input is required with --source=file")
		}
		data, err := os.ReadFile(opts.inputPath)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("parsing input: %w", err)
		}
	case config.ProviderSimulated, config.ProviderOpenWeather:
		source, err := newSource(opts.source, clock)
		if err != nil {
			return nil, err
		}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := forecasts.NewService(source, opts.historyDays, clock, logger)
		loc := types.Location{Lat: opts.lat, Lon: opts.lon}
		snap, err := svc.Snapshot(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("fetching weather: %w", err)
		}
		in = input{Current: snap.Current, History: snap.History, Forecast: snap.Forecast}
		out.Source = snap.Source
		out.Location = &loc
		out.Warnings = snap.Warnings
	default:
		return nil, fmt.Errorf("unknown --source %q", opts.source)
	}

	month := opts.month
	if month == 0 {
		month = in.Month
	}
	if month == 0 {
		month = int(now.Month())
	}
	out.Month = month

	result, err := engine.BuildAdvisoryForSite(site, in.Current, in.History, in.Forecast, month)
	if err != nil {
		return nil, err
	}
	out.Advisory = result
	return out, nil
}

func newSource(name string, clock types.Clock) (forecasts.Source, error) {
	wc := config.WeatherConfig{
		Provider:  name,
		BaseURL:   forecasts.DefaultOpenWeatherBaseURL,
		Timeout:   10 * time.Second,
		UserAgent: "FarmAdvisory-advise/1.0",
	}
	if name == config.ProviderOpenWeather {
		key := os.Getenv("OWM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OWM_API_KEY is required with --source=openweather")
		}
		wc.APIKey = types.SecretString(key)
		if base := os.Getenv("OWM_BASE_URL"); base != "" {
			wc.BaseURL = base
		}
	}
	return app.NewWeatherSource(wc, clock), nil
}
