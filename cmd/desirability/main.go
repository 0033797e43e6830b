// Command desirability runs one aggregation pass over a directory of
// participant preference documents and prints the resulting desirability
// lookup as JSON.
//
// Usage:
//
//	desirability -default default.json -preferences prefs/ -stakes stakes.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-desirability/infrastructure/aggregation"
	"github.com/ahrav/go-desirability/infrastructure/middleware"
	"github.com/ahrav/go-desirability/infrastructure/retrieval"
	"github.com/ahrav/go-desirability/internal/application"
	"github.com/ahrav/go-desirability/internal/domain"
	"github.com/ahrav/go-desirability/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "desirability: %v\n", err)
		}
		os.Exit(1)
	}
}

// output is the JSON document written to stdout.
type output struct {
	MaxAgeInHours int                       `json:"max_age_in_hours"`
	Fallback      bool                      `json:"fallback"`
	Participants  int                       `json:"participants"`
	Submitters    int                       `json:"submitters"`
	Skipped       []skipped                 `json:"skipped,omitempty"`
	Total         []domain.SourceRecord     `json:"total"`
	ScrapingPlan  *application.ScrapingPlan `json:"scraping_plan,omitempty"`
}

type skipped struct {
	Hotkey string `json:"hotkey"`
	Reason string `json:"reason"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("desirability", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath   = fs.String("config", "", "YAML configuration file (optional)")
		defaultPath  = fs.String("default", "", "Network default preference document (JSON)")
		prefsDir     = fs.String("preferences", "", "Directory of <hotkey>.json participant documents")
		stakesPath   = fs.String("stakes", "", "YAML or JSON list of {hotkey, stake} participants")
		logLevel     = fs.String("log-level", "info", "Log level: debug, info, warn or error")
		scrapingPlan = fs.Bool("scraping-plan", false, "Include the scraping plan derived from the lookup")
		metricsPath  = fs.String("metrics", "", "Write Prometheus metrics in text format to this file")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *defaultPath == "" || *prefsDir == "" || *stakesPath == "" {
		fs.Usage()
		return errors.New("-default, -preferences and -stakes are required")
	}

	logger := logging.NewWithWriter(stderr, *logLevel)

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defaultData, err := os.ReadFile(*defaultPath)
	if err != nil {
		return fmt.Errorf("read default document: %w", err)
	}
	defaults, err := application.ParseDocument(application.DefaultParticipant, defaultData)
	if err != nil {
		return fmt.Errorf("default document: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(registry)

	pipeline, err := newPipeline(cfg, defaults, *prefsDir, *stakesPath, logger, metrics)
	if err != nil {
		return err
	}

	lookup, report, err := pipeline.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	out := output{
		MaxAgeInHours: lookup.MaxAgeInHours(),
		Fallback:      report.Fallback,
		Participants:  report.Participants,
		Submitters:    report.Submitters,
		Total:         lookup.Records(),
	}
	for _, s := range report.Skipped {
		out.Skipped = append(out.Skipped, skipped{Hotkey: s.Hotkey, Reason: s.Reason})
	}
	if *scrapingPlan {
		plan := application.BuildScrapingPlan(lookup, cfg.Scraping)
		out.ScrapingPlan = &plan
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if *metricsPath != "" {
		if err := prometheus.WriteToTextfile(*metricsPath, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func newPipeline(
	cfg application.Config,
	defaults domain.PreferenceDocument,
	prefsDir, stakesPath string,
	logger *slog.Logger,
	metrics *middleware.PrometheusMetrics,
) (*application.Pipeline, error) {
	agg, err := aggregation.NewWeightedAggregator(cfg.Aggregation)
	if err != nil {
		return nil, err
	}
	builder, err := aggregation.NewLookupBuilder(cfg.Lookup)
	if err != nil {
		return nil, err
	}

	store := retrieval.Chain(retrieval.NewDirStore(prefsDir), cfg.Retrieval.Middleware(metrics)...)

	return application.NewPipeline(application.PipelineOptions{
		Defaults:         defaults,
		Store:            store,
		Stakes:           retrieval.NewFileStakeResolver(stakesPath),
		Aggregator:       agg,
		Builder:          builder,
		RetrievalTimeout: cfg.Retrieval.RetrievalTimeout(),
		MaxConcurrency:   cfg.Retrieval.MaxConcurrency,
		Logger:           logger,
		Observer:         middleware.NewOTelPassObserver(metrics),
	})
}
