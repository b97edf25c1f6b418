// Package cli implements the dpd command: flag parsing, wiring of the
// tracking service and rendering of its result.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
	"github.com/owen-raum/dpd-tracking/internal/core/ports"
	"github.com/owen-raum/dpd-tracking/internal/core/service"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/carrier"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/config"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/db/redis"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/metrics"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/registry"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/tracing"
	"github.com/owen-raum/dpd-tracking/pkg/logger"
)

const serviceName = "dpd-tracking"

// Runner executes one CLI invocation.
type Runner struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Version string
	// LoadConfig supplies environment configuration; flags override it.
	LoadConfig func(ctx context.Context) (*config.Config, error)
}

type flags struct {
	zip         string
	country     string
	json        bool
	retries     int
	timeout     time.Duration
	countries   string
	logLevel    string
	metricsFile string
}

// Run parses args, tracks the parcel and returns the process exit code.
func (r Runner) Run(ctx context.Context, args []string) int {
	cmd := r.command()
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = io.WriteString(r.Stderr, FormatError(err)+"\n")
		return ExitCode(err)
	}
	return ExitOK
}

func (r Runner) command() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "dpd <tracking-number>",
		Short:         "DPD Tracking CLI Tool",
		Long:          "Track a DPD parcel by tracking number, optionally verifying the recipient postal code.",
		Args:          cobra.ExactArgs(1),
		Version:       r.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.track(cmd, args[0], f)
		},
	}
	cmd.SetOut(r.Stdout)
	cmd.SetErr(r.Stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")

	fs := cmd.Flags()
	fs.StringVarP(&f.zip, "zip", "z", "", "Postal code for verification")
	fs.StringVarP(&f.country, "country", "c", domain.DefaultCountry, "Country code (e.g. AT, DE)")
	fs.BoolVarP(&f.json, "json", "j", false, "Output as JSON")
	fs.IntVar(&f.retries, "retries", service.DefaultMaxAttempts, "Max retry attempts")
	fs.DurationVar(&f.timeout, "timeout", service.DefaultAttemptTimeout, "Timeout per attempt")
	fs.StringVar(&f.countries, "countries", "", "Country endpoint file (YAML or JSON)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics to this Prometheus textfile")

	return cmd
}

func (r Runner) track(cmd *cobra.Command, trackingNumber string, f flags) error {
	ctx := cmd.Context()

	cfg, err := r.LoadConfig(ctx)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, f)

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		NoColor: cfg.LogNoColor,
		Output:  r.Stderr,
	})

	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: r.Version,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRatio:  cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Debug().Err(err).Msg("tracing shutdown")
			}
		}()
	}

	reg, err := registry.Load(cfg.CountriesFile)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	if cfg.MetricsFile != "" {
		defer func() {
			if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("metrics not written")
			}
		}()
	}

	cache, closeCache := r.openCache(ctx, cfg.Redis, log)
	defer closeCache()

	tracker := service.NewTrackingService(
		reg,
		carrier.NewClient(cfg.UserAgent),
		carrier.DefaultAdapters(log),
		cache,
		recorder,
		service.Options{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			BaseDelay:      cfg.Retry.BaseDelay,
			AttemptTimeout: cfg.Retry.Timeout,
			CacheTTL:       cfg.Redis.CacheTTL,
		},
		log,
	)

	res, err := tracker.Track(ctx, domain.NewTrackingQuery(trackingNumber, f.zip, f.country))
	if err != nil {
		return err
	}

	if f.json {
		return WriteJSON(r.Stdout, res)
	}
	return WriteHuman(r.Stdout, res)
}

// applyFlags lets explicitly set flags override environment configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	fs := cmd.Flags()
	if fs.Changed("retries") {
		cfg.Retry.MaxAttempts = f.retries
	}
	if fs.Changed("timeout") {
		cfg.Retry.Timeout = f.timeout
	}
	if fs.Changed("countries") {
		cfg.CountriesFile = f.countries
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

// openCache connects the optional response cache. An unreachable Redis only
// costs the cache, never the lookup.
func (r Runner) openCache(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (ports.ResponseCache, func()) {
	if cfg.Addr == "" || cfg.CacheTTL <= 0 {
		return nil, func() {}
	}
	client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err != nil {
		log.Warn().Err(err).Msg("response cache unavailable")
		return nil, func() {}
	}
	return redis.NewResponseCache(client), func() { _ = client.Close() }
}
