package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/podscope/podscope/pkg/config"
	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
	"github.com/podscope/podscope/pkg/generation"
	"github.com/podscope/podscope/pkg/repository"
	"github.com/podscope/podscope/pkg/scheduler"
	"github.com/podscope/podscope/pkg/service"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	// load .env if present, flags and config may reference its values
	_ = godotenv.Load()

	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	log.Printf("[INFO] starting podscope version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] podscope failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires the application together and blocks until the context is done
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init repositories: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			log.Printf("[WARN] failed to close database: %v", err)
		}
	}()

	svc := service.NewSchedulerService(repos)

	registry := fetcher.NewRegistry(map[domain.SourceType]fetcher.Fetcher{
		domain.SourceTypeFeed:     fetcher.NewFeedFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		domain.SourceTypePage:     fetcher.NewPageFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		domain.SourceTypeTimeline: fetcher.NewTimelineFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
	})

	pipeline := generation.NewPipeline(cfg.LLM, svc)

	sched := scheduler.NewScheduler(scheduler.Params{
		Sources:         svc,
		Items:           svc,
		Podcasts:        svc,
		Episodes:        svc,
		Fetchers:        registry,
		Pipeline:        pipeline,
		PollTick:        cfg.Poll.Tick,
		GenerationTick:  cfg.Generation.Tick,
		StalenessWindow: cfg.Generation.StalenessWindow,
		MaxFailures:     cfg.Poll.MaxFailures,
		MaxBackoffHours: cfg.Poll.MaxBackoffHours,
		Delays:          delayConfig(cfg),
	})

	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
	return nil
}

// delayConfig converts config delay maps to the scheduler's representation
func delayConfig(cfg *config.Config) scheduler.DelayConfig {
	types := make(map[domain.SourceType]time.Duration, len(cfg.Poll.TypeDelays))
	for t, d := range cfg.Poll.TypeDelays {
		types[domain.SourceType(t)] = d
	}
	return scheduler.DelayConfig{Hosts: cfg.Poll.HostDelays, Types: types}
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stdout), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
