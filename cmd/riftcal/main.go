package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"riftcal/internal/config"
	"riftcal/internal/ics"
	appLog "riftcal/internal/log"
	"riftcal/internal/metrics"
	"riftcal/internal/planner"
	"riftcal/internal/publish"
	"riftcal/internal/schedule"
	"riftcal/internal/store"
	"riftcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	logFormat  string
}

func main() {
	flags := parseFlags()
	appLog.SetOutput(os.Stderr, appLog.Format(flags.logFormat))

	if err := run(flags); err != nil {
		appLog.Error("riftcal exited with error", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("riftcal starting", "version", version)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"database_driver", conf.Database.Driver,
		"publish_cron", conf.Publish.Cron,
		"publish_dir", conf.Publish.Dir,
		"closure_count", len(conf.Closures),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, dialect, err := store.Open(ctx, conf.Database.Driver, conf.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.InitDB(ctx, db); err != nil {
		return err
	}
	sessions := store.NewSQLStore(db, dialect)

	loc, err := schedule.ResolveLocation(conf.Timezone)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	sources := make([]ics.Source, 0, len(conf.Closures))
	for _, c := range conf.Closures {
		sources = append(sources, ics.Source{ID: c.ID, Name: c.Name, URL: c.URL})
	}
	closures := ics.NewClosureCalendar(ics.NewFetcher(conf.ClosureCacheDir, nil), sources, loc)

	plan := planner.New(closures, schedule.ExpandConfig{
		DisplayLocation: loc,
		MaxOccurrences:  conf.MaxOccurrences,
	}, rec)
	pub := publish.New(sessions, plan, conf.Publish.Dir, conf.Publish.CalendarName, rec)

	if flags.once {
		return pub.RunOnce(ctx)
	}

	if conf.Publish.Cron != "" {
		if err := pub.Start(ctx, conf.Publish.Cron); err != nil {
			return err
		}
	}

	srv := web.NewServer(web.Deps{
		Config:   conf,
		Store:    sessions,
		Planner:  plan,
		Metrics:  rec,
		Gatherer: reg,
	})
	defer srv.Close()

	err = srv.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("riftcal exiting")
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./riftcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Publish ICS feeds once and exit")
	flag.StringVar(&cfg.logFormat, "log-format", "text", "Log format: text or json")

	flag.Parse()

	return cfg
}
