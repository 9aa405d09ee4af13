package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"menucal/internal/asset"
	"menucal/internal/capture"
	"menucal/internal/config"
	appLog "menucal/internal/log"
	"menucal/internal/mailer"
	"menucal/internal/menu"
	"menucal/internal/model"
	"menucal/internal/notify"
	"menucal/internal/store"
	"menucal/internal/web"
	"menucal/internal/worker"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
	preview    string
	out        string
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("menucal starting", "version", version)

	lookupEnv, err := config.EnvLookup(flags.envPath)
	if err != nil {
		appLog.Warn("failed to read env file", "path", flags.envPath, "err", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(lookupEnv)
	if flags.listen != "" {
		conf.Listen = flags.listen
		conf.Normalize()
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", conf.Timezone)
		loc = time.UTC
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"public_url", conf.PublicURL,
		"timezone", loc.String(),
		"database", conf.DatabasePath,
		"data_dir", conf.DataDir,
		"check_cron", conf.CheckCron,
		"header_source", conf.HeaderSource,
		"header_proportion", conf.HeaderProportion,
		"smtp", conf.SMTP.Enabled(),
		"once", flags.once,
		"preview", flags.preview,
	)

	if err := run(conf, loc, flags); err != nil {
		appLog.Error("menucal exited with error", err)
		os.Exit(1)
	}
	appLog.Info("menucal exiting")
}

func run(conf *config.Config, loc *time.Location, flags flagConfig) error {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := os.MkdirAll(filepath.Dir(conf.DatabasePath), 0o700); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	st, err := store.Open(conf.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	fetcher := asset.NewFetcher(filepath.Join(conf.DataDir, "cache"), &http.Client{Timeout: 30 * time.Second})
	blobs := asset.NewBlobs(conf.DataDir, fetcher)

	var (
		sender menu.Sender
		text   notify.TextSender
	)
	if conf.SMTP.Enabled() {
		m := mailer.NewSMTP(conf.SMTP)
		sender, text = m, m
	} else {
		appLog.Warn("smtp not configured; menus will not be mailed")
	}
	notifier := notify.FromConfig(conf, st, text)

	var header menu.HeaderSource = &menu.StoredHeader{Templates: st, Blobs: blobs}
	if conf.HeaderSource == config.HeaderSourceRender {
		header = &capture.HeaderRenderer{
			BaseURL: conf.PublicURL,
			Width:   conf.Capture.Width,
			Height:  conf.Capture.Height,
			Timeout: time.Duration(conf.Capture.TimeoutSec) * time.Second,
		}
	}

	svc := menu.New(menu.Options{
		Store:      st,
		Blobs:      blobs,
		Header:     header,
		Mail:       sender,
		Notifier:   notifier,
		Location:   loc,
		Proportion: conf.HeaderProportion,
	})

	wk, err := worker.New(conf.CheckCron, loc, svc)
	if err != nil {
		return err
	}

	deps := web.Deps{
		Config:    conf,
		Store:     st,
		Blobs:     blobs,
		Menu:      svc,
		Mailer:    text,
		Scheduler: wk,
		Notifier:  notifier,
	}
	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The server runs in every mode: render-mode headers are captured from
	// its /header page.
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	defer shutdownServer(srv)

	switch {
	case flags.preview != "":
		return writePreview(ctx, svc, flags.preview, flags.out)
	case flags.once:
		_, err := wk.RunOnce(ctx)
		return err
	}

	wk.Start(ctx)
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancel()
			stopWorker(wk)
			return fmt.Errorf("http server: %w", err)
		}
	}
	stopWorker(wk)
	return nil
}

func stopWorker(wk *worker.Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := wk.Stop(ctx); err != nil {
		appLog.Error("worker did not stop in time", err)
	}
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("http server shutdown failed", err)
	}
}

// writePreview handles -preview season:week[:YYYY-MM-DD].
func writePreview(ctx context.Context, svc *menu.Service, spec, out string) error {
	season, week, start, err := parsePreviewSpec(spec, svc.Today())
	if err != nil {
		return err
	}
	ref, png, err := svc.Preview(ctx, season, week, start)
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(out, png, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	appLog.Info("preview written", "path", out, "artifact", ref, "bytes", len(png))
	return nil
}

func parsePreviewSpec(spec string, today time.Time) (model.Season, int, time.Time, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", 0, time.Time{}, fmt.Errorf("preview %q: want season:week[:YYYY-MM-DD]", spec)
	}
	season, err := model.ParseSeason(parts[0])
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("preview %q: %w", spec, err)
	}
	week, err := strconv.Atoi(parts[1])
	if err != nil || week < 1 || week > 4 {
		return "", 0, time.Time{}, fmt.Errorf("preview %q: week must be 1-4", spec)
	}
	start := today
	if len(parts) == 3 {
		if start, err = model.ParseDate(parts[2]); err != nil {
			return "", 0, time.Time{}, fmt.Errorf("preview %q: %w", spec, err)
		}
	}
	return season, week, start, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Optional dotenv file with MENUCAL_* secrets")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one check-and-send cycle and exit")
	flag.StringVar(&cfg.preview, "preview", "", "Write a merged preview for season:week[:YYYY-MM-DD] and exit")
	flag.StringVar(&cfg.out, "out", "preview.png", "Output path for -preview")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
