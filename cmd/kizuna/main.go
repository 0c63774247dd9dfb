package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/edwinsyarief/kizuna"
	"github.com/edwinsyarief/kizuna/internal/config"
	"github.com/edwinsyarief/kizuna/internal/stress"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to YAML configuration file",
	}
	debugFlag = &cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"d"},
		Usage:   "enable debug logging",
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "number of concurrent workers (overrides config)",
	}
	objectsFlag = &cli.IntFlag{
		Name:  "objects",
		Usage: "number of shared targets (overrides config)",
	}
	iterationsFlag = &cli.IntFlag{
		Name:  "iterations",
		Usage: "iterations per worker (overrides config)",
	}
	metricsFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve Prometheus metrics on this address while running",
	}
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kizuna",
		Usage: "ownership core diagnostics",
		Commands: []*cli.Command{
			{
				Name:   "stress",
				Usage:  "run concurrent reference traffic and verify no update is lost",
				Flags:  []cli.Flag{configFlag, debugFlag, workersFlag, objectsFlag, iterationsFlag, metricsFlag},
				Action: runStress,
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration",
				Flags:  []cli.Flag{configFlag},
				Action: printConfig,
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String(configFlag.Name)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func printConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return cli.Exit(err, 1)
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func runStress(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if c.IsSet(workersFlag.Name) {
		cfg.Stress.Workers = c.Int(workersFlag.Name)
	}
	if c.IsSet(objectsFlag.Name) {
		cfg.Stress.Objects = c.Int(objectsFlag.Name)
	}
	if c.IsSet(iterationsFlag.Name) {
		cfg.Stress.Iterations = c.Int(iterationsFlag.Name)
	}
	if c.IsSet(metricsFlag.Name) {
		cfg.Stress.MetricsAddress = c.String(metricsFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err, 1)
	}

	log, err := cfg.BuildLogger(c.Bool(debugFlag.Name))
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = log.Sync() }()
	kizuna.SetLogger(log)
	defer kizuna.SetLogger(nil)

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	if addr := cfg.Stress.MetricsAddress; addr != "" {
		stop, err := serveMetrics(addr, log)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer stop()
	}

	rep, err := stress.Run(ctx, stress.Options{
		Workers:       cfg.Stress.Workers,
		Objects:       cfg.Stress.Objects,
		Iterations:    cfg.Stress.Iterations,
		SceneEntities: cfg.Scene.InitialCapacity,
	}, log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "operations=%d weak_locks=%d scene_released=%d destroyed=%d weak_cleanups=%d duration=%s\n",
		rep.Operations, rep.WeakLocks, rep.SceneReleased, rep.Destroyed, rep.WeakCleanups, rep.Duration)
	return nil
}

// serveMetrics exposes the ownership metrics over HTTP and returns a stop
// function.
func serveMetrics(addr string, log *zap.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := kizuna.RegisterMetrics(reg); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("address", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
