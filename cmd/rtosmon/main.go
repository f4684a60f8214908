// cmd/rtosmon/main.go
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/rtos-instrument/internal/config"
	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/hostos"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
	"github.com/tamzrod/rtos-instrument/internal/stats"
	"github.com/tamzrod/rtos-instrument/internal/trace"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: rtosmon <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("rtosmon stopped", zap.Error(err))
	}
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Kernel adapter
	// --------------------

	host, err := hostos.New(hostos.Config{
		Processes: cfg.Host.Processes,
		Cores:     cfg.Stats.Cores,
		Poll:      time.Duration(cfg.Host.PollMs) * time.Millisecond,
	}, logger.Named("host"))
	if err != nil {
		return err
	}

	// first poll seeds the task table before anything queries it
	if _, err := host.Poll(); err != nil {
		return err
	}

	// --------------------
	// Output
	// --------------------

	var out io.Writer = os.Stdout
	var hub *console.Hub
	if cfg.Output.Websocket != "" {
		hub = console.NewHub(logger.Named("ws"))
		out = io.MultiWriter(os.Stdout, hub)
	}
	color := *cfg.Output.Color
	con := console.New(out, color)

	// --------------------
	// Trace + stats
	// --------------------

	tr, closePins, err := trace.Build(cfg, trace.Deps{
		Clock: host,
		Names: host,
		Out:   con,
		Log:   logger.Named("trace"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := closePins(); err != nil {
			logger.Warn("gpio close failed", zap.Error(err))
		}
	}()

	if err := tr.Init(); err != nil {
		return err
	}
	rec := tr.Recorder()
	rec.SetSelf(rtos.Handle(os.Getpid()))

	col, err := stats.Build(cfg.Stats, host, logger.Named("stats"))
	if err != nil {
		return err
	}
	rep, opt, err := stats.BuildReporter(cfg.Stats, col, host, host, host, color)
	if err != nil {
		return err
	}

	if cfg.Trace.Enabled {
		tr.Start()
	}

	// --------------------
	// Pipelines
	// --------------------

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tr.Renderer().Run(ctx)
		return nil
	})

	g.Go(func() error {
		col.Run(ctx)
		return nil
	})

	g.Go(func() error {
		host.Run(ctx, func(changes []hostos.Change) {
			rec.Record(event.TaskIncrementTick, rec.Current(), uint32(host.Ticks()))
			for _, ch := range changes {
				rec.Record(ch.Code, ch.Task, ch.Arg)
				if ch.Code == event.TaskDelete {
					col.Release(ch.Task)
				}
			}
		})
		return nil
	})

	if cfg.Stats.ReportMs > 0 {
		period := time.Duration(cfg.Stats.ReportMs) * time.Millisecond
		timer := host.AddTimer("stats report", period, true)

		g.Go(func() error {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					rec.Record(event.TimerExpired, timer, 0)
					host.TimerFired(timer)

					rep.Report(ctx, con, opt)
					if _, err := rep.ReportMemory(con, opt.Columns); err != nil {
						logger.Warn("memory report failed", zap.Error(err))
					}
				}
			}
		})
	}

	if hub != nil {
		srv := &http.Server{Addr: cfg.Output.Websocket, Handler: hub}

		g.Go(func() error {
			hub.Run()
			return nil
		})
		g.Go(func() error {
			logger.Info("websocket listening", zap.String("addr", cfg.Output.Websocket))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("rtosmon started",
		zap.Int("cores", cfg.Stats.Cores),
		zap.Int("slots", len(cfg.Trace.Slots)),
		zap.Bool("trace", cfg.Trace.Enabled),
	)

	err = g.Wait()
	tr.Stop()
	tr.Renderer().Drain()
	return err
}
