package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/snapkeep/internal/cli/output"
	"github.com/yndnr/snapkeep/internal/infra/shutdown"
	"github.com/yndnr/snapkeep/internal/retention"
	"github.com/yndnr/snapkeep/internal/storage/catalog"
	"github.com/yndnr/snapkeep/internal/storage/snapshot"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

// SimulateSummary is the result of a simulate run.
type SimulateSummary struct {
	Key         string   `json:"key"`
	Keyhash     string   `json:"keyhash"`
	Run         uint32   `json:"run"`
	Steps       int      `json:"steps"`
	Accepted    int      `json:"accepted"`
	Written     int      `json:"written"`
	Culled      int      `json:"culled"`
	Retained    []uint64 `json:"retained"`
	NextSerial  uint64   `json:"next_serial"`
	Interrupted bool     `json:"interrupted"`
	Dir         string   `json:"dir" table:"wide"`
}

// SimulateCommand saves a synthetic workload through a store.
func SimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Save a synthetic series through the configured retention policy",
		Description: "Step i stores step=i and value=((i-h)/h)^2 with h half the step count,\n" +
			"then saves. The store clock advances by --step-interval per step.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "Stream key (JSON or plain string)"},
			&cli.IntFlag{Name: "steps", Usage: "Number of save attempts"},
			&cli.Float64Flag{Name: "rate", Usage: "Saves per second, 0 for unlimited"},
			&cli.IntFlag{Name: "burst", Usage: "Rate limiter burst"},
			&cli.DurationFlag{Name: "step-interval", Usage: "Simulated time between saves"},
			&cli.TimestampFlag{
				Name:   "start",
				Usage:  "Simulated time of the first save (default now)",
				Layout: time.RFC3339,
			},
			&cli.StringFlag{Name: "metrics-out", Usage: "Write Prometheus metrics to this file when done"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide the progress bar"},
		},
		Action: simulateAction,
	}
}

func simulateAction(c *cli.Context) error {
	cfg := appConfig(c)
	sim := cfg.Simulate
	if c.IsSet("key") {
		sim.Key = c.String("key")
	}
	if c.IsSet("steps") {
		sim.Steps = c.Int("steps")
	}
	if c.IsSet("rate") {
		sim.Rate = c.Float64("rate")
	}
	if c.IsSet("burst") {
		sim.Burst = c.Int("burst")
	}
	if c.IsSet("step-interval") {
		sim.StepInterval = c.Duration("step-interval")
	}
	if sim.Steps < 1 {
		return errors.New("steps must be positive")
	}

	clock := time.Now().UTC().Truncate(time.Second)
	if ts := c.Timestamp("start"); ts != nil {
		clock = ts.UTC()
	}
	now := func() time.Time { return clock }

	log := appLogger(c)
	opts := []snapshot.Option{snapshot.WithClock(now)}
	if cfg.Store.Journal {
		opts = append(opts, snapshot.WithJournal())
	}

	var metrics *metric.Metrics
	if c.IsSet("metrics-out") {
		metrics = metric.New()
		opts = append(opts, snapshot.WithMetrics(metrics))
	}

	handler := shutdown.NewHandler(sim.ShutdownTimeout)

	if cfg.Catalog.Enabled {
		cat, err := catalog.Open(cfg.CatalogConfig(), log)
		if err != nil {
			return err
		}
		handler.OnShutdown(func(context.Context) error { return cat.Close() })
		opts = append(opts, snapshot.WithCatalog(cat))
		if metrics != nil {
			cat.RegisterMetrics(metrics.Registry())
		}
	}

	store, err := openStore(c, parseKey(sim.Key), opts...)
	if err != nil {
		_ = handler.Shutdown()
		return err
	}
	handler.OnShutdown(func(context.Context) error { return store.Close() })

	ctx, stop := shutdown.WithSignals(commandContext(c))
	defer stop()

	limit := rate.Inf
	if sim.Rate > 0 {
		limit = rate.Limit(sim.Rate)
	}
	limiter := rate.NewLimiter(limit, max(sim.Burst, 1))

	var bar *output.ProgressBar
	if !c.Bool("quiet") {
		bar = output.NewProgressBar(c.App.ErrWriter, "simulate", sim.Steps)
	}

	summary := &SimulateSummary{
		Key:     sim.Key,
		Keyhash: store.Keyhash(),
		Dir:     store.Dir(),
	}
	half := float64(sim.Steps) / 2

	runErr := func() error {
		for i := 0; i < sim.Steps; i++ {
			if err := limiter.Wait(ctx); err != nil {
				summary.Interrupted = true
				return nil
			}

			if err := store.Set("step", i); err != nil {
				return err
			}
			if err := store.Set("value", math.Pow((float64(i)-half)/half, 2)); err != nil {
				return err
			}

			res, err := store.Save()
			if res == nil {
				return err
			}
			if err != nil {
				log.Warn("save completed with errors", "serial", res.Entry.Serial, "error", err)
			}

			summary.Steps++
			if res.Accepted {
				summary.Accepted++
			}
			if res.Written {
				summary.Written++
			}
			summary.Culled += len(res.Evicted)
			if bar != nil {
				bar.Increment(1, fmt.Sprintf("serial=%d kept=%d", res.Entry.Serial, len(store.History())))
			}

			clock = clock.Add(sim.StepInterval)
		}
		return nil
	}()
	if bar != nil {
		bar.Finish()
	}

	summary.Run = store.Runs()
	summary.NextSerial = store.Serial()
	summary.Retained = retention.Serials(store.History())

	if runErr == nil && metrics != nil {
		runErr = writeMetrics(c.String("metrics-out"), metrics)
	}
	if err := handler.Shutdown(); err != nil {
		log.Warn("shutdown hooks failed", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	if summary.Interrupted {
		log.Info("simulation interrupted", "steps", summary.Steps)
	}
	return printResult(c, summary)
}

func writeMetrics(path string, m *metric.Metrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := m.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
