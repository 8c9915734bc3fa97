// Package sweep walks a parameter grid against a live deployment: each
// iteration applies one grid point, waits for the rollout to settle,
// drives load for a fixed window, and snapshots the metrics. Grid
// points are processed strictly one at a time since the deployment
// under test is the shared resource being measured.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/microtune/microtune/pkg/grid"
	"github.com/microtune/microtune/pkg/storage"
)

// DeploymentController applies grid points and reports rollout health.
type DeploymentController interface {
	Apply(ctx context.Context, deployment string, point grid.Point) error
	Healthy(ctx context.Context, deployment string) (bool, error)
}

// LoadDriver runs one fixed-duration load window against the target.
type LoadDriver interface {
	Drive(ctx context.Context, runID string, iteration int) error
}

// MetricsCollector snapshots the iteration's metric window.
type MetricsCollector interface {
	CollectIteration(ctx context.Context, runID string, iteration int) error
}

// Observer receives sweep progress for self-telemetry. A nil observer
// disables it.
type Observer interface {
	ObserveStage(stage string, seconds float64)
	SetProgress(iteration, total int)
	RecordError(stage string)
}

// Runner sweeps a grid over the scalable deployment.
type Runner struct {
	Deployment string
	DataDir    string

	Controller DeploymentController
	Load       LoadDriver
	Collector  MetricsCollector
	Registry   storage.Store
	Observer   Observer
	Logger     *slog.Logger

	// StabilizationDelay is the fixed wait after applying a point
	// before health polling starts.
	StabilizationDelay time.Duration

	// HealthRetries bounds the health poll; exhausting it fails the
	// run instead of waiting forever on a rollout that cannot finish.
	HealthRetries  int
	HealthInterval time.Duration
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) healthRetries() int {
	if r.HealthRetries > 0 {
		return r.HealthRetries
	}
	return 30
}

func (r *Runner) healthInterval() time.Duration {
	if r.HealthInterval > 0 {
		return r.HealthInterval
	}
	return 10 * time.Second
}

// NewRunID formats a run identifier from a start time.
func NewRunID(t time.Time) string {
	return t.Format("20060102-150405")
}

// Run executes the full sweep and returns the run ID. The grid table
// is written into the run directory first so every later stage can
// join measurements back to their parameter points.
func (r *Runner) Run(ctx context.Context, g *grid.Grid) (string, error) {
	runID := NewRunID(time.Now())
	rawDir := filepath.Join(r.DataDir, "raw", runID)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return "", fmt.Errorf("sweep: create run dir: %w", err)
	}

	if err := g.WriteTable(filepath.Join(rawDir, r.Deployment+"_variation.csv"), r.logger()); err != nil {
		return "", err
	}

	record := storage.RunRecord{
		ID:        runID,
		Workload:  r.Deployment,
		GridSize:  g.Len(),
		Status:    storage.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.putRecord(ctx, record); err != nil {
		return "", err
	}

	r.logger().Info("sweep started", "run", runID, "deployment", r.Deployment, "points", g.Len())

	for i, point := range g.Points {
		iteration := i + 1
		if err := r.runIteration(ctx, runID, iteration, point); err != nil {
			record.Status = storage.StatusFailed
			record.FinishedAt = time.Now().UTC()
			if perr := r.putRecord(context.WithoutCancel(ctx), record); perr != nil {
				r.logger().Error("failed run not recorded", "run", runID, "error", perr)
			}
			return runID, fmt.Errorf("sweep: iteration %d: %w", iteration, err)
		}
		record.Iterations = iteration
		if r.Observer != nil {
			r.Observer.SetProgress(iteration, g.Len())
		}
		if err := r.putRecord(ctx, record); err != nil {
			return runID, err
		}
	}

	record.Status = storage.StatusFinished
	record.FinishedAt = time.Now().UTC()
	if err := r.putRecord(ctx, record); err != nil {
		return runID, err
	}

	r.logger().Info("sweep finished", "run", runID, "iterations", record.Iterations)
	return runID, nil
}

func (r *Runner) runIteration(ctx context.Context, runID string, iteration int, point grid.Point) error {
	r.logger().Info("applying grid point",
		"run", runID,
		"iteration", iteration,
		"cpu", point.CPUMillis,
		"memory", point.MemoryMiB,
		"replicas", point.Replicas,
	)

	if err := r.stage("apply", func() error {
		return r.Controller.Apply(ctx, r.Deployment, point)
	}); err != nil {
		return err
	}

	if err := r.stage("stabilize", func() error {
		if err := sleepCtx(ctx, r.StabilizationDelay); err != nil {
			return err
		}
		return r.waitHealthy(ctx)
	}); err != nil {
		return err
	}

	if err := r.stage("load", func() error {
		return r.Load.Drive(ctx, runID, iteration)
	}); err != nil {
		return fmt.Errorf("load window: %w", err)
	}
	if err := r.stage("collect", func() error {
		return r.Collector.CollectIteration(ctx, runID, iteration)
	}); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	return nil
}

// stage runs one iteration phase, reporting its duration and failures
// to the observer.
func (r *Runner) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if r.Observer != nil {
		r.Observer.ObserveStage(name, time.Since(start).Seconds())
		if err != nil {
			r.Observer.RecordError(name)
		}
	}
	return err
}

// waitHealthy polls the deployment until it is healthy or the retry
// budget runs out.
func (r *Runner) waitHealthy(ctx context.Context) error {
	retries := r.healthRetries()
	for attempt := 1; attempt <= retries; attempt++ {
		healthy, err := r.Controller.Healthy(ctx, r.Deployment)
		if err != nil {
			return err
		}
		if healthy {
			return nil
		}

		r.logger().Info("deployment not ready", "deployment", r.Deployment, "attempt", attempt, "max", retries)
		if err := sleepCtx(ctx, r.healthInterval()); err != nil {
			return err
		}
	}
	return fmt.Errorf("deployment %s not healthy after %d attempts", r.Deployment, retries)
}

func (r *Runner) putRecord(ctx context.Context, record storage.RunRecord) error {
	if r.Registry == nil {
		return nil
	}
	if err := r.Registry.Put(ctx, record); err != nil {
		return fmt.Errorf("sweep: update run registry: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
