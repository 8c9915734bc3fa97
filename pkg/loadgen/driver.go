// Package loadgen drives synthetic browse traffic against the
// benchmark storefront while an iteration's metrics are recorded. It
// simulates a population of virtual users spawned at a fixed rate, each
// looping over a browse plan until the run timer fires, and exports
// locust-style per-route statistics.
package loadgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microtune/microtune/pkg/dataset"
)

// Config defines one load run.
type Config struct {
	// BaseURL is the storefront entry point, e.g. http://host:30080/tools.descartes.teastore.webui
	BaseURL string
	// Users is the virtual user population.
	Users int
	// SpawnRate is how many users start per second.
	SpawnRate float64
	// Duration is the run length once spawning starts.
	Duration time.Duration
	// Timeout bounds a single request (defaults to 30s).
	Timeout time.Duration
}

// RouteStats aggregates the outcomes of one route.
type RouteStats struct {
	Requests     int64
	Failures     int64
	LatencySumMs float64
	MinMs        float64
	MaxMs        float64
}

// Summary is the outcome of a whole load run.
type Summary struct {
	TotalRequests  int64
	Failures       int64
	RequestsPerSec float64
	Elapsed        time.Duration
}

// Driver runs virtual users against the storefront.
type Driver struct {
	Config Config
	// Plan is the set of relative routes each user cycles through.
	// Without a plan, users hit the base URL only.
	Plan   []string
	Client *http.Client
	Logger *slog.Logger

	// DataDir, when set, makes Drive export per-iteration stats files
	// into the run's raw directory.
	DataDir string

	totalRequests atomic.Int64
	failures      atomic.Int64

	mu    sync.Mutex
	stats map[string]*RouteStats
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Driver) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	timeout := d.Config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Run spawns the user population and blocks until the run duration
// elapses or ctx is canceled. The returned summary covers all users.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	if d.Config.BaseURL == "" {
		return nil, fmt.Errorf("loadgen: BaseURL is required")
	}
	if d.Config.Users <= 0 {
		return nil, fmt.Errorf("loadgen: need at least one user, got %d", d.Config.Users)
	}
	spawnRate := d.Config.SpawnRate
	if spawnRate <= 0 {
		spawnRate = float64(d.Config.Users)
	}

	d.totalRequests.Store(0)
	d.failures.Store(0)
	d.mu.Lock()
	d.stats = make(map[string]*RouteStats)
	d.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, d.Config.Duration)
	defer cancel()

	client := d.client()
	spawnInterval := time.Duration(float64(time.Second) / spawnRate)
	start := time.Now()

	var wg sync.WaitGroup
spawn:
	for i := 0; i < d.Config.Users; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			d.runUser(runCtx, client, userID)
		}(i)

		select {
		case <-runCtx.Done():
			// Timer fired during ramp-up; no more spawns.
			break spawn
		case <-time.After(spawnInterval):
		}
	}
	wg.Wait()

	elapsed := time.Since(start)
	summary := &Summary{
		TotalRequests: d.totalRequests.Load(),
		Failures:      d.failures.Load(),
		Elapsed:       elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		summary.RequestsPerSec = float64(summary.TotalRequests) / secs
	}

	d.logger().Info("load run finished",
		"users", d.Config.Users,
		"requests", summary.TotalRequests,
		"failures", summary.Failures,
		"rps", summary.RequestsPerSec,
	)
	return summary, nil
}

// runUser cycles one virtual user over the browse plan until the run
// context expires.
func (d *Driver) runUser(ctx context.Context, client *http.Client, userID int) {
	rng := rand.New(rand.NewSource(int64(userID)))
	plan := d.Plan
	if len(plan) == 0 {
		plan = []string{""}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		route := plan[rng.Intn(len(plan))]
		d.hit(ctx, client, route)
	}
}

func (d *Driver) hit(ctx context.Context, client *http.Client, route string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Config.BaseURL+route, nil)
	if err != nil {
		d.record(route, 0, true)
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return // run timer fired mid-request, not a failure
		}
		d.record(route, elapsed, true)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	d.record(route, elapsed, resp.StatusCode >= 400)
}

func (d *Driver) record(route string, elapsed time.Duration, failed bool) {
	d.totalRequests.Add(1)
	if failed {
		d.failures.Add(1)
	}
	ms := float64(elapsed) / float64(time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stats == nil {
		d.stats = make(map[string]*RouteStats)
	}
	rs, ok := d.stats[route]
	if !ok {
		rs = &RouteStats{MinMs: ms}
		d.stats[route] = rs
	}
	rs.Requests++
	if failed {
		rs.Failures++
	}
	rs.LatencySumMs += ms
	if ms < rs.MinMs {
		rs.MinMs = ms
	}
	if ms > rs.MaxMs {
		rs.MaxMs = ms
	}
}

// Stats returns a copy of the per-route statistics.
func (d *Driver) Stats() map[string]RouteStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]RouteStats, len(d.stats))
	for route, rs := range d.stats {
		out[route] = *rs
	}
	return out
}

// Drive runs one load window for a sweep iteration and, when DataDir
// is set, exports the per-route stats next to the iteration's metric
// exports.
func (d *Driver) Drive(ctx context.Context, runID string, iteration int) error {
	if _, err := d.Run(ctx); err != nil {
		return err
	}
	if d.DataDir == "" {
		return nil
	}
	name := fmt.Sprintf("load_%d_stats.csv", iteration)
	return d.WriteStats(filepath.Join(d.DataDir, "raw", runID, name))
}

// WriteStats exports the per-route statistics plus an aggregated row,
// in the shape of a locust stats file. An existing file is left alone.
func (d *Driver) WriteStats(path string) error {
	stats := d.Stats()

	f := dataset.New("name", "request_count", "failure_count", "latency_sum_ms", "min_ms", "max_ms", "average_ms")
	var agg RouteStats
	first := true
	for _, route := range sortedRoutes(stats) {
		rs := stats[route]
		f.Append(statsRow(route, rs))

		agg.Requests += rs.Requests
		agg.Failures += rs.Failures
		agg.LatencySumMs += rs.LatencySumMs
		if first || rs.MinMs < agg.MinMs {
			agg.MinMs = rs.MinMs
		}
		if rs.MaxMs > agg.MaxMs {
			agg.MaxMs = rs.MaxMs
		}
		first = false
	}
	f.Append(statsRow("Aggregated", agg))

	return f.WriteCSV(path, d.logger())
}

func statsRow(name string, rs RouteStats) dataset.Row {
	avg := 0.0
	if rs.Requests > 0 {
		avg = rs.LatencySumMs / float64(rs.Requests)
	}
	return dataset.Row{
		"name":           name,
		"request_count":  strconv.FormatInt(rs.Requests, 10),
		"failure_count":  strconv.FormatInt(rs.Failures, 10),
		"latency_sum_ms": strconv.FormatFloat(rs.LatencySumMs, 'f', 3, 64),
		"min_ms":         strconv.FormatFloat(rs.MinMs, 'f', 3, 64),
		"max_ms":         strconv.FormatFloat(rs.MaxMs, 'f', 3, 64),
		"average_ms":     strconv.FormatFloat(avg, 'f', 3, 64),
	}
}

func sortedRoutes(stats map[string]RouteStats) []string {
	routes := make([]string, 0, len(stats))
	for route := range stats {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}
