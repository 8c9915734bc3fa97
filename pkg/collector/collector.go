package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/microtune/microtune/pkg/dataset"
)

// StandardMetrics are the exporter metrics fetched by name for every
// iteration. The resource metrics join the parameter grid downstream;
// the latency counters feed the average response time.
var StandardMetrics = []string{
	"kube_pod_container_resource_requests_memory_bytes",
	"kube_pod_container_resource_limits_memory_bytes",
	"kube_pod_container_resource_limits_cpu_cores",
	"kube_pod_container_resource_requests_cpu_cores",
	"container_cpu_cfs_throttled_seconds_total",
	"kube_deployment_spec_replicas",
	"response_latency_ms_sum",
	"response_latency_ms_count",
}

// CustomMetrics are the derived utilization ratios exported through
// hand-written PromQL expressions.
var CustomMetrics = []string{"cpu", "memory"}

// Collector snapshots the benchmark's metric state once per iteration,
// writing one standard and one custom export file per snapshot.
type Collector struct {
	Client    *Client
	Namespace string
	DataDir   string

	// Lookback is how far before now each snapshot window starts.
	Lookback time.Duration
	// Step is the range query resolution (defaults to 10s).
	Step time.Duration

	Logger *slog.Logger
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Collector) step() time.Duration {
	if c.Step > 0 {
		return c.Step
	}
	return 10 * time.Second
}

// CustomExpr returns the PromQL expression behind a custom metric name.
// Unknown names fail immediately with a descriptive error instead of
// issuing an empty query.
func (c *Collector) CustomExpr(name string) (string, error) {
	switch name {
	case "cpu":
		return fmt.Sprintf(
			`(sum(rate(container_cpu_usage_seconds_total{namespace=%[1]q, container!=""}[5m])) by (pod, container) / sum(container_spec_cpu_quota{namespace=%[1]q, container!=""}/container_spec_cpu_period{namespace=%[1]q, container!=""}) by (pod, container)) * 100`,
			c.Namespace), nil
	case "memory":
		return fmt.Sprintf(
			`round(max by (pod)(max_over_time(container_memory_usage_bytes{namespace=%q,pod=~".*"}[5m])) / on (pod) (max by (pod) (kube_pod_container_resource_limits)) * 100, 0.01)`,
			c.Namespace), nil
	default:
		return "", fmt.Errorf("collector: custom metric accepts cpu or memory, got %q", name)
	}
}

// CollectIteration exports the snapshot window of one grid iteration
// into the run's raw directory.
func (c *Collector) CollectIteration(ctx context.Context, runID string, iteration int) error {
	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-c.Lookback)

	dir := filepath.Join(c.DataDir, "raw", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("collector: create run dir: %w", err)
	}

	standard := dataset.New("ts", "__name__", "namespace", "pod", "value")
	for _, name := range StandardMetrics {
		series, err := c.Client.RangeQuery(ctx, name, start, end, c.step())
		if err != nil {
			return fmt.Errorf("collector: fetch %s: %w", name, err)
		}
		appendSeries(standard, series, "__name__", name)
	}

	custom := dataset.New("ts", "metric", "namespace", "pod", "value")
	for _, name := range CustomMetrics {
		expr, err := c.CustomExpr(name)
		if err != nil {
			return err
		}
		series, err := c.Client.RangeQuery(ctx, expr, start, end, c.step())
		if err != nil {
			return fmt.Errorf("collector: fetch custom %s: %w", name, err)
		}
		appendSeries(custom, series, "metric", name)
	}

	if err := standard.WriteCSV(filepath.Join(dir, fmt.Sprintf("metrics_%d.csv", iteration)), c.logger()); err != nil {
		return err
	}
	if err := custom.WriteCSV(filepath.Join(dir, fmt.Sprintf("custom_metrics_%d.csv", iteration)), c.logger()); err != nil {
		return err
	}

	c.logger().Info("iteration metrics exported",
		"run", runID,
		"iteration", iteration,
		"standard_rows", standard.Len(),
		"custom_rows", custom.Len(),
	)
	return nil
}

// appendSeries flattens labeled series into export rows. The metric
// identity column (__name__ or metric) is forced to name so expression
// results, which carry no __name__ label, stay addressable.
func appendSeries(f *dataset.Frame, series []Series, nameCol, name string) {
	for _, s := range series {
		for _, sample := range s.Samples {
			f.Append(dataset.Row{
				"ts":        sample.Ts.Format(time.RFC3339),
				nameCol:     name,
				"namespace": s.Metric["namespace"],
				"pod":       s.Metric["pod"],
				"value":     strconv.FormatFloat(sample.Value, 'g', -1, 64),
			})
		}
	}
}
