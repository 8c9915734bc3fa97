package dataset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microtune/microtune/pkg/grid"
)

// Canonical column names of the filtered table.
const (
	ColIteration = "iteration"
	ColPod       = "pod"

	ColCPULimit    = "cpu limit"
	ColMemoryLimit = "memory limit"
	ColReplicas    = "number of pods"

	TargetResponseTime = "average response time"
	TargetCPUUsage     = "cpu usage"
	TargetMemoryUsage  = "memory usage"
)

// Raw latency counters folded into the derived response time column.
const (
	colLatencySum   = "response_latency_ms_sum"
	colLatencyCount = "response_latency_ms_count"
)

// Targets lists the metrics models are trained against, in the order
// the advisor's decision matrix expects them.
var Targets = []string{TargetResponseTime, TargetCPUUsage, TargetMemoryUsage}

// Features lists the parameter columns used as model inputs.
var Features = []string{ColCPULimit, ColMemoryLimit, ColReplicas}

var (
	standardExportRe = regexp.MustCompile(`^metrics_(\d+)\.csv$`)
	customExportRe   = regexp.MustCompile(`^custom_metrics_(\d+)\.csv$`)
	variationRe      = regexp.MustCompile(`^(.+)_variation\.csv$`)
)

// Filterer turns the raw per-iteration exports of one run into a single
// filtered table with one row per (iteration, pod).
type Filterer struct {
	// DataDir is the experiment data root; raw exports live under
	// DataDir/raw/<runID> and filtered tables under DataDir/filtered.
	DataDir string
	// Namespace restricts standard metric rows to the benchmark namespace.
	Namespace string
	Logger    *slog.Logger
}

func (ft *Filterer) logger() *slog.Logger {
	if ft.Logger != nil {
		return ft.Logger
	}
	return slog.Default()
}

// FilteredPath returns where the filtered table of a run is written.
func (ft *Filterer) FilteredPath(runID string) string {
	return filepath.Join(ft.DataDir, "filtered", runID+"_filtered.csv")
}

// RawDir returns the raw export directory of a run.
func (ft *Filterer) RawDir(runID string) string {
	return filepath.Join(ft.DataDir, "raw", runID)
}

// FilterRun reshapes one run's raw exports and writes the filtered
// table. A missing raw directory is a warning, not an error: the
// function returns (nil, nil) so batch filtering can continue across
// runs with gaps.
func (ft *Filterer) FilterRun(runID string) (*Frame, error) {
	dir := ft.RawDir(runID)
	if _, err := os.Stat(dir); err != nil {
		ft.logger().Warn("no raw data for run", "run", runID, "dir", dir)
		return nil, nil
	}

	standard, err := ft.loadExports(dir, standardExportRe)
	if err != nil {
		return nil, err
	}
	custom, err := ft.loadExports(dir, customExportRe)
	if err != nil {
		return nil, err
	}
	if standard.Len() == 0 {
		ft.logger().Warn("run has no standard metric exports", "run", runID)
		return nil, nil
	}

	variations, err := ft.loadVariations(dir)
	if err != nil {
		return nil, err
	}

	// Restrict to the benchmark namespace and collapse generated pod
	// names (webui-5b7f9-xyz) to their deployment prefix so grid rows
	// join on a stable identifier.
	standard = standard.Filter(func(r Row) bool { return r["namespace"] == ft.Namespace })
	standard.Transform(ColPod, podPrefix)
	custom.Transform(ColPod, podPrefix)

	wide, err := standard.Pivot([]string{ColIteration, ColPod}, "__name__", "value")
	if err != nil {
		return nil, fmt.Errorf("dataset: pivot standard metrics: %w", err)
	}
	wideCustom, err := custom.Pivot([]string{ColIteration, ColPod}, "metric", "value")
	if err != nil {
		return nil, fmt.Errorf("dataset: pivot custom metrics: %w", err)
	}

	joinKeys := []string{ColIteration, ColPod}
	res := wide.Merge(wideCustom, joinKeys).Merge(variations, joinKeys)

	res.Derive(TargetResponseTime, func(r Row) (string, bool) {
		sum, okSum := r.Float(colLatencySum)
		count, okCount := r.Float(colLatencyCount)
		if !okSum || !okCount || count == 0 {
			return "", false
		}
		return formatFloat(sum / count), true
	})

	// The monitoring stack's own pods never belong in the dataset.
	res = res.Filter(func(r Row) bool { return r[ColPod] != "prometheus" })

	res = res.Drop(
		"kube_deployment_spec_replicas",
		"kube_pod_container_resource_limits_cpu_cores",
		"kube_pod_container_resource_limits_memory_bytes",
		"kube_pod_container_resource_requests_cpu_cores",
		"kube_pod_container_resource_requests_memory_bytes",
		colLatencySum,
		colLatencyCount,
	)
	res.Rename(map[string]string{
		"cpu":    TargetCPUUsage,
		"memory": TargetMemoryUsage,
		"container_cpu_cfs_throttled_seconds_total": "cpu throttled total",
	})
	res.SortBy(ColIteration, ColPod)

	filteredDir := filepath.Join(ft.DataDir, "filtered")
	if err := os.MkdirAll(filteredDir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create filtered dir: %w", err)
	}
	if err := res.WriteCSV(ft.FilteredPath(runID), ft.logger()); err != nil {
		return nil, err
	}
	return res, nil
}

// FilterAll runs FilterRun over every run directory whose timestamp ID
// falls between first and last (inclusive).
func (ft *Filterer) FilterAll(first, last string) error {
	runs, err := ft.RunDirs(first, last)
	if err != nil {
		return err
	}
	for i, run := range runs {
		ft.logger().Info("filtering run", "run", run, "progress", fmt.Sprintf("%d/%d", i+1, len(runs)))
		if _, err := ft.FilterRun(run); err != nil {
			return err
		}
	}
	return nil
}

// RunDirs lists raw run directories with IDs between first and last,
// compared as numeric folds of the YYYYMMDD-HHMMSS timestamp.
func (ft *Filterer) RunDirs(first, last string) ([]string, error) {
	base := filepath.Join(ft.DataDir, "raw")
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			ft.logger().Warn("raw data directory does not exist", "dir", base)
			return nil, nil
		}
		return nil, fmt.Errorf("dataset: list runs: %w", err)
	}

	lo, err := runStamp(first)
	if err != nil {
		return nil, err
	}
	hi, err := runStamp(last)
	if err != nil {
		return nil, err
	}

	var runs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		stamp, err := runStamp(e.Name())
		if err != nil {
			continue
		}
		if stamp >= lo && stamp <= hi {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// loadExports concatenates per-iteration export files matching re, in
// iteration order, tagging each with its iteration number.
func (ft *Filterer) loadExports(dir string, re *regexp.Regexp) (*Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read run dir: %w", err)
	}

	type export struct {
		iteration int
		name      string
	}
	var exports []export
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		exports = append(exports, export{iteration: n, name: e.Name()})
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].iteration < exports[j].iteration })

	var frames []*Frame
	for _, ex := range exports {
		fr, err := ReadCSV(filepath.Join(dir, ex.name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, fr.WithConstant(ColIteration, strconv.Itoa(ex.iteration)))
	}
	return Concat(frames...), nil
}

// loadVariations reads every <deployment>_variation.csv in the run
// directory into one frame keyed by (iteration, pod), with the grid
// columns already carrying their final human-readable names.
func (ft *Filterer) loadVariations(dir string) (*Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read run dir: %w", err)
	}

	out := New(ColIteration, ColPod, ColCPULimit, ColMemoryLimit, ColReplicas)
	for _, e := range entries {
		m := variationRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		points, err := grid.ReadTable(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		for i, p := range points {
			out.Append(Row{
				ColIteration:   strconv.Itoa(i + 1),
				ColPod:         m[1],
				ColCPULimit:    strconv.Itoa(p.CPUMillis),
				ColMemoryLimit: strconv.Itoa(p.MemoryMiB),
				ColReplicas:    strconv.Itoa(p.Replicas),
			})
		}
	}
	return out, nil
}

// podPrefix collapses a generated pod name to its deployment prefix.
func podPrefix(pod string) string {
	if i := strings.Index(pod, "-"); i > 0 {
		return pod[:i]
	}
	return pod
}

// runStamp folds a YYYYMMDD-HHMMSS run ID into a comparable integer.
func runStamp(id string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dataset: bad run id %q", id)
	}
	return n, nil
}

// LoadFeatures reads a filtered table and extracts the feature matrix
// and target vector for one target metric. Rows with a missing target
// or feature are skipped, so models only ever train on complete records.
func LoadFeatures(path, target string) (X [][]float64, y []float64, err error) {
	frame, err := ReadCSV(path)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range frame.Rows {
		tv, ok := r.Float(target)
		if !ok {
			continue
		}
		xs := make([]float64, len(Features))
		complete := true
		for i, feat := range Features {
			fv, ok := r.Float(feat)
			if !ok {
				complete = false
				break
			}
			xs[i] = fv
		}
		if !complete {
			continue
		}
		X = append(X, xs)
		y = append(y, tv)
	}
	if len(X) == 0 {
		return nil, nil, fmt.Errorf("dataset: no complete rows for target %q in %s", target, path)
	}
	return X, y, nil
}
