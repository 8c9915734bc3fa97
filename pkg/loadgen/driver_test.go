package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/microtune/microtune/pkg/dataset"
)

func TestDriver_Run(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := &Driver{
		Config: Config{
			BaseURL:   server.URL,
			Users:     4,
			SpawnRate: 100,
			Duration:  300 * time.Millisecond,
		},
		Plan: []string{"/", "/product?id=1"},
	}

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.TotalRequests == 0 {
		t.Fatal("no requests recorded")
	}
	if summary.Failures != 0 {
		t.Errorf("failures = %d, want 0", summary.Failures)
	}
	// In-flight requests cut off by the run timer are not recorded.
	if summary.TotalRequests > hits.Load() {
		t.Errorf("driver counted %d requests, server saw only %d", summary.TotalRequests, hits.Load())
	}
	if summary.RequestsPerSec <= 0 {
		t.Errorf("rps = %v, want > 0", summary.RequestsPerSec)
	}
}

func TestDriver_Run_CountsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := &Driver{
		Config: Config{
			BaseURL:   server.URL,
			Users:     2,
			SpawnRate: 100,
			Duration:  200 * time.Millisecond,
		},
	}

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.TotalRequests == 0 {
		t.Fatal("no requests recorded")
	}
	if summary.Failures != summary.TotalRequests {
		t.Errorf("failures = %d, want all %d requests", summary.Failures, summary.TotalRequests)
	}
}

func TestDriver_Run_Validation(t *testing.T) {
	d := &Driver{Config: Config{Users: 1, Duration: time.Second}}
	if _, err := d.Run(context.Background()); err == nil {
		t.Error("Run without BaseURL should fail")
	}

	d = &Driver{Config: Config{BaseURL: "http://localhost:1", Duration: time.Second}}
	if _, err := d.Run(context.Background()); err == nil {
		t.Error("Run without users should fail")
	}
}

func TestDriver_WriteStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := &Driver{
		Config: Config{
			BaseURL:   server.URL,
			Users:     2,
			SpawnRate: 100,
			Duration:  200 * time.Millisecond,
		},
		Plan: []string{"/"},
	}
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "locust_1_stats.csv")
	if err := d.WriteStats(path); err != nil {
		t.Fatalf("WriteStats error: %v", err)
	}

	f, err := dataset.ReadCSV(path)
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if f.Columns[0] != "name" || f.Columns[1] != "request_count" {
		t.Errorf("unexpected stats columns: %v", f.Columns)
	}

	var aggregated *dataset.Row
	for i := range f.Rows {
		if f.Rows[i]["name"] == "Aggregated" {
			aggregated = &f.Rows[i]
		}
	}
	if aggregated == nil {
		t.Fatal("stats export missing the Aggregated row")
	}
	count, ok := aggregated.Float("request_count")
	if !ok || count == 0 {
		t.Errorf("aggregated request_count = %v, want > 0", count)
	}
	if sum, ok := aggregated.Float("latency_sum_ms"); !ok || sum <= 0 {
		t.Errorf("aggregated latency_sum_ms = %v, want > 0", sum)
	}
}

func TestDriver_WriteStats_DoesNotClobber(t *testing.T) {
	d := &Driver{Config: Config{BaseURL: "http://localhost:1"}}
	d.record("/", 5*time.Millisecond, false)

	path := filepath.Join(t.TempDir(), "locust_1_stats.csv")
	sentinel := "name,request_count\nkeep,1\n"
	if err := os.WriteFile(path, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := d.WriteStats(path); err != nil {
		t.Fatalf("WriteStats error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sentinel {
		t.Error("existing stats file was overwritten")
	}
}

func TestDriver_RecordTracksExtremes(t *testing.T) {
	d := &Driver{}
	d.stats = map[string]*RouteStats{}
	d.record("/", 10*time.Millisecond, false)
	d.record("/", 2*time.Millisecond, false)
	d.record("/", 30*time.Millisecond, true)

	stats := d.Stats()["/"]
	if stats.Requests != 3 || stats.Failures != 1 {
		t.Errorf("stats = %+v, want 3 requests and 1 failure", stats)
	}
	if stats.MinMs != 2 || stats.MaxMs != 30 {
		t.Errorf("min/max = %v/%v, want 2/30", stats.MinMs, stats.MaxMs)
	}
	if want := 42.0; stats.LatencySumMs != want {
		t.Errorf("latency sum = %v, want %v", stats.LatencySumMs, want)
	}
}

func TestCorpus_SeedAndLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/categories"):
			w.Write([]byte(`[{"id":2,"name":"Black Tea"},{"id":3,"name":"Green Tea"}]`))
		case strings.HasSuffix(r.URL.Path, "/products"):
			w.Write([]byte(`[{"id":7,"categoryId":2},{"id":8,"categoryId":2},{"id":9,"categoryId":3}]`))
		case strings.HasSuffix(r.URL.Path, "/users"):
			w.Write([]byte(`[{"userName":"user1"},{"userName":"user2"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	seeder := &Seeder{PersistenceURL: server.URL, Dir: dir}

	corpus, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if len(corpus.Categories) != 2 || len(corpus.Products) != 3 || len(corpus.Users) != 2 {
		t.Fatalf("corpus sizes = %d/%d/%d, want 2/3/2",
			len(corpus.Categories), len(corpus.Products), len(corpus.Users))
	}

	loaded, err := LoadCorpus(dir)
	if err != nil {
		t.Fatalf("LoadCorpus error: %v", err)
	}
	if len(loaded.Products) != 3 || loaded.Products[0] != 7 {
		t.Errorf("loaded products = %v, want [7 8 9]", loaded.Products)
	}

	plan := loaded.Plan()
	if len(plan) != 1+2+3 {
		t.Errorf("plan has %d routes, want 6", len(plan))
	}
	if plan[0] != "/" {
		t.Errorf("plan[0] = %q, want /", plan[0])
	}
}

func TestCorpus_Seed_KeepsExistingFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"userName":"u"}]`))
	}))
	defer server.Close()

	dir := t.TempDir()
	sentinel := "[99]\n"
	if err := os.WriteFile(filepath.Join(dir, "categories.json"), []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	seeder := &Seeder{PersistenceURL: server.URL, Dir: dir}
	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatalf("Seed error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "categories.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sentinel {
		t.Error("existing corpus file was overwritten")
	}
}
