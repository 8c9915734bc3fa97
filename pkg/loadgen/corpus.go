package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
)

// Corpus holds the storefront entity IDs the browse plan is built
// from, seeded once per deployment from the persistence service.
type Corpus struct {
	Categories []int64
	Products   []int64
	Users      []string
}

// Seeder pulls entity IDs from the storefront's persistence REST API
// and saves them next to the load test data. Existing corpus files are
// kept, matching the create-if-absent policy of the raw exports.
type Seeder struct {
	// PersistenceURL is the persistence service REST root, e.g.
	// http://host:30090/tools.descartes.teastore.persistence/rest
	PersistenceURL string
	Dir            string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

func (s *Seeder) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Seed fetches categories, products, and users and writes one JSON
// file per collection under Dir.
func (s *Seeder) Seed(ctx context.Context) (*Corpus, error) {
	if s.PersistenceURL == "" {
		return nil, errors.New("loadgen: PersistenceURL is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("loadgen: create corpus dir: %w", err)
	}

	corpus := &Corpus{}

	categories, err := s.fetchIDs(ctx, "/categories")
	if err != nil {
		return nil, err
	}
	corpus.Categories = categories
	if err := s.saveJSON("categories.json", categories); err != nil {
		return nil, err
	}

	products, err := s.fetchIDs(ctx, "/products")
	if err != nil {
		return nil, err
	}
	corpus.Products = products
	if err := s.saveJSON("products.json", products); err != nil {
		return nil, err
	}

	users, err := s.fetch(ctx, "/users")
	if err != nil {
		return nil, err
	}
	for _, u := range gjson.ParseBytes(users).Array() {
		corpus.Users = append(corpus.Users, u.Get("userName").String())
	}
	if err := s.saveJSON("users.json", corpus.Users); err != nil {
		return nil, err
	}

	s.logger().Info("corpus seeded",
		"categories", len(corpus.Categories),
		"products", len(corpus.Products),
		"users", len(corpus.Users),
	)
	return corpus, nil
}

func (s *Seeder) fetchIDs(ctx context.Context, path string) ([]int64, error) {
	body, err := s.fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, r := range gjson.GetBytes(body, "#.id").Array() {
		ids = append(ids, r.Int())
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("loadgen: %s returned no entities", path)
	}
	return ids, nil
}

func (s *Seeder) fetch(ctx context.Context, path string) ([]byte, error) {
	cli := s.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PersistenceURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loadgen: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loadgen: fetch %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// saveJSON writes a corpus file, skipping with a warning if it exists.
func (s *Seeder) saveJSON(name string, v any) error {
	path := filepath.Join(s.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			s.logger().Warn("corpus file exists, keeping it", "path", path)
			return nil
		}
		return fmt.Errorf("loadgen: create %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("loadgen: write %s: %w", path, err)
	}
	return nil
}

// LoadCorpus reads a previously seeded corpus from Dir.
func LoadCorpus(dir string) (*Corpus, error) {
	corpus := &Corpus{}

	categories, err := os.ReadFile(filepath.Join(dir, "categories.json"))
	if err != nil {
		return nil, fmt.Errorf("loadgen: read corpus: %w", err)
	}
	for _, r := range gjson.ParseBytes(categories).Array() {
		corpus.Categories = append(corpus.Categories, r.Int())
	}

	products, err := os.ReadFile(filepath.Join(dir, "products.json"))
	if err != nil {
		return nil, fmt.Errorf("loadgen: read corpus: %w", err)
	}
	for _, r := range gjson.ParseBytes(products).Array() {
		corpus.Products = append(corpus.Products, r.Int())
	}

	users, err := os.ReadFile(filepath.Join(dir, "users.json"))
	if err != nil {
		return nil, fmt.Errorf("loadgen: read corpus: %w", err)
	}
	for _, r := range gjson.ParseBytes(users).Array() {
		corpus.Users = append(corpus.Users, r.String())
	}

	return corpus, nil
}

// Plan builds the browse routes the virtual users cycle through: the
// landing page, every category listing, and every product page.
func (c *Corpus) Plan() []string {
	plan := []string{"/"}
	for _, id := range c.Categories {
		plan = append(plan, fmt.Sprintf("/category?category=%d&page=1", id))
	}
	for _, id := range c.Products {
		plan = append(plan, fmt.Sprintf("/product?id=%d", id))
	}
	return plan
}
