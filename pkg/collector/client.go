// Package collector exports metric data from Prometheus for each
// benchmark iteration. Standard exporter metrics are fetched by name
// over a lookback window; the cpu and memory utilization ratios are
// computed with hand-written PromQL expressions and exported as custom
// metrics on a separate path.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Client queries the Prometheus HTTP API.
type Client struct {
	// BaseURL is the base URL to Prometheus, e.g. http://prometheus.monitoring.svc:9090
	BaseURL string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

// Sample is one observation of one series.
type Sample struct {
	Ts    time.Time
	Value float64
}

// Series is a labeled time series returned by a query. Labels are kept
// as-is so exports can carry the pod and namespace of every sample.
type Series struct {
	Metric  map[string]string
	Samples []Sample
}

// rangeResponse mirrors the Prometheus HTTP API envelope.
type rangeResponse struct {
	Status string    `json:"status"`
	Data   rangeData `json:"data"`
}

type rangeData struct {
	ResultType string       `json:"resultType"`
	Result     []rangeSerie `json:"result"`
}

type rangeSerie struct {
	Metric map[string]string `json:"metric"`
	// Values is an array of [ <unix_time_float>, "<value_string>" ].
	Values [][]any `json:"values"`
	// Value is the single pair of an instant query.
	Value []any `json:"value"`
}

// RangeQuery evaluates a PromQL expression over [start, end] at the
// given step and returns every series with its labels preserved.
func (c *Client) RangeQuery(ctx context.Context, expr string, start, end time.Time, step time.Duration) ([]Series, error) {
	q := url.Values{}
	q.Set("query", expr)
	q.Set("start", fmt.Sprintf("%d", start.Unix()))
	q.Set("end", fmt.Sprintf("%d", end.Unix()))
	q.Set("step", fmt.Sprintf("%d", int(step.Seconds())))

	resp, err := c.call(ctx, "/api/v1/query_range", q)
	if err != nil {
		return nil, err
	}

	out := make([]Series, 0, len(resp.Data.Result))
	for _, s := range resp.Data.Result {
		series := Series{Metric: s.Metric, Samples: make([]Sample, 0, len(s.Values))}
		for _, pair := range s.Values {
			sample, err := parsePair(pair)
			if err != nil {
				return nil, err
			}
			series.Samples = append(series.Samples, sample)
		}
		sort.Slice(series.Samples, func(i, j int) bool {
			return series.Samples[i].Ts.Before(series.Samples[j].Ts)
		})
		out = append(out, series)
	}
	return out, nil
}

// InstantQuery evaluates a PromQL expression at the current time.
func (c *Client) InstantQuery(ctx context.Context, expr string) ([]Series, error) {
	q := url.Values{}
	q.Set("query", expr)

	resp, err := c.call(ctx, "/api/v1/query", q)
	if err != nil {
		return nil, err
	}

	out := make([]Series, 0, len(resp.Data.Result))
	for _, s := range resp.Data.Result {
		if len(s.Value) == 0 {
			continue
		}
		sample, err := parsePair(s.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Series{Metric: s.Metric, Samples: []Sample{sample}})
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, path string, q url.Values) (*rangeResponse, error) {
	if c.BaseURL == "" {
		return nil, errors.New("collector: BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("collector: invalid BaseURL: %w", err)
	}
	u.Path = path
	u.RawQuery = q.Encode()

	cli := c.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collector: prometheus status %d", resp.StatusCode)
	}

	var pr rangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("collector: decode prometheus response: %w", err)
	}
	if pr.Status != "success" {
		return nil, fmt.Errorf("collector: prometheus status: %s", pr.Status)
	}
	return &pr, nil
}

// parsePair decodes one [ <unix_time>, "<value>" ] pair.
func parsePair(pair []any) (Sample, error) {
	if len(pair) != 2 {
		return Sample{}, fmt.Errorf("collector: invalid value pair length: %d", len(pair))
	}

	var tsSec int64
	switch v := pair[0].(type) {
	case float64:
		tsSec = int64(v)
	case json.Number:
		f, _ := v.Float64()
		tsSec = int64(f)
	default:
		return Sample{}, fmt.Errorf("collector: unexpected timestamp type %T", v)
	}

	var val float64
	switch vv := pair[1].(type) {
	case string:
		f, err := strconv.ParseFloat(vv, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("collector: parse value: %w", err)
		}
		val = f
	case float64:
		val = vv
	case json.Number:
		f, _ := vv.Float64()
		val = f
	default:
		return Sample{}, fmt.Errorf("collector: unexpected value type %T", vv)
	}
	return Sample{Ts: time.Unix(tsSec, 0).UTC(), Value: val}, nil
}
