package collector

import (
	"context"
	"fmt"
	"strings"
)

// Status is the live operating point and target state of one scalable
// deployment, read straight from the monitoring backend.
type Status struct {
	CPULimitCores    float64
	MemoryLimitBytes float64
	Replicas         float64

	CPUUsage     float64
	MemoryUsage  float64
	ResponseTime float64
}

// Status reads the current parameters and target metrics of the named
// deployment via instant queries. It feeds the advisor with the point
// the window is centered on.
func (c *Collector) Status(ctx context.Context, deployment string) (*Status, error) {
	st := &Status{}

	cpuExpr, err := c.CustomExpr("cpu")
	if err != nil {
		return nil, err
	}
	memExpr, err := c.CustomExpr("memory")
	if err != nil {
		return nil, err
	}

	reads := []struct {
		expr string
		dst  *float64
	}{
		{cpuExpr, &st.CPUUsage},
		{memExpr, &st.MemoryUsage},
		{"kube_pod_container_resource_limits_cpu_cores", &st.CPULimitCores},
		{"kube_pod_container_resource_limits_memory_bytes", &st.MemoryLimitBytes},
		{"kube_deployment_spec_replicas", &st.Replicas},
	}
	for _, r := range reads {
		v, err := c.instantFor(ctx, r.expr, deployment)
		if err != nil {
			return nil, err
		}
		*r.dst = v
	}

	latSum, err := c.instantFor(ctx, "response_latency_ms_sum", deployment)
	if err != nil {
		return nil, err
	}
	latCount, err := c.instantFor(ctx, "response_latency_ms_count", deployment)
	if err != nil {
		return nil, err
	}
	if latCount == 0 {
		return nil, fmt.Errorf("collector: deployment %s has no recorded requests", deployment)
	}
	st.ResponseTime = latSum / latCount

	return st, nil
}

// instantFor evaluates expr now and returns the first sample whose pod
// label belongs to the deployment.
func (c *Collector) instantFor(ctx context.Context, expr, deployment string) (float64, error) {
	series, err := c.Client.InstantQuery(ctx, expr)
	if err != nil {
		return 0, err
	}
	for _, s := range series {
		if !podBelongsTo(s.Metric["pod"], deployment) {
			continue
		}
		if len(s.Samples) > 0 {
			return s.Samples[0].Value, nil
		}
	}
	return 0, fmt.Errorf("collector: no sample for deployment %s in %q", deployment, expr)
}

// podBelongsTo reports whether a generated pod name (app-webui-5b7f9)
// carries the deployment token in its second segment, or starts with
// the deployment name outright.
func podBelongsTo(pod, deployment string) bool {
	if pod == "" {
		return false
	}
	if strings.HasPrefix(pod, deployment) {
		return true
	}
	parts := strings.SplitN(pod, "-", 3)
	return len(parts) >= 2 && parts[1] == deployment
}
