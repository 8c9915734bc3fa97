// Package grid generates the parameter variation grid for a tuning sweep.
//
// A sweep varies three resource parameters of the scalable deployment:
// CPU limit (millicores), memory limit (MiB), and replica count. The grid
// is the full Cartesian product of three integer axes, laid out in
// row-major (cpu, memory, replicas) order so that iteration numbers are
// stable across the sweep, the exported variation table, and the
// filtered dataset that later joins on them.
package grid

import (
	"errors"
	"fmt"
)

// Point is one (CPU limit, memory limit, replica count) combination under
// test. Values are immutable once generated.
type Point struct {
	CPUMillis int `json:"cpu"`
	MemoryMiB int `json:"memory"`
	Replicas  int `json:"replicas"`
}

func (p Point) String() string {
	return fmt.Sprintf("cpu=%dm memory=%dMi replicas=%d", p.CPUMillis, p.MemoryMiB, p.Replicas)
}

// Axes holds the three integer sequences whose Cartesian product forms
// the grid.
type Axes struct {
	CPU      []int
	Memory   []int
	Replicas []int
}

// Size returns the number of grid points the axes span.
func (a Axes) Size() int {
	return len(a.CPU) * len(a.Memory) * len(a.Replicas)
}

// Grid is the ordered Cartesian product of three parameter axes.
// Points are stored flattened in row-major (cpu, memory, replicas)
// order; the iteration number of a point is its index plus one.
type Grid struct {
	Axes   Axes
	Points []Point
}

// Bounds describes the parameter ranges for one deployment.
//
// CPU and memory axes use half-open range semantics: values run from the
// request up to, but excluding, the limit, in increments of Step. A
// degenerate range (request == limit) collapses to the single request
// value. Replicas always run 1..ReplicaCap inclusive.
type Bounds struct {
	CPURequestMillis int
	CPULimitMillis   int
	MemoryRequestMiB int
	MemoryLimitMiB   int
	Step             int
	ReplicaCap       int

	// Invert reverses every axis so the sweep starts from the most
	// constrained point and loosens over time.
	Invert bool
}

// ErrEmptyGrid is returned when the requested bounds produce no points.
var ErrEmptyGrid = errors.New("grid: bounds produce an empty grid")

// BuildAxes expands bounds into the three parameter sequences.
func BuildAxes(b Bounds) (Axes, error) {
	if b.Step <= 0 {
		return Axes{}, fmt.Errorf("grid: step must be positive, got %d", b.Step)
	}
	if b.ReplicaCap < 1 {
		return Axes{}, fmt.Errorf("grid: replica cap must be >= 1, got %d", b.ReplicaCap)
	}

	axes := Axes{
		CPU:      arange(b.CPURequestMillis, b.CPULimitMillis, b.Step),
		Memory:   arange(b.MemoryRequestMiB, b.MemoryLimitMiB, b.Step),
		Replicas: arange(1, b.ReplicaCap+1, 1),
	}
	if b.Invert {
		reverse(axes.CPU)
		reverse(axes.Memory)
		reverse(axes.Replicas)
	}
	if axes.Size() == 0 {
		return Axes{}, ErrEmptyGrid
	}
	return axes, nil
}

// Generate builds the full grid for the given bounds.
func Generate(b Bounds) (*Grid, error) {
	axes, err := BuildAxes(b)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, axes.Size())
	for _, c := range axes.CPU {
		for _, m := range axes.Memory {
			for _, p := range axes.Replicas {
				points = append(points, Point{CPUMillis: c, MemoryMiB: m, Replicas: p})
			}
		}
	}
	return &Grid{Axes: axes, Points: points}, nil
}

// Len returns the number of points in the grid.
func (g *Grid) Len() int { return len(g.Points) }

// At returns the point for a 1-based iteration number.
func (g *Grid) At(iteration int) (Point, error) {
	if iteration < 1 || iteration > len(g.Points) {
		return Point{}, fmt.Errorf("grid: iteration %d out of range 1..%d", iteration, len(g.Points))
	}
	return g.Points[iteration-1], nil
}

// arange returns integers start, start+step, ... up to but excluding stop.
// A degenerate range (start >= stop) yields the single start value, so a
// deployment whose request equals its limit still gets one grid point.
func arange(start, stop, step int) []int {
	if start >= stop {
		return []int{start}
	}
	var out []int
	for v := start; v < stop; v += step {
		out = append(out, v)
	}
	return out
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
