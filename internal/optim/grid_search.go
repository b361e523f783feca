// Package optim searches controller gains with simulated trials.
package optim

import (
	"context"
	"errors"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/robart/internal/experiment"
)

var ErrNoCandidate = errors.New("optim: no candidate completed")

// Candidate is one evaluated point of the grid.
type Candidate struct {
	Params map[string]float64
	Value  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.GOMAXPROCS(0)}
}

// SetWorkers bounds how many trials run at once.
func (g *GridSearch) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	g.workers = n
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs a trial for every grid point and returns the one minimizing
// metricName, together with every candidate evaluated in grid order. Trials
// that fail to build or run are skipped. Ties go to the earlier point.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (Candidate, []Candidate, error) {
	var points []map[string]float64
	g.enumerate(0, make(map[string]float64), &points)

	values := make([]float64, len(points))
	ok := make([]bool, len(points))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, params := range points {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			exp, err := buildExperiment(params)
			if err != nil {
				return nil
			}
			result, err := exp.Run(ctx)
			if err != nil {
				return nil
			}
			val, found := result.Metrics[metricName]
			if !found || math.IsNaN(val) {
				return nil
			}
			values[i], ok[i] = val, true
			return nil
		})
	}
	eg.Wait()

	best := Candidate{Value: math.Inf(1)}
	if err := ctx.Err(); err != nil {
		return best, nil, err
	}

	var all []Candidate
	for i, params := range points {
		if !ok[i] {
			continue
		}
		c := Candidate{Params: params, Value: values[i]}
		all = append(all, c)
		if best.Params == nil || c.Value < best.Value {
			best = c
		}
	}
	if best.Params == nil {
		return best, all, ErrNoCandidate
	}
	return best, all, nil
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.enumerate(depth+1, newParams, out)
	}
}
