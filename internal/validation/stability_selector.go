package validation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/regression"
	"bracketlab/internal/selection"

	"golang.org/x/sync/errgroup"
)

// StabilitySelectionConfig controls how often backward selection is repeated
type StabilitySelectionConfig struct {
	SubsampleCount     int     `json:"subsample_count"`     // number of subsamples (default 20)
	SubsampleFraction  float64 `json:"subsample_fraction"`  // share of rows per subsample (default 0.8)
	StabilityThreshold float64 `json:"stability_threshold"` // selection frequency counted as stable (default 0.8)
	RandomSeed         int64   `json:"random_seed"`
	Workers            int     `json:"-"` // concurrent fits (default 4)
}

// StabilitySelector reruns backward selection on random subsamples of the rows
// and reports how often each feature survives
type StabilitySelector struct {
	config StabilitySelectionConfig
	logger *internal.Logger
}

// FeatureStability is one candidate's selection frequency
type FeatureStability struct {
	Feature   string  `json:"feature"`
	Selected  int     `json:"selected"`
	Frequency float64 `json:"frequency"`
	Stable    bool    `json:"stable"`
}

// StabilityResult summarizes all subsamples
type StabilityResult struct {
	SubsampleCount     int                `json:"subsample_count"`
	SubsampleSize      int                `json:"subsample_size"`
	Failed             int                `json:"failed"`
	StabilityThreshold float64            `json:"stability_threshold"`
	Features           []FeatureStability `json:"features"`
}

// Stable lists features at or above the threshold, most frequent first
func (r *StabilityResult) Stable() []string {
	var out []string
	for _, f := range r.Features {
		if f.Stable {
			out = append(out, f.Feature)
		}
	}
	return out
}

// NewStabilitySelector fills in defaults
func NewStabilitySelector(config StabilitySelectionConfig, logger *internal.Logger) *StabilitySelector {
	if config.SubsampleCount == 0 {
		config.SubsampleCount = 20
	}
	if config.SubsampleFraction == 0 {
		config.SubsampleFraction = 0.8
	}
	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 0.8
	}
	if config.Workers < 1 {
		config.Workers = 4
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &StabilitySelector{config: config, logger: logger}
}

// Run repeats selection.Backward with fit on each subsample. Subsamples whose full
// fit fails (a single outcome class, a singular design) count as failed; the
// frequencies are over the successful ones.
func (ss *StabilitySelector) Run(ctx context.Context, fit regression.Fitter, x [][]float64, y []float64, names []string, criterion selection.Criterion) (*StabilityResult, error) {
	cfg := ss.config
	if cfg.SubsampleCount < 1 {
		return nil, errors.InvalidInput("subsample count must be positive")
	}
	if cfg.SubsampleFraction <= 0 || cfg.SubsampleFraction > 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("subsample fraction %v outside (0, 1]", cfg.SubsampleFraction))
	}
	if len(x) != len(y) {
		return nil, errors.InvalidInput(fmt.Sprintf("%d rows but %d outcomes", len(x), len(y)))
	}
	size := int(float64(len(x)) * cfg.SubsampleFraction)
	if size <= len(names)+1 {
		return nil, errors.InsufficientData(fmt.Sprintf("subsamples of %d rows are too small for %d features", size, len(names)))
	}

	// draw every subsample up front so results do not depend on scheduling
	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	subsamples := make([][]int, cfg.SubsampleCount)
	for i := range subsamples {
		idx := rng.Perm(len(x))[:size]
		sort.Ints(idx)
		subsamples[i] = idx
	}

	var (
		mu     sync.Mutex
		counts = make(map[string]int, len(names))
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, idx := range subsamples {
		i, idx := i, idx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			xs := make([][]float64, len(idx))
			ys := make([]float64, len(idx))
			for k, row := range idx {
				xs[k], ys[k] = x[row], y[row]
			}
			res, err := selection.Backward(fit, xs, ys, names, selection.Options{Criterion: criterion, Logger: ss.logger})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ss.logger.Debug("subsample %d failed: %v", i, err)
				failed++
				return nil
			}
			for _, name := range res.Selected {
				counts[name]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ok := cfg.SubsampleCount - failed
	if ok == 0 {
		return nil, errors.InsufficientData(fmt.Sprintf("selection failed on all %d subsamples", cfg.SubsampleCount))
	}

	result := &StabilityResult{
		SubsampleCount:     cfg.SubsampleCount,
		SubsampleSize:      size,
		Failed:             failed,
		StabilityThreshold: cfg.StabilityThreshold,
	}
	for _, name := range names {
		freq := float64(counts[name]) / float64(ok)
		result.Features = append(result.Features, FeatureStability{
			Feature:   name,
			Selected:  counts[name],
			Frequency: freq,
			Stable:    freq >= cfg.StabilityThreshold,
		})
	}
	sort.SliceStable(result.Features, func(i, j int) bool {
		return result.Features[i].Frequency > result.Features[j].Frequency
	})
	ss.logger.Debug("stability over %d subsamples of %d rows: %d of %d features stable",
		ok, size, len(result.Stable()), len(names))
	return result, nil
}
