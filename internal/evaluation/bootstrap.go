package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"bracketlab/internal/errors"

	"gonum.org/v1/gonum/stat"
)

// BootstrapConfig controls paired bootstrap resampling of test games
type BootstrapConfig struct {
	Resamples int     `json:"resamples"`
	Level     float64 `json:"level"`
	Seed      int64   `json:"seed"`
}

// BootstrapInterval is a percentile confidence interval
type BootstrapInterval struct {
	Level     float64 `json:"level"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Resamples int     `json:"resamples"` // resamples with a defined statistic
}

// PairedBootstrap draws cfg.Resamples index sets of size n with replacement and
// evaluates stat on each. Both compared models see the same resampled games.
// Resamples where stat is undefined are skipped.
func PairedBootstrap(n int, cfg BootstrapConfig, statistic func(idx []int) float64) (BootstrapInterval, error) {
	if n < 2 {
		return BootstrapInterval{}, errors.InsufficientData(fmt.Sprintf("bootstrap needs at least 2 games, got %d", n))
	}
	if cfg.Resamples < 1 {
		return BootstrapInterval{}, errors.InvalidInput("bootstrap resamples must be positive")
	}
	if cfg.Level <= 0 || cfg.Level >= 1 {
		return BootstrapInterval{}, errors.InvalidInput(fmt.Sprintf("bootstrap level %v outside (0, 1)", cfg.Level))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	idx := make([]int, n)
	values := make([]float64, 0, cfg.Resamples)
	for b := 0; b < cfg.Resamples; b++ {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		if v := statistic(idx); !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return BootstrapInterval{Level: cfg.Level, Lower: math.NaN(), Upper: math.NaN()}, nil
	}

	sort.Float64s(values)
	alpha := (1 - cfg.Level) / 2
	return BootstrapInterval{
		Level:     cfg.Level,
		Lower:     stat.Quantile(alpha, stat.LinInterp, values, nil),
		Upper:     stat.Quantile(1-alpha, stat.LinInterp, values, nil),
		Resamples: len(values),
	}, nil
}

// Subset gathers xs at idx
func Subset[T any](xs []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}
