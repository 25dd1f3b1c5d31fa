package profiling

import (
	"math"

	"bracketlab/domain/game"
	"bracketlab/internal"

	"github.com/montanaflynn/stats"
)

// FeatureProfile summarizes one feature column over a set of games
type FeatureProfile struct {
	Feature  string  `json:"feature"`
	N        int     `json:"n"`
	Missing  int     `json:"missing"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Q25      float64 `json:"q25"`
	Median   float64 `json:"median"`
	Q75      float64 `json:"q75"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Outliers int     `json:"outliers"` // outside 1.5 IQR of the quartiles
	// correlation with the home win indicator (point-biserial) and the score
	// differential; NaN when the feature is constant
	WinCorrelation    float64 `json:"win_correlation"`
	MarginCorrelation float64 `json:"margin_correlation"`
}

// Profiler computes per-feature distribution summaries
type Profiler struct {
	logger *internal.Logger
}

// NewProfiler creates a profiler
func NewProfiler(logger *internal.Logger) *Profiler {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Profiler{logger: logger}
}

// Profile summarizes each feature over games, in the order given. Missing values
// are counted and left out of the statistics.
func (p *Profiler) Profile(games []game.Game, features []string) []FeatureProfile {
	out := make([]FeatureProfile, 0, len(features))
	for _, name := range features {
		out = append(out, p.profileColumn(games, name))
	}
	p.logger.Debug("profiled %d features over %d games", len(out), len(games))
	return out
}

func (p *Profiler) profileColumn(games []game.Game, name string) FeatureProfile {
	prof := FeatureProfile{Feature: name}
	var values, wins, margins []float64
	for _, g := range games {
		v, ok := g.Features[name]
		if !ok || math.IsNaN(v) {
			prof.Missing++
			continue
		}
		values = append(values, v)
		margins = append(margins, g.ScoreDiff())
		if g.HomeWin() {
			wins = append(wins, 1)
		} else {
			wins = append(wins, 0)
		}
	}
	prof.N = len(values)
	if prof.N == 0 {
		nan := math.NaN()
		prof.Mean, prof.StdDev, prof.Min, prof.Q25, prof.Median, prof.Q75, prof.Max = nan, nan, nan, nan, nan, nan, nan
		prof.Skewness, prof.WinCorrelation, prof.MarginCorrelation = nan, nan, nan
		return prof
	}

	prof.Mean, _ = stats.Mean(values)
	prof.StdDev, _ = stats.StandardDeviationSample(values)
	prof.Min, _ = stats.Min(values)
	prof.Max, _ = stats.Max(values)
	prof.Median, _ = stats.Median(values)
	if q, err := stats.Quartile(values); err == nil && prof.N >= 4 {
		prof.Q25, prof.Q75 = q.Q1, q.Q3
		prof.Outliers = outliers(values, q.Q1, q.Q3)
	} else {
		prof.Q25, prof.Q75 = math.NaN(), math.NaN()
	}
	prof.Skewness = skewness(values, prof.Mean, prof.StdDev)
	prof.WinCorrelation = correlation(values, wins)
	prof.MarginCorrelation = correlation(values, margins)
	return prof
}

// skewness is the adjusted Fisher-Pearson coefficient; NaN below three values or
// for a constant column
func skewness(data []float64, mean, sd float64) float64 {
	n := float64(len(data))
	if n < 3 || sd == 0 || math.IsNaN(sd) {
		return math.NaN()
	}
	var sum float64
	for _, x := range data {
		d := (x - mean) / sd
		sum += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * sum
}

func outliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lower, upper := q25-1.5*iqr, q75+1.5*iqr
	var count int
	for _, x := range data {
		if x < lower || x > upper {
			count++
		}
	}
	return count
}

// correlation is Pearson's r, NaN when either side is constant
func correlation(a, b []float64) float64 {
	sa, _ := stats.StandardDeviationPopulation(a)
	sb, _ := stats.StandardDeviationPopulation(b)
	if sa == 0 || sb == 0 {
		return math.NaN()
	}
	r, err := stats.Correlation(a, b)
	if err != nil {
		return math.NaN()
	}
	return r
}
