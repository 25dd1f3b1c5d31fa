// Package selection implements backward stepwise feature elimination by an
// information criterion.
package selection

import (
	"fmt"
	"math"
	"strings"

	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/regression"
)

// Criterion names the penalty used to compare fits
type Criterion string

const (
	AIC Criterion = "aic"
	BIC Criterion = "bic"
)

// ParseCriterion accepts "aic" or "bic" in any case; empty means AIC
func ParseCriterion(s string) (Criterion, error) {
	switch Criterion(strings.ToLower(strings.TrimSpace(s))) {
	case "", AIC:
		return AIC, nil
	case BIC:
		return BIC, nil
	default:
		return "", errors.InvalidInput(fmt.Sprintf("unknown selection criterion %q", s))
	}
}

// Penalty returns the per-parameter penalty for n observations
func (c Criterion) Penalty(n int) float64 {
	if c == BIC {
		return math.Log(float64(n))
	}
	return 2
}

// Options controls a backward run
type Options struct {
	Criterion Criterion
	Logger    *internal.Logger
}

// Step records one elimination
type Step struct {
	Dropped   string  `json:"dropped"`
	Criterion float64 `json:"criterion"`
	Remaining int     `json:"remaining"`
}

// Result is the outcome of backward elimination
type Result struct {
	Criterion Criterion        `json:"criterion"`
	Start     float64          `json:"start"`
	Final     float64          `json:"final"`
	Selected  []string         `json:"selected"`
	Trace     []Step           `json:"trace"`
	Model     regression.Model `json:"-"`
}

// Backward starts from the model with every name and repeatedly removes the term
// whose removal lowers the criterion the most. It stops when no removal strictly
// improves the criterion or only the intercept is left. Candidate fits that fail
// are skipped.
func Backward(fit regression.Fitter, x [][]float64, y []float64, names []string, opts Options) (*Result, error) {
	if opts.Criterion == "" {
		opts.Criterion = AIC
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	current, err := fit(x, y, names)
	if err != nil {
		return nil, errors.Wrap(err, "full model fit failed")
	}
	k := opts.Criterion.Penalty(current.NumObs())
	best := current.Criterion(k)

	result := &Result{Criterion: opts.Criterion, Start: best}
	active := make([]int, len(names))
	for i := range active {
		active[i] = i
	}

	for len(active) > 0 {
		dropAt := -1
		var dropModel regression.Model
		dropScore := best
		for pos := range active {
			candidate := without(active, pos)
			m, err := fit(columns(x, candidate), y, pick(names, candidate))
			if err != nil {
				logger.Debug("skipping candidate without %s: %v", names[active[pos]], err)
				continue
			}
			score := m.Criterion(k)
			if score < dropScore {
				dropAt, dropScore, dropModel = pos, score, m
			}
		}
		if dropAt < 0 {
			break
		}

		dropped := names[active[dropAt]]
		active = without(active, dropAt)
		best, current = dropScore, dropModel
		result.Trace = append(result.Trace, Step{Dropped: dropped, Criterion: dropScore, Remaining: len(active)})
		logger.Debug("dropped %s, %s now %.4f with %d terms", dropped, opts.Criterion, dropScore, len(active))
	}

	result.Final = best
	result.Selected = pick(names, active)
	result.Model = current
	return result, nil
}

func without(idx []int, pos int) []int {
	out := make([]int, 0, len(idx)-1)
	out = append(out, idx[:pos]...)
	return append(out, idx[pos+1:]...)
}

func pick(names []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = names[j]
	}
	return out
}

func columns(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(x))
	for r, row := range x {
		sub := make([]float64, len(idx))
		for i, j := range idx {
			sub[i] = row[j]
		}
		out[r] = sub
	}
	return out
}
