package evaluation

import (
	"fmt"
	"math"

	"bracketlab/internal/errors"
)

// ThresholdResult is the outcome of a threshold sweep
type ThresholdResult struct {
	Threshold  float64 `json:"threshold"`
	Accuracy   float64 `json:"accuracy"`
	Candidates int     `json:"candidates"`
}

// Grid returns thresholds step, 2·step, ... strictly between 0 and 1
func Grid(step float64) ([]float64, error) {
	if step <= 0 || step >= 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("threshold step %v outside (0, 1)", step))
	}
	var grid []float64
	for i := 1; ; i++ {
		t := math.Round(float64(i)*step*1e9) / 1e9
		if t >= 1 {
			break
		}
		grid = append(grid, t)
	}
	return grid, nil
}

// TuneThreshold picks the grid threshold with the highest accuracy. Ties go to the
// threshold closest to 0.5, then to the lower one.
func TuneThreshold(probs []float64, actual []bool, grid []float64) (ThresholdResult, error) {
	if err := checkPaired(len(probs), len(actual)); err != nil {
		return ThresholdResult{}, err
	}
	if len(grid) == 0 {
		return ThresholdResult{}, errors.InvalidInput("empty threshold grid")
	}

	best := ThresholdResult{Threshold: math.NaN(), Candidates: len(grid)}
	bestCorrect := -1
	for _, t := range grid {
		c, err := NewConfusion(probs, actual, t)
		if err != nil {
			return ThresholdResult{}, err
		}
		correct := c.Correct()
		if correct > bestCorrect || (correct == bestCorrect && preferred(t, best.Threshold)) {
			bestCorrect = correct
			best.Threshold = t
			best.Accuracy = c.Accuracy()
		}
	}
	return best, nil
}

func preferred(candidate, incumbent float64) bool {
	dc, di := math.Abs(candidate-0.5), math.Abs(incumbent-0.5)
	if math.Abs(dc-di) > 1e-12 {
		return dc < di
	}
	return candidate < incumbent
}
