package evaluation

import (
	"fmt"
	"math"

	"bracketlab/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// RegressionMetrics summarizes point predictions of a continuous target
type RegressionMetrics struct {
	N              int              `json:"n"`
	RSquared       float64          `json:"r_squared"`
	RMSE           float64          `json:"rmse"`
	MAE            float64          `json:"mae"`
	Bias           float64          `json:"bias"`
	MedianAE       float64          `json:"median_ae"`
	WinnerAccuracy float64          `json:"winner_accuracy"`
	Interval       *IntervalMetrics `json:"interval,omitempty"`
}

// IntervalMetrics describes prediction interval calibration
type IntervalMetrics struct {
	Level     float64 `json:"level"`
	Coverage  float64 `json:"coverage"`
	MeanWidth float64 `json:"mean_width"`
}

// Regress compares predictions with observed values. R² is computed about the mean
// of the observed values and is NaN when they are constant.
func Regress(pred, actual []float64) (*RegressionMetrics, error) {
	if err := checkPaired(len(pred), len(actual)); err != nil {
		return nil, err
	}
	residuals := make([]float64, len(pred))
	absErr := make([]float64, len(pred))
	sqErr := make([]float64, len(pred))
	for i := range pred {
		r := pred[i] - actual[i]
		residuals[i] = r
		absErr[i] = math.Abs(r)
		sqErr[i] = r * r
	}

	mse, err := stats.Mean(sqErr)
	if err != nil {
		return nil, errors.Wrap(err, "mean squared error")
	}
	mae, err := stats.Mean(absErr)
	if err != nil {
		return nil, errors.Wrap(err, "mean absolute error")
	}
	bias, err := stats.Mean(residuals)
	if err != nil {
		return nil, errors.Wrap(err, "mean error")
	}
	medAE, err := stats.Median(absErr)
	if err != nil {
		return nil, errors.Wrap(err, "median absolute error")
	}

	r2 := math.NaN()
	if variance, _ := stats.PopulationVariance(actual); variance > 0 {
		r2 = stat.RSquaredFrom(pred, actual, nil)
	}

	return &RegressionMetrics{
		N:              len(pred),
		RSquared:       r2,
		RMSE:           math.Sqrt(mse),
		MAE:            mae,
		Bias:           bias,
		MedianAE:       medAE,
		WinnerAccuracy: math.NaN(),
	}, nil
}

// WinnerAccuracy scores a margin prediction as a pick: positive margin means the
// home team wins
func WinnerAccuracy(pred []float64, homeWin []bool) (float64, error) {
	if err := checkPaired(len(pred), len(homeWin)); err != nil {
		return math.NaN(), err
	}
	var correct int
	for i, p := range pred {
		if (p > 0) == homeWin[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// Coverage measures how often actual values fall inside [lower, upper]
func Coverage(lower, upper, actual []float64, level float64) (*IntervalMetrics, error) {
	if len(lower) != len(upper) {
		return nil, errors.InvalidInput(fmt.Sprintf("length mismatch: %d lower bounds, %d upper", len(lower), len(upper)))
	}
	if err := checkPaired(len(lower), len(actual)); err != nil {
		return nil, err
	}
	var inside int
	widths := make([]float64, len(lower))
	for i := range lower {
		if actual[i] >= lower[i] && actual[i] <= upper[i] {
			inside++
		}
		widths[i] = upper[i] - lower[i]
	}
	width, err := stats.Mean(widths)
	if err != nil {
		return nil, errors.Wrap(err, "mean interval width")
	}
	return &IntervalMetrics{
		Level:     level,
		Coverage:  float64(inside) / float64(len(lower)),
		MeanWidth: width,
	}, nil
}
