package evaluation

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ROCCurve holds paired rates ordered by ascending false positive rate.
// TPR[i] and FPR[i] apply to the rule p >= Thresholds[i].
type ROCCurve struct {
	TPR        []float64 `json:"tpr"`
	FPR        []float64 `json:"fpr"`
	Thresholds []float64 `json:"thresholds"`
}

// ROC computes the receiver operating characteristic of probs against outcomes
func ROC(probs []float64, actual []bool) (ROCCurve, error) {
	if err := checkPaired(len(probs), len(actual)); err != nil {
		return ROCCurve{}, err
	}
	y := append([]float64(nil), probs...)
	classes := append([]bool(nil), actual...)
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	return ROCCurve{TPR: tpr, FPR: fpr, Thresholds: thresh}, nil
}

// AUC is the trapezoidal area under the ROC curve. It is NaN when only one
// class is present.
func AUC(probs []float64, actual []bool) (float64, error) {
	var pos int
	for _, a := range actual {
		if a {
			pos++
		}
	}
	curve, err := ROC(probs, actual)
	if err != nil {
		return math.NaN(), err
	}
	if pos == 0 || pos == len(actual) {
		return math.NaN(), nil
	}
	return curve.AUC(), nil
}

// AUC integrates the curve
func (c ROCCurve) AUC() float64 {
	if len(c.FPR) < 2 {
		return math.NaN()
	}
	for _, v := range c.FPR {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	return integrate.Trapezoidal(c.FPR, c.TPR)
}
