// Package evaluation computes model quality metrics on held-out games.
package evaluation

import (
	"fmt"
	"math"

	"bracketlab/internal/errors"
)

// Confusion counts predictions against outcomes at one threshold
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// ClassificationMetrics summarizes a probabilistic classifier on one dataset
type ClassificationMetrics struct {
	N           int       `json:"n"`
	Threshold   float64   `json:"threshold"`
	Confusion   Confusion `json:"confusion"`
	Accuracy    float64   `json:"accuracy"`
	Sensitivity float64   `json:"sensitivity"`
	Specificity float64   `json:"specificity"`
	Precision   float64   `json:"precision"`
	F1          float64   `json:"f1"`
	AUC         float64   `json:"auc"`
	Brier       float64   `json:"brier"`
	LogLoss     float64   `json:"log_loss"`
}

// NewConfusion classifies p >= threshold as positive
func NewConfusion(probs []float64, actual []bool, threshold float64) (Confusion, error) {
	if err := checkPaired(len(probs), len(actual)); err != nil {
		return Confusion{}, err
	}
	var c Confusion
	for i, p := range probs {
		predicted := p >= threshold
		switch {
		case predicted && actual[i]:
			c.TP++
		case predicted && !actual[i]:
			c.FP++
		case !predicted && actual[i]:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Total is the number of classified games
func (c Confusion) Total() int { return c.TP + c.FP + c.TN + c.FN }

// Correct is the number of games classified correctly
func (c Confusion) Correct() int { return c.TP + c.TN }

func (c Confusion) Accuracy() float64 { return ratio(c.Correct(), c.Total()) }
func (c Confusion) Sensitivity() float64 { return ratio(c.TP, c.TP+c.FN) }
func (c Confusion) Specificity() float64 { return ratio(c.TN, c.TN+c.FP) }
func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// F1 is the harmonic mean of precision and sensitivity
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Sensitivity()
	if math.IsNaN(p) || math.IsNaN(r) || p+r == 0 {
		return math.NaN()
	}
	return 2 * p * r / (p + r)
}

// Classify computes every classification metric at the given threshold
func Classify(probs []float64, actual []bool, threshold float64) (*ClassificationMetrics, error) {
	c, err := NewConfusion(probs, actual, threshold)
	if err != nil {
		return nil, err
	}
	auc, err := AUC(probs, actual)
	if err != nil {
		return nil, err
	}
	return &ClassificationMetrics{
		N:           len(probs),
		Threshold:   threshold,
		Confusion:   c,
		Accuracy:    c.Accuracy(),
		Sensitivity: c.Sensitivity(),
		Specificity: c.Specificity(),
		Precision:   c.Precision(),
		F1:          c.F1(),
		AUC:         auc,
		Brier:       Brier(probs, actual),
		LogLoss:     LogLoss(probs, actual),
	}, nil
}

// Brier is the mean squared difference between probability and outcome
func Brier(probs []float64, actual []bool) float64 {
	if len(probs) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, p := range probs {
		d := p - indicator(actual[i])
		sum += d * d
	}
	return sum / float64(len(probs))
}

// LogLoss is the mean negative log likelihood with probabilities clipped away from 0 and 1
func LogLoss(probs []float64, actual []bool) float64 {
	if len(probs) == 0 {
		return math.NaN()
	}
	const eps = 1e-15
	var sum float64
	for i, p := range probs {
		p = math.Min(math.Max(p, eps), 1-eps)
		if actual[i] {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(probs))
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func checkPaired(a, b int) error {
	if a != b {
		return errors.InvalidInput(fmt.Sprintf("length mismatch: %d predictions, %d outcomes", a, b))
	}
	if a == 0 {
		return errors.InsufficientData("no predictions to evaluate")
	}
	return nil
}
