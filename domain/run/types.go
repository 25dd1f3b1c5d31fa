package run

import (
	"time"

	"bracketlab/domain/core"
)

// Model kinds
const (
	KindLogistic = "logistic"
	KindLinear   = "linear"
)

// Report is the complete outcome of one pipeline run
type Report struct {
	ID          core.RunID     `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Manifest    Manifest       `json:"manifest"`
	Dataset     DatasetSummary `json:"dataset"`
	Models      []ModelReport  `json:"models"`
	Comparison  []Comparison   `json:"comparison"`
	Predictions []Prediction   `json:"predictions,omitempty"`
	RuntimeMs   int64          `json:"runtime_ms"`
}

// DatasetSummary describes the loaded games and the split
type DatasetSummary struct {
	Source           string    `json:"source"`
	RowsRead         int       `json:"rows_read"`
	RowsDropped      int       `json:"rows_dropped"`
	Games            int       `json:"games"`
	Features         []string  `json:"features"`
	RankingFeatures  []string  `json:"ranking_features"`
	Seasons          []int     `json:"seasons"`
	FirstDate        time.Time `json:"first_date"`
	LastDate         time.Time `json:"last_date"`
	TrainGames       int       `json:"train_games"`
	TestGames        int       `json:"test_games"`
	Cutoff           time.Time `json:"cutoff"`
	SplitMethod      string    `json:"split_method"`
	HomeWinRate      Float     `json:"home_win_rate"`
	TrainHomeWinRate Float     `json:"train_home_win_rate"`
	TestHomeWinRate  Float     `json:"test_home_win_rate"`
	MeanScoreDiff    Float     `json:"mean_score_diff"`
	SDScoreDiff      Float     `json:"sd_score_diff"`
	// Profiles describe each candidate feature over the training games
	Profiles []FeatureProfile `json:"feature_profiles,omitempty"`
}

// FeatureProfile is the distribution of one feature and its correlation with both
// outcomes
type FeatureProfile struct {
	Feature           string `json:"feature"`
	N                 int    `json:"n"`
	Missing           int    `json:"missing"`
	Mean              Float  `json:"mean"`
	StdDev            Float  `json:"std_dev"`
	Min               Float  `json:"min"`
	Median            Float  `json:"median"`
	Max               Float  `json:"max"`
	Skewness          Float  `json:"skewness"`
	Outliers          int    `json:"outliers"`
	WinCorrelation    Float  `json:"win_correlation"`
	MarginCorrelation Float  `json:"margin_correlation"`
}

// ModelReport is one fitted model: a feature set crossed with a model kind
type ModelReport struct {
	FeatureSet     string        `json:"feature_set"`
	Kind           string        `json:"kind"`
	Candidates     []string      `json:"candidates"`
	Selected       []string      `json:"selected"`
	Criterion      string        `json:"criterion"`
	StartCriterion Float         `json:"start_criterion"`
	FinalCriterion Float         `json:"final_criterion"`
	Trace          []Step        `json:"trace"`
	Coefficients   []Coefficient `json:"coefficients"`
	Fit            FitStatistics `json:"fit"`
	Threshold      *Threshold    `json:"threshold,omitempty"`
	Train          *Classifier   `json:"train,omitempty"`
	Test           *Classifier   `json:"test,omitempty"`
	Regression     *Regression   `json:"regression,omitempty"`
	Stability      *Stability    `json:"stability,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// Name identifies the model in tables, e.g. "logistic/with_rankings"
func (m ModelReport) Name() string {
	return m.Kind + "/" + m.FeatureSet
}

// Step is one backward elimination
type Step struct {
	Dropped   string `json:"dropped"`
	Criterion Float  `json:"criterion"`
	Remaining int    `json:"remaining"`
}

// Coefficient is a row of the final model's coefficient table
type Coefficient struct {
	Term      string `json:"term"`
	Estimate  Float  `json:"estimate"`
	StdError  Float  `json:"std_error"`
	Statistic Float  `json:"statistic"`
	PValue    Float  `json:"p_value"`
}

// FitStatistics are in-sample goodness-of-fit values; fields that do not apply to a
// model kind are NA
type FitStatistics struct {
	N            int   `json:"n"`
	Params       int   `json:"params"`
	RSquared     Float `json:"r_squared"`
	AdjRSquared  Float `json:"adj_r_squared"`
	Sigma        Float `json:"sigma"`
	Deviance     Float `json:"deviance"`
	NullDeviance Float `json:"null_deviance"`
	Iterations   int   `json:"iterations"`
	Converged    bool  `json:"converged"`
}

// Threshold is the tuned classification cutoff
type Threshold struct {
	Value         Float `json:"value"`
	TrainAccuracy Float `json:"train_accuracy"`
	Candidates    int   `json:"candidates"`
}

// Classifier holds classification metrics on one segment
type Classifier struct {
	N           int   `json:"n"`
	Threshold   Float `json:"threshold"`
	TP          int   `json:"tp"`
	FP          int   `json:"fp"`
	TN          int   `json:"tn"`
	FN          int   `json:"fn"`
	Accuracy    Float `json:"accuracy"`
	Sensitivity Float `json:"sensitivity"`
	Specificity Float `json:"specificity"`
	Precision   Float `json:"precision"`
	F1          Float `json:"f1"`
	AUC         Float `json:"auc"`
	Brier       Float `json:"brier"`
	LogLoss     Float `json:"log_loss"`
}

// Regression holds score differential metrics on the test segment
type Regression struct {
	N                int   `json:"n"`
	RSquared         Float `json:"r_squared"`
	RMSE             Float `json:"rmse"`
	MAE              Float `json:"mae"`
	Bias             Float `json:"bias"`
	MedianAE         Float `json:"median_ae"`
	WinnerAccuracy   Float `json:"winner_accuracy"`
	IntervalLevel    Float `json:"interval_level"`
	IntervalCoverage Float `json:"interval_coverage"`
	IntervalWidth    Float `json:"interval_width"`
}

// Prediction is one test game as seen by one feature set's models
type Prediction struct {
	FeatureSet   string    `json:"feature_set"`
	Date         time.Time `json:"date"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	HomeWin      bool      `json:"home_win"`
	ScoreDiff    float64   `json:"score_diff"`
	Probability  Float     `json:"probability"`
	PredictedWin bool      `json:"predicted_win"`
	Margin       Float     `json:"margin"`
	Lower        Float     `json:"lower"`
	Upper        Float     `json:"upper"`
}

// Stability is how often backward selection kept each candidate when repeated on
// subsamples of the training games
type Stability struct {
	SubsampleCount int                `json:"subsample_count"`
	SubsampleSize  int                `json:"subsample_size"`
	Failed         int                `json:"failed"`
	Threshold      Float              `json:"threshold"`
	Features       []FeatureStability `json:"features"`
}

// FeatureStability is one candidate's selection frequency
type FeatureStability struct {
	Feature   string `json:"feature"`
	Selected  int    `json:"selected"`
	Frequency Float  `json:"frequency"`
	Stable    bool   `json:"stable"`
}

// Comparison lines up the headline test metrics of both feature sets for one model
// kind. DeltaLower and DeltaUpper bound a paired bootstrap interval of the delta and
// are NA when no bootstrap was run.
type Comparison struct {
	Kind       string `json:"kind"`
	Metric     string `json:"metric"`
	With       Float  `json:"with_rankings"`
	Without    Float  `json:"without_rankings"`
	Delta      Float  `json:"delta"`
	DeltaLower Float  `json:"delta_lower"`
	DeltaUpper Float  `json:"delta_upper"`
}

// HasInterval reports whether a bootstrap interval was computed for the delta
func (c Comparison) HasInterval() bool {
	return c.DeltaLower.Defined() && c.DeltaUpper.Defined()
}

// Metric is a flattened name/value pair
type Metric struct {
	Name  string `json:"name"`
	Value Float  `json:"value"`
}

// Metrics flattens the test metrics of a model for storage and comparison
func (m ModelReport) Metrics() []Metric {
	var out []Metric
	if m.Test != nil {
		out = append(out,
			Metric{"accuracy", m.Test.Accuracy},
			Metric{"sensitivity", m.Test.Sensitivity},
			Metric{"specificity", m.Test.Specificity},
			Metric{"precision", m.Test.Precision},
			Metric{"f1", m.Test.F1},
			Metric{"auc", m.Test.AUC},
			Metric{"brier", m.Test.Brier},
			Metric{"log_loss", m.Test.LogLoss},
		)
	}
	if m.Threshold != nil {
		out = append(out, Metric{"threshold", m.Threshold.Value})
	}
	if m.Regression != nil {
		out = append(out,
			Metric{"r_squared", m.Regression.RSquared},
			Metric{"rmse", m.Regression.RMSE},
			Metric{"mae", m.Regression.MAE},
			Metric{"bias", m.Regression.Bias},
			Metric{"median_ae", m.Regression.MedianAE},
			Metric{"winner_accuracy", m.Regression.WinnerAccuracy},
			Metric{"interval_coverage", m.Regression.IntervalCoverage},
			Metric{"interval_width", m.Regression.IntervalWidth},
		)
	}
	out = append(out, Metric{"terms", Float(len(m.Selected))})
	return out
}

// Model finds a model report by kind and feature set
func (r *Report) Model(kind, featureSet string) (*ModelReport, bool) {
	for i := range r.Models {
		if r.Models[i].Kind == kind && r.Models[i].FeatureSet == featureSet {
			return &r.Models[i], true
		}
	}
	return nil, false
}

// Summary is the list view of a stored run
type Summary struct {
	ID          core.RunID `json:"id" db:"id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	Source      string     `json:"source" db:"source"`
	TrainGames  int        `json:"train_games" db:"train_games"`
	TestGames   int        `json:"test_games" db:"test_games"`
	Criterion   string     `json:"criterion" db:"criterion"`
	Fingerprint string     `json:"fingerprint" db:"fingerprint"`
}

// MetricPoint is one stored run's value of a model metric
type MetricPoint struct {
	RunID     core.RunID `json:"run_id"`
	CreatedAt time.Time  `json:"created_at"`
	Value     Float      `json:"value"`
}
