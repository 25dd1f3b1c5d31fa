package run

import (
	"crypto/sha256"
	"fmt"
	"time"

	"bracketlab/domain/game"
)

// Manifest records every input that determines a run's output. Two runs with the
// same fingerprint produce the same report apart from IDs and timestamps.
type Manifest struct {
	DataFile       string    `json:"data_file"`
	DataDigest     string    `json:"data_digest"`
	FeatureSets    []string  `json:"feature_sets"`
	TrainFraction  float64   `json:"train_fraction"`
	CutoffDate     time.Time `json:"cutoff_date,omitempty"`
	Criterion      string    `json:"criterion"`
	IntervalLevel  float64   `json:"interval_level"`
	ThresholdStep  float64   `json:"threshold_step"`
	Bootstrap      int       `json:"bootstrap_resamples,omitempty"`
	BootstrapLevel float64   `json:"bootstrap_level,omitempty"`
	Stability      int       `json:"stability_subsamples,omitempty"`
	Seed           int64     `json:"seed"`
	CodeVersion    string    `json:"code_version"`
	Fingerprint    string    `json:"fingerprint"`
}

// Seal computes and stores the fingerprint
func (m *Manifest) Seal() {
	m.Fingerprint = m.computeFingerprint()
}

// Verify reports whether the stored fingerprint matches the manifest fields
func (m *Manifest) Verify() bool {
	return m.Fingerprint != "" && m.Fingerprint == m.computeFingerprint()
}

func (m *Manifest) computeFingerprint() string {
	cutoff := ""
	if !m.CutoffDate.IsZero() {
		cutoff = m.CutoffDate.Format("2006-01-02")
	}
	data := fmt.Sprintf("data:%s|sets:%v|train:%g|cutoff:%s|criterion:%s|level:%g|step:%g|boot:%d@%g|stab:%d|seed:%d|code:%s",
		m.DataDigest, m.FeatureSets, m.TrainFraction, cutoff, m.Criterion, m.IntervalLevel, m.ThresholdStep,
		m.Bootstrap, m.BootstrapLevel, m.Stability, m.Seed, m.CodeVersion)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Validate checks the manifest is complete
func (m *Manifest) Validate() error {
	if m.DataDigest == "" {
		return fmt.Errorf("manifest: data digest cannot be empty")
	}
	if m.Criterion == "" {
		return fmt.Errorf("manifest: criterion cannot be empty")
	}
	if m.CodeVersion == "" {
		return fmt.Errorf("manifest: code version cannot be empty")
	}
	return nil
}

// DatasetDigest hashes the games and feature values in order, independent of the
// file they were read from
func DatasetDigest(ds *game.Dataset) string {
	h := sha256.New()
	for _, g := range ds.Games {
		fmt.Fprintf(h, "%s|%s|%s|%g|%g", g.Date.Format("2006-01-02"), g.HomeTeam, g.AwayTeam, g.HomeScore, g.AwayScore)
		for _, name := range ds.FeatureNames {
			fmt.Fprintf(h, "|%g", g.Features[name])
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
