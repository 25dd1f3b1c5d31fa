package run

import (
	"testing"
	"time"

	"bracketlab/domain/game"
)

func baseManifest() Manifest {
	return Manifest{
		DataFile:      "games.csv",
		DataDigest:    "abc123",
		FeatureSets:   []string{game.SetWithRankings, game.SetWithoutRankings},
		TrainFraction: 0.8,
		Criterion:     "aic",
		IntervalLevel: 0.95,
		ThresholdStep: 0.01,
		CodeVersion:   "1.0.0",
	}
}

func TestManifestFingerprint_Deterministic(t *testing.T) {
	m1 := baseManifest()
	m2 := baseManifest()
	m1.Seal()
	m2.Seal()

	if m1.Fingerprint != m2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", m1.Fingerprint, m2.Fingerprint)
	}
	if len(m1.Fingerprint) != 64 {
		t.Errorf("Expected a hex sha256, got %q", m1.Fingerprint)
	}
	if !m1.Verify() {
		t.Error("Sealed manifest should verify")
	}
}

func TestManifestFingerprint_Unique(t *testing.T) {
	base := baseManifest()
	base.Seal()

	mutations := map[string]func(*Manifest){
		"digest":    func(m *Manifest) { m.DataDigest = "other" },
		"fraction":  func(m *Manifest) { m.TrainFraction = 0.7 },
		"cutoff":    func(m *Manifest) { m.CutoffDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) },
		"criterion": func(m *Manifest) { m.Criterion = "bic" },
		"level":     func(m *Manifest) { m.IntervalLevel = 0.9 },
		"step":      func(m *Manifest) { m.ThresholdStep = 0.05 },
		"code":      func(m *Manifest) { m.CodeVersion = "1.0.1" },
		"bootstrap": func(m *Manifest) { m.Bootstrap = 200 },
		"stability": func(m *Manifest) { m.Stability = 10 },
		"seed":      func(m *Manifest) { m.Seed = 7 },
	}
	for name, mutate := range mutations {
		m := baseManifest()
		mutate(&m)
		m.Seal()
		if m.Fingerprint == base.Fingerprint {
			t.Errorf("Changing %s did not change the fingerprint", name)
		}
	}

	// the file name is informational only
	renamed := baseManifest()
	renamed.DataFile = "copy.csv"
	renamed.Seal()
	if renamed.Fingerprint != base.Fingerprint {
		t.Error("Data file path should not affect the fingerprint")
	}
}

func TestManifestVerify_DetectsTampering(t *testing.T) {
	m := baseManifest()
	m.Seal()
	m.Criterion = "bic"
	if m.Verify() {
		t.Error("Modified manifest should not verify")
	}
}

func TestManifestValidate(t *testing.T) {
	m := baseManifest()
	if err := m.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	m.CodeVersion = ""
	if err := m.Validate(); err == nil {
		t.Error("Expected missing code version to fail")
	}
}

func TestDatasetDigest(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	ds := &game.Dataset{
		FeatureNames: []string{"adj_em"},
		Games: []game.Game{
			{Date: day, HomeTeam: "Duke", AwayTeam: "UNC", HomeScore: 80, AwayScore: 75, Features: map[string]float64{"adj_em": 4.5}},
		},
	}
	d1 := DatasetDigest(ds)
	ds.Games[0].Features["adj_em"] = 4.6
	d2 := DatasetDigest(ds)
	if d1 == d2 {
		t.Error("Feature change should change the digest")
	}
}
