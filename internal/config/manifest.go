package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"bracketlab/domain/game"
	"bracketlab/internal/errors"

	"gopkg.in/yaml.v3"
)

// FeatureManifest declares which columns feed the models and which of them are
// opponent-strength ranking metrics.
//
//	features: [adj_oe_diff, adj_de_diff, net_rank_diff]
//	exclude: [neutral_site]
//	ranking_features: [net_rank_diff]
type FeatureManifest struct {
	Features        []string `yaml:"features"`
	Exclude         []string `yaml:"exclude"`
	RankingFeatures []string `yaml:"ranking_features"`
	RankingMarkers  []string `yaml:"ranking_markers"`
}

// LoadManifest reads a YAML feature manifest. An empty path yields an empty manifest.
func LoadManifest(path string) (*FeatureManifest, error) {
	if path == "" {
		return &FeatureManifest{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read feature manifest: %w", err))
	}
	return ParseManifest(raw)
}

// ParseManifest decodes manifest YAML, rejecting unknown keys
func ParseManifest(raw []byte) (*FeatureManifest, error) {
	var m FeatureManifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse feature manifest: %w", err))
	}
	return &m, nil
}

// Rules converts the manifest into feature set rules
func (m *FeatureManifest) Rules() game.FeatureRules {
	return game.FeatureRules{
		Include: m.Features,
		Exclude: m.Exclude,
		Ranking: m.RankingFeatures,
		Markers: m.RankingMarkers,
	}
}
