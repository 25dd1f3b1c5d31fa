package game

import (
	"fmt"
	"strings"

	"bracketlab/domain/core"
)

// Built-in feature set names
const (
	SetWithRankings    = "with_rankings"
	SetWithoutRankings = "without_rankings"
)

// FeatureSet is a named list of predictors
type FeatureSet struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// FeatureRules narrows the available columns into feature sets. Empty Include means
// every column; empty Ranking falls back to name markers.
type FeatureRules struct {
	Include []string
	Exclude []string
	Ranking []string
	Markers []string
}

// DefaultRankingMarkers are name tokens that identify opponent-strength ranking columns
var DefaultRankingMarkers = []string{"rank", "net", "rpi", "sos", "kenpom", "sagarin", "bpi", "elo", "poll", "seed"}

// IsRankingFeature reports whether a column name looks like a ranking metric
func IsRankingFeature(name string, markers []string) bool {
	if len(markers) == 0 {
		markers = DefaultRankingMarkers
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "rank") {
		return true
	}
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	for _, tok := range tokens {
		for _, m := range markers {
			if tok == strings.ToLower(m) {
				return true
			}
		}
	}
	return false
}

// BuildFeatureSets returns the with-rankings and without-rankings sets, in that order
func BuildFeatureSets(available []string, rules FeatureRules) ([]FeatureSet, error) {
	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}
	for _, group := range [][]string{rules.Include, rules.Exclude, rules.Ranking} {
		for _, name := range group {
			if !known[name] {
				return nil, fmt.Errorf("%w: %s", core.ErrUnknownFeature, name)
			}
		}
	}

	base := available
	if len(rules.Include) > 0 {
		base = rules.Include
	}
	excluded := toSet(rules.Exclude)
	var with []string
	for _, name := range base {
		if !excluded[name] {
			with = append(with, name)
		}
	}
	if len(with) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyFeatureSet, SetWithRankings)
	}

	ranking := toSet(rules.Ranking)
	var without []string
	for _, name := range with {
		isRanking := ranking[name]
		if len(rules.Ranking) == 0 {
			isRanking = IsRankingFeature(name, rules.Markers)
		}
		if !isRanking {
			without = append(without, name)
		}
	}
	if len(without) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyFeatureSet, SetWithoutRankings)
	}

	return []FeatureSet{
		{Name: SetWithRankings, Features: with},
		{Name: SetWithoutRankings, Features: without},
	}, nil
}

// RankingFeatures returns the members of with that are absent from without
func RankingFeatures(with, without FeatureSet) []string {
	kept := toSet(without.Features)
	var out []string
	for _, name := range with.Features {
		if !kept[name] {
			out = append(out, name)
		}
	}
	return out
}

func toSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
