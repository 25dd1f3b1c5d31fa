package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"bracketlab/domain/game"
)

// SeasonGeneratorConfig configures the synthetic season generator
type SeasonGeneratorConfig struct {
	Teams         int     `json:"teams"`
	Seasons       int     `json:"seasons"`
	GamesPerTeam  int     `json:"games_per_team"`
	FirstSeason   int     `json:"first_season"`
	HomeAdvantage float64 `json:"home_advantage"`
	Noise         float64 `json:"noise"`
	MissingRate   float64 `json:"missing_rate"`
	Seed          int64   `json:"seed"`
}

// DefaultSeasonConfig returns a two-season league of 40 teams
func DefaultSeasonConfig() SeasonGeneratorConfig {
	return SeasonGeneratorConfig{
		Teams:         40,
		Seasons:       2,
		GamesPerTeam:  20,
		FirstSeason:   2023,
		HomeAdvantage: 3.5,
		Noise:         10,
		Seed:          42,
	}
}

// Feature columns written by the generator. The rank and sos columns are
// opponent-strength ranking metrics.
var GeneratedFeatures = []string{
	"home_adj_off", "home_adj_def", "home_tempo",
	"away_adj_off", "away_adj_def", "away_tempo",
	"home_rank", "away_rank", "home_sos", "away_sos",
	"travel_miles",
}

type team struct {
	name    string
	offense float64
	defense float64
	tempo   float64
	rank    int
	sos     float64
}

// SeasonGenerator produces plausible regular-season games in which stronger teams
// win more often and the home side has an edge
type SeasonGenerator struct {
	config SeasonGeneratorConfig
	rng    *rand.Rand
}

// NewSeasonGenerator creates a generator; the same config always yields the same games
func NewSeasonGenerator(config SeasonGeneratorConfig) *SeasonGenerator {
	if config.Teams < 2 {
		config.Teams = 2
	}
	if config.Teams%2 == 1 {
		config.Teams++
	}
	if config.Seasons < 1 {
		config.Seasons = 1
	}
	if config.GamesPerTeam < 1 {
		config.GamesPerTeam = 1
	}
	return &SeasonGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the dataset. With a MissingRate, some feature values are NaN and
// are written as blank cells.
func (g *SeasonGenerator) Generate() *game.Dataset {
	ds := &game.Dataset{
		Source:       fmt.Sprintf("synthetic(seed=%d)", g.config.Seed),
		FeatureNames: append([]string(nil), GeneratedFeatures...),
	}
	for s := 0; s < g.config.Seasons; s++ {
		season := g.config.FirstSeason + s
		teams := g.teams()
		ds.Games = append(ds.Games, g.season(season, teams)...)
	}
	ds.RowsRead = len(ds.Games)
	game.SortChronologically(ds.Games)
	return ds
}

// teams draws fresh team ratings; rank 1 is the strongest team
func (g *SeasonGenerator) teams() []*team {
	out := make([]*team, g.config.Teams)
	for i := range out {
		out[i] = &team{
			name:    fmt.Sprintf("Team %02d", i+1),
			offense: 105 + g.rng.NormFloat64()*5,
			defense: 100 + g.rng.NormFloat64()*5,
			tempo:   68 + g.rng.NormFloat64()*3,
		}
	}
	byStrength := append([]*team(nil), out...)
	sort.SliceStable(byStrength, func(i, j int) bool {
		return byStrength[i].strength() > byStrength[j].strength()
	})
	for i, t := range byStrength {
		t.rank = i + 1
		// schedule strength correlates loosely with conference quality
		t.sos = 0.3*t.strength() + g.rng.NormFloat64()*2
	}
	return out
}

func (t *team) strength() float64 { return t.offense - t.defense }

// season plays GamesPerTeam rounds of random pairings between early November and
// early March
func (g *SeasonGenerator) season(season int, teams []*team) []game.Game {
	start := time.Date(season-1, time.November, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(season, time.March, 8, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	rounds := g.config.GamesPerTeam
	spacing := days / rounds
	if spacing < 1 {
		spacing = 1
	}

	var games []game.Game
	for r := 0; r < rounds; r++ {
		date := start.AddDate(0, 0, r*spacing)
		order := g.rng.Perm(len(teams))
		for k := 0; k+1 < len(order); k += 2 {
			home, away := teams[order[k]], teams[order[k+1]]
			games = append(games, g.play(season, date, home, away))
		}
	}
	return games
}

func (g *SeasonGenerator) play(season int, date time.Time, home, away *team) game.Game {
	tempo := (home.tempo + away.tempo) / 2
	homeExp := tempo*(home.offense+away.defense)/200 + g.config.HomeAdvantage/2
	awayExp := tempo*(away.offense+home.defense)/200 - g.config.HomeAdvantage/2

	sd := g.config.Noise / math.Sqrt2
	homeScore := math.Round(homeExp + g.rng.NormFloat64()*sd)
	awayScore := math.Round(awayExp + g.rng.NormFloat64()*sd)
	for homeScore == awayScore {
		// overtime
		homeScore += float64(g.rng.Intn(12))
		awayScore += float64(g.rng.Intn(12))
	}

	observe := func(v, sd float64) float64 {
		if g.config.MissingRate > 0 && g.rng.Float64() < g.config.MissingRate {
			return math.NaN()
		}
		return math.Round((v+g.rng.NormFloat64()*sd)*10) / 10
	}
	features := map[string]float64{
		"home_adj_off": observe(home.offense, 1),
		"home_adj_def": observe(home.defense, 1),
		"home_tempo":   observe(home.tempo, 0.5),
		"away_adj_off": observe(away.offense, 1),
		"away_adj_def": observe(away.defense, 1),
		"away_tempo":   observe(away.tempo, 0.5),
		"home_rank":    float64(home.rank),
		"away_rank":    float64(away.rank),
		"home_sos":     observe(home.sos, 0.5),
		"away_sos":     observe(away.sos, 0.5),
		"travel_miles": math.Round(50 + g.rng.Float64()*1200),
	}

	return game.Game{
		Date:      date,
		Season:    season,
		HomeTeam:  home.name,
		AwayTeam:  away.name,
		HomeScore: homeScore,
		AwayScore: awayScore,
		Features:  features,
	}
}

// WithTotalGames sets GamesPerTeam so that the league plays at least n games in
// total. Generate may return slightly more; callers trim.
func (c SeasonGeneratorConfig) WithTotalGames(n int) SeasonGeneratorConfig {
	teams := c.Teams
	if teams < 2 {
		teams = 2
	}
	if teams%2 == 1 {
		teams++
	}
	seasons := c.Seasons
	if seasons < 1 {
		seasons = 1
	}
	perRound := teams / 2 * seasons
	c.GamesPerTeam = (n + perRound - 1) / perRound
	if c.GamesPerTeam < 1 {
		c.GamesPerTeam = 1
	}
	return c
}
