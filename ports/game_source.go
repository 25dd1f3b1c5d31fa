package ports

import (
	"context"

	"bracketlab/domain/game"
)

// GameSource yields a chronologically ordered dataset of games
type GameSource interface {
	ReadGames(ctx context.Context) (*game.Dataset, error)
}
