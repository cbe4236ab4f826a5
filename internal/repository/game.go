package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

var ErrGameNotFound = errors.New("game not found")

type GameRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewGameRepository(queries *db.Queries, logger zerolog.Logger) *GameRepository {
	return &GameRepository{
		queries: queries,
		logger:  logger,
	}
}

func (r *GameRepository) List(ctx context.Context) ([]domain.Game, error) {
	games, err := r.queries.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	result := make([]domain.Game, len(games))
	for i, g := range games {
		result[i] = toGame(g)
	}
	return result, nil
}

func (r *GameRepository) Get(ctx context.Context, gameID string) (*domain.Game, error) {
	g, err := r.queries.GetGame(ctx, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}
	game := toGame(g)
	return &game, nil
}

func toGame(g db.Game) domain.Game {
	return domain.Game{
		GameID:   g.GameID,
		Name:     g.GameName,
		Platform: g.Platform,
		Genre:    g.Genre,
	}
}
