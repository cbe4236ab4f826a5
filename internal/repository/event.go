package repository

import (
	"context"
	"fmt"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

type EventRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewEventRepository(queries *db.Queries, logger zerolog.Logger) *EventRepository {
	return &EventRepository{
		queries: queries,
		logger:  logger,
	}
}

// Insert is write-once: an event id that is already stored is left untouched
// and reported as not inserted.
func (r *EventRepository) Insert(ctx context.Context, qtx *db.Queries, event domain.GameEvent) (bool, error) {
	data := event.EventData
	if data == "" {
		data = "{}"
	}

	n, err := pick(r.queries, qtx).InsertGameEvent(ctx, db.InsertGameEventParams{
		EventID:        event.EventID,
		MatchID:        event.MatchID,
		GameID:         event.GameID,
		EventType:      event.EventType,
		EventTimestamp: event.EventTimestamp.UTC(),
		EventData:      data,
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", event.EventID, err)
	}
	return n > 0, nil
}

func (r *EventRepository) CountByMatch(ctx context.Context, matchID string) (int, error) {
	count, err := r.queries.CountGameEventsByMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
