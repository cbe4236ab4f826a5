package load

import (
	"context"
	"database/sql"
	"fmt"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/repository"

	"github.com/rs/zerolog"
)

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func track(inserted bool) outcome {
	if inserted {
		return outcomeInserted
	}
	return outcomeUpdated
}

// Loader writes transformed records in batches. Each batch is one transaction
// and each record runs under its own savepoint, so a constraint violation
// only discards that record.
type Loader struct {
	db        *sql.DB
	queries   *db.Queries
	matches   *repository.MatchRepository
	players   *repository.PlayerRepository
	stats     *repository.PlayerStatRepository
	events    *repository.EventRepository
	batchSize int
	logger    zerolog.Logger
}

func NewLoader(
	sqlDB *sql.DB,
	queries *db.Queries,
	matches *repository.MatchRepository,
	players *repository.PlayerRepository,
	stats *repository.PlayerStatRepository,
	events *repository.EventRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *Loader {
	batchSize := cfg.LoadBatchSize
	if batchSize <= 0 {
		batchSize = constants.DBBatchSize
	}
	return &Loader{
		db:        sqlDB,
		queries:   queries,
		matches:   matches,
		players:   players,
		stats:     stats,
		events:    events,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "load").Logger(),
	}
}

// LoadMatches upserts matches by match_id. A batchSize of zero or less uses
// the configured size.
func (l *Loader) LoadMatches(ctx context.Context, matches []domain.Match, batchSize int) domain.LoadResult {
	return load(ctx, l, "matches", matches, batchSize,
		func(m domain.Match) string { return m.MatchID },
		func(ctx context.Context, qtx *db.Queries, m domain.Match) (outcome, error) {
			inserted, err := l.matches.Upsert(ctx, qtx, m)
			return track(inserted), err
		})
}

// LoadPlayerStats upserts each stat's player row and then the stat itself,
// under the same savepoint.
func (l *Loader) LoadPlayerStats(ctx context.Context, stats []domain.PlayerStat, batchSize int) domain.LoadResult {
	return load(ctx, l, "player_stats", stats, batchSize,
		func(s domain.PlayerStat) string { return s.StatID },
		func(ctx context.Context, qtx *db.Queries, s domain.PlayerStat) (outcome, error) {
			if err := l.players.Upsert(ctx, qtx, s.Player()); err != nil {
				return 0, err
			}
			inserted, err := l.stats.Upsert(ctx, qtx, s)
			return track(inserted), err
		})
}

// LoadGameEvents inserts events once. Ids already stored count as skipped.
func (l *Loader) LoadGameEvents(ctx context.Context, events []domain.GameEvent, batchSize int) domain.LoadResult {
	return load(ctx, l, "game_events", events, batchSize,
		func(e domain.GameEvent) string { return e.EventID },
		func(ctx context.Context, qtx *db.Queries, e domain.GameEvent) (outcome, error) {
			inserted, err := l.events.Insert(ctx, qtx, e)
			if err != nil {
				return 0, err
			}
			if !inserted {
				return outcomeSkipped, nil
			}
			return outcomeInserted, nil
		})
}

type writeFunc[T any] func(ctx context.Context, qtx *db.Queries, item T) (outcome, error)

func load[T any](ctx context.Context, l *Loader, kind string, items []T, batchSize int, id func(T) string, write writeFunc[T]) domain.LoadResult {
	if batchSize <= 0 {
		batchSize = l.batchSize
	}

	var total domain.LoadResult
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		total.Add(loadBatch(ctx, l, kind, items[start:end], id, write))
	}

	l.logger.Info().
		Str("kind", kind).
		Int("records", len(items)).
		Int("inserted", total.Inserted).
		Int("updated", total.Updated).
		Int("skipped", total.Skipped).
		Int("errors", total.Errors).
		Msg("load finished")
	return total
}

func loadBatch[T any](ctx context.Context, l *Loader, kind string, batch []T, id func(T) string, write writeFunc[T]) domain.LoadResult {
	failed := domain.LoadResult{Errors: len(batch)}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		l.logger.Error().Err(err).Str("kind", kind).Int("batch", len(batch)).Msg("failed to begin transaction")
		return failed
	}
	defer tx.Rollback()

	qtx := l.queries.WithTx(tx)

	var result domain.LoadResult
	for i, item := range batch {
		savepoint := fmt.Sprintf("sp_%d", i)
		if err := qtx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			l.logger.Error().Err(err).Str("kind", kind).Msg("failed to open savepoint")
			return failed
		}

		o, err := write(ctx, qtx, item)
		if err != nil {
			result.Errors++
			l.logger.Warn().Err(err).Str("kind", kind).Str("id", id(item)).Msg("record rejected")
			if rbErr := qtx.Exec(ctx, "ROLLBACK TO "+savepoint); rbErr != nil {
				l.logger.Error().Err(rbErr).Str("kind", kind).Msg("failed to roll back savepoint")
				return failed
			}
		} else {
			switch o {
			case outcomeInserted:
				result.Inserted++
			case outcomeUpdated:
				result.Updated++
			case outcomeSkipped:
				result.Skipped++
			}
		}

		if err := qtx.Exec(ctx, "RELEASE "+savepoint); err != nil {
			l.logger.Error().Err(err).Str("kind", kind).Msg("failed to release savepoint")
			return failed
		}
	}

	if err := tx.Commit(); err != nil {
		l.logger.Error().Err(err).Str("kind", kind).Int("batch", len(batch)).Msg("failed to commit batch")
		return failed
	}
	return result
}
