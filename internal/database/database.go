package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/url"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const driverName = "sqlite3_gamestats"

// per-connection pragmas without a DSN equivalent, applied by the driver to
// every pooled connection
var connectPragmas = []struct {
	name  string
	value string
}{
	{"temp_store", "MEMORY"},
	{"mmap_size", "268435456"}, // memory map 256MB https://sqlite.org/mmap.html
}

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, p := range connectPragmas {
				if _, err := conn.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value), nil); err != nil {
					return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
				}
			}
			return nil
		},
	})
}

func dsn(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_cache_size", "-64000")
	// writers take the lock at BEGIN so concurrent batches queue on busy_timeout
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// New opens the store and brings its schema up to date, seeding the game
// catalogue on first use.
func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	log := logger.With().Str("component", "database").Logger()
	log.Info().Str("path", cfg.DBPath).Msg("connecting to database")

	db, err := sql.Open(driverName, dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logSettings(ctx, db, log)

	if err := migrate(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Msg("database ready")
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug().
			Int64("version", r.Source.Version).
			Dur("duration", r.Duration).
			Msg("migration applied")
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info().Int64("version", version).Int("applied", len(results)).Msg("migrations completed")
	return nil
}

func logSettings(ctx context.Context, db *sql.DB, logger zerolog.Logger) {
	event := logger.Debug()
	for _, name := range []string{"journal_mode", "foreign_keys", "synchronous", "busy_timeout"} {
		var value string
		if err := db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
			logger.Warn().Err(err).Str("pragma", name).Msg("failed to read pragma")
			continue
		}
		event = event.Str(name, value)
	}
	event.Msg("sqlite settings")
}
