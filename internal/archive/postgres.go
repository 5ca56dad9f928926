package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/tafl-htp-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tafl_matches (
	id            BIGSERIAL PRIMARY KEY,
	session_uuid  TEXT NOT NULL UNIQUE,
	match_id      TEXT NOT NULL,
	username      TEXT NOT NULL,
	role          TEXT NOT NULL,
	preset        TEXT NOT NULL DEFAULT '',
	engine        TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	result_method TEXT NOT NULL,
	moves         JSONB NOT NULL DEFAULT '[]',
	fallbacks     INTEGER NOT NULL DEFAULT 0,
	record        TEXT NOT NULL DEFAULT '',
	transcript    TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	think_ms      BIGINT NOT NULL DEFAULT 0
)`

const upsertMatch = `INSERT INTO tafl_matches (
		session_uuid, match_id, username, role, preset, engine,
		outcome, result_method, moves, fallbacks, record, transcript,
		started_at, ended_at, duration_ms, think_ms
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11,$12,$13,$14,$15,$16
	) ON CONFLICT (session_uuid) DO UPDATE SET
		outcome=EXCLUDED.outcome,
		result_method=EXCLUDED.result_method,
		moves=EXCLUDED.moves,
		fallbacks=EXCLUDED.fallbacks,
		record=EXCLUDED.record,
		transcript=EXCLUDED.transcript,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms,
		think_ms=EXCLUDED.think_ms`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save upserts by session uuid, so a retried save overwrites the result columns.
func (r *PostgresRepository) Save(ctx context.Context, m *domain.Match) error {
	if r == nil || r.db == nil || m == nil {
		return nil
	}
	args, err := matchArgs(m)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertMatch, args...)
	return err
}

func matchArgs(m *domain.Match) ([]any, error) {
	moves := m.Moves
	if moves == nil {
		moves = []string{}
	}
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return nil, fmt.Errorf("marshal moves: %w", err)
	}
	duration := m.Duration.Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return []any{
		strings.TrimSpace(m.SessionUUID),
		m.MatchID,
		m.Username,
		m.Role,
		m.Preset,
		m.Engine,
		m.Outcome,
		strings.TrimSpace(m.Method),
		string(movesRaw),
		m.Fallbacks,
		BuildRecord(m),
		m.Transcript,
		m.StartedAt,
		m.EndedAt,
		duration,
		m.ThinkTime.Milliseconds(),
	}, nil
}
