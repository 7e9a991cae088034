package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// PostgresStore is a PostgreSQL-backed ProgressStore. Progress lives as a
// jsonb document per user with a version counter; the training log is a
// plain append-only table with a partial unique index on the idempotency
// key. Per-user serialization comes from SELECT ... FOR UPDATE on the
// progress row, so the state change and the record insert commit in one
// transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the engine's tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id    TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			version    INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS training_records (
			id               UUID PRIMARY KEY,
			user_id          TEXT NOT NULL,
			idempotency_key  TEXT NOT NULL DEFAULT '',
			day_number       INT NOT NULL DEFAULT 0,
			exercise_id      TEXT NOT NULL DEFAULT '',
			duration_minutes INT NOT NULL DEFAULT 0,
			rating           INT NOT NULL DEFAULT 0,
			notes            TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS training_records_idem_key
			ON training_records (user_id, idempotency_key)
			WHERE idempotency_key <> ''`,
		`CREATE INDEX IF NOT EXISTS training_records_user_created
			ON training_records (user_id, created_at)`,
	}
	for _, q := range ddl {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, userID string) (*UserProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var state []byte
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT state, version FROM user_progress WHERE user_id = $1`,
		userID,
	).Scan(&state, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewUserProgress(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get progress: %v", ErrStoreUnavailable, err)
	}

	return decodeProgress(userID, state, version)
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, userID, idempotencyKey string, apply func(p *UserProgress) (*TrainingRecord, error)) (*UserProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// Make sure a row exists so FOR UPDATE always has something to lock,
	// then take the per-user lock for the rest of the transaction.
	fresh := NewUserProgress(userID)
	seed, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_progress (user_id, state, version)
		 VALUES ($1, $2, 0)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, seed,
	); err != nil {
		return nil, fmt.Errorf("%w: seed progress: %v", ErrStoreUnavailable, err)
	}

	var state []byte
	var version int
	if err := tx.QueryRow(ctx,
		`SELECT state, version FROM user_progress WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&state, &version); err != nil {
		return nil, fmt.Errorf("%w: lock progress: %v", ErrStoreUnavailable, err)
	}

	if idempotencyKey != "" {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM training_records
				WHERE user_id = $1 AND idempotency_key = $2
			)`,
			userID, idempotencyKey,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("%w: idempotency check: %v", ErrStoreUnavailable, err)
		}
		if exists {
			return nil, ErrDuplicateSubmission
		}
	}

	work, err := decodeProgress(userID, state, version)
	if err != nil {
		return nil, err
	}

	rec, err := apply(work)
	if err != nil {
		return nil, err
	}

	work.Version = version + 1
	work.UpdatedAt = time.Now()
	encoded, err := json.Marshal(work)
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE user_progress
		 SET state = $2, version = $3, updated_at = $4
		 WHERE user_id = $1`,
		userID, encoded, work.Version, work.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("%w: save progress: %v", ErrStoreUnavailable, err)
	}

	if rec != nil {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		rec.UserID = userID
		if _, err := tx.Exec(ctx,
			`INSERT INTO training_records
				(id, user_id, idempotency_key, day_number, exercise_id, duration_minutes, rating, notes, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.ID, rec.UserID, rec.IdempotencyKey, rec.DayNumber, rec.ExerciseID,
			rec.DurationMinutes, rec.Rating, rec.Notes, rec.CreatedAt,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return nil, ErrDuplicateSubmission
			}
			return nil, fmt.Errorf("%w: append record: %v", ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}

	return work, nil
}

func (s *PostgresStore) FindRecord(ctx context.Context, userID, idempotencyKey string) (*TrainingRecord, bool, error) {
	if idempotencyKey == "" {
		return nil, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		recordColumns+` WHERE user_id = $1 AND idempotency_key = $2`,
		userID, idempotencyKey,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: find record: %v", ErrStoreUnavailable, err)
	}
	return rec, true, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, userID string) ([]TrainingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		recordColumns+` WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []TrainingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

const recordColumns = `SELECT id::text, user_id, idempotency_key, day_number, exercise_id, duration_minutes, rating, notes, created_at
	FROM training_records`

func scanRecord(row pgx.Row) (*TrainingRecord, error) {
	var rec TrainingRecord
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.IdempotencyKey,
		&rec.DayNumber,
		&rec.ExerciseID,
		&rec.DurationMinutes,
		&rec.Rating,
		&rec.Notes,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeProgress(userID string, state []byte, version int) (*UserProgress, error) {
	p := NewUserProgress(userID)
	if err := json.Unmarshal(state, p); err != nil {
		return nil, fmt.Errorf("decode progress for %s: %w", userID, err)
	}
	p.UserID = userID
	p.Version = version
	if p.CompletedByLevel == nil {
		p.CompletedByLevel = make(map[int]int)
	}
	if p.CompletedDays == nil {
		p.CompletedDays = make(map[int]bool)
	}
	if p.Achievements == nil {
		p.Achievements = make(map[string]AchievementState)
	}
	return p, nil
}
