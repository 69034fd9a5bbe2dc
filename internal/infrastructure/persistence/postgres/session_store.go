package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oocana-go/oocana/internal/domain/flow"
	apperrors "github.com/oocana-go/oocana/internal/pkg/errors"
)

// SessionRecord is one row of session history: inserted with status
// "running" when a session starts and updated with its terminal outcome
// when it finishes, so "what ran, and how did it end" can be answered
// without replaying the local file cache.
type SessionRecord struct {
	ID         flow.SessionId
	FlowPath   string
	Status     string // "running" | "completed" | "failed" | "cancelled"
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// SessionStore persists SessionRecords to Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore wraps an already-connected pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Start records a session beginning, before the scheduler's first dispatch.
func (s *SessionStore) Start(ctx context.Context, id flow.SessionId, flowPath string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, flow_path, status, started_at)
		VALUES ($1, $2, 'running', now())
		ON CONFLICT (id) DO NOTHING
	`, string(id), flowPath)
	if err != nil {
		return apperrors.Internal("recording session start", err)
	}
	return nil
}

// Finish records a session's terminal outcome.
func (s *SessionStore) Finish(ctx context.Context, id flow.SessionId, status string, runErr error) error {
	var errMsg string
	if runErr != nil {
		errMsg = runErr.Error()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = $2, error = $3, finished_at = now()
		WHERE id = $1
	`, string(id), status, errMsg)
	if err != nil {
		return apperrors.Internal("recording session finish", err)
	}
	return nil
}

// Get retrieves one session's history record.
func (s *SessionStore) Get(ctx context.Context, id flow.SessionId) (*SessionRecord, error) {
	var rec SessionRecord
	var idStr, errMsg string
	err := s.pool.QueryRow(ctx, `
		SELECT id, flow_path, status, COALESCE(error, ''), started_at, finished_at
		FROM sessions WHERE id = $1
	`, string(id)).Scan(&idStr, &rec.FlowPath, &rec.Status, &errMsg, &rec.StartedAt, &rec.FinishedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("session", string(id))
	}
	if err != nil {
		return nil, apperrors.Internal("loading session", err)
	}
	rec.ID = flow.SessionId(idStr)
	rec.Error = errMsg
	return &rec, nil
}

// RecentByFlow lists the most recent sessions for a flow path, newest
// first, bounded by limit.
func (s *SessionStore) RecentByFlow(ctx context.Context, flowPath string, limit int) ([]SessionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, flow_path, status, COALESCE(error, ''), started_at, finished_at
		FROM sessions WHERE flow_path = $1
		ORDER BY started_at DESC LIMIT $2
	`, flowPath, limit)
	if err != nil {
		return nil, apperrors.Internal("listing sessions", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var idStr, errMsg string
		if err := rows.Scan(&idStr, &rec.FlowPath, &rec.Status, &errMsg, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, apperrors.Internal("scanning session row", err)
		}
		rec.ID = flow.SessionId(idStr)
		rec.Error = errMsg
		out = append(out, rec)
	}
	return out, nil
}

// CacheMetaMirror records, for observability only, which blob a flow
// identity currently resolves to in the local file cache — the local
// cache_meta.json remains the source of truth run_from_node reads.
func (s *SessionStore) CacheMetaMirror(ctx context.Context, flowIdentity, blobUUID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_meta_mirror (flow_identity, blob_uuid, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (flow_identity) DO UPDATE SET blob_uuid = $2, updated_at = now()
	`, flowIdentity, blobUUID)
	if err != nil {
		return apperrors.Internal("mirroring cache meta", err)
	}
	return nil
}
