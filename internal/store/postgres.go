package store

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
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-intel/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS visitor_sessions (
	visitor_id        TEXT NOT NULL,
	session_id        TEXT NOT NULL,
	user_id           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'active',
	last_message_time TIMESTAMPTZ NOT NULL,
	data              JSONB NOT NULL,
	PRIMARY KEY (visitor_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_visitor_recent ON visitor_sessions(visitor_id, last_message_time DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON visitor_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON visitor_sessions(status);

CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	visitor_id  TEXT NOT NULL,
	score       INTEGER NOT NULL,
	crm_synced  BOOLEAN NOT NULL DEFAULT false,
	crm_lead_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	data        JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_visitor ON leads(visitor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecentSession(ctx context.Context, visitorID, userID string) (*model.Session, error) {
	query := `SELECT data FROM visitor_sessions WHERE visitor_id = $1`
	args := []any{visitorID}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	query += ` ORDER BY last_message_time DESC LIMIT 1`

	var data []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: recent session for %s", visitorID)
	}
	return unmarshalSession(data)
}

func (s *PostgresStore) GetSession(ctx context.Context, visitorID, sessionID string) (*model.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM visitor_sessions WHERE visitor_id = $1 AND session_id = $2`,
		visitorID, sessionID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrSessionNotFound, "%s/%s", visitorID, sessionID)
		}
		return nil, eris.Wrapf(err, "postgres: get session %s/%s", visitorID, sessionID)
	}
	return unmarshalSession(data)
}

func (s *PostgresStore) UpsertSession(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO visitor_sessions (visitor_id, session_id, user_id, status, last_message_time, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (visitor_id, session_id) DO UPDATE
		 SET user_id = EXCLUDED.user_id, status = EXCLUDED.status,
		     last_message_time = EXCLUDED.last_message_time, data = EXCLUDED.data`,
		sess.VisitorID, sess.SessionID, sess.UserID, string(sess.Status), sess.LastMessageTime, data,
	)
	return eris.Wrapf(err, "postgres: upsert session %s/%s", sess.VisitorID, sess.SessionID)
}

func (s *PostgresStore) SetSessionStatus(ctx context.Context, visitorID, sessionID string, status model.SessionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE visitor_sessions
		 SET status = $1, data = jsonb_set(data, '{status}', to_jsonb($1::text))
		 WHERE visitor_id = $2 AND session_id = $3`,
		string(status), visitorID, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set session status %s/%s", visitorID, sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrSessionNotFound, "%s/%s", visitorID, sessionID)
	}
	return nil
}

func (s *PostgresStore) CountSessions(ctx context.Context, visitorID, userID string, statuses ...model.SessionStatus) (int, error) {
	query := `SELECT count(*) FROM visitor_sessions WHERE visitor_id = $1`
	args := []any{visitorID}
	argIdx := 2

	if userID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, userID)
		argIdx++
	}
	if len(statuses) > 0 {
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		args = append(args, names)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "postgres: count sessions for %s", visitorID)
	}
	return count, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, visitor_id, score, crm_synced, crm_lead_id, created_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lead.ID, lead.VisitorID, lead.Score.Score, lead.CRMSynced, nullable(lead.CRMLeadID), lead.CreatedAt, data,
	)
	return eris.Wrapf(err, "postgres: insert lead for %s", lead.VisitorID)
}

func (s *PostgresStore) UpdateLeadSync(ctx context.Context, leadID, crmLeadID string, synced bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET crm_synced = $1, crm_lead_id = $2 WHERE id = $3`,
		synced, nullable(crmLeadID), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead sync %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", leadID)
	}
	return nil
}

func (s *PostgresStore) TopLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT data, crm_synced, crm_lead_id FROM leads ORDER BY score DESC, created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: top leads iterate")
}

func (s *PostgresStore) LatestLead(ctx context.Context, visitorID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data, crm_synced, crm_lead_id FROM leads WHERE visitor_id = $1 ORDER BY created_at DESC LIMIT 1`,
		visitorID,
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest lead for %s", visitorID)
	}
	return lead, nil
}

func scanLead(row pgx.Row) (*model.Lead, error) {
	var data []byte
	var synced bool
	var crmID *string

	if err := row.Scan(&data, &synced, &crmID); err != nil {
		return nil, err
	}
	var lead model.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal lead")
	}
	// Sync bookkeeping columns are authoritative over the stored doc.
	lead.CRMSynced = synced
	if crmID != nil {
		lead.CRMLeadID = *crmID
	}
	return &lead, nil
}

func unmarshalSession(data []byte) (*model.Session, error) {
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session")
	}
	return &sess, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
