package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sales-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS visitor_sessions (
	visitor_id        TEXT NOT NULL,
	session_id        TEXT NOT NULL,
	user_id           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'active',
	last_message_time DATETIME NOT NULL,
	data              TEXT NOT NULL,
	PRIMARY KEY (visitor_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_visitor_recent ON visitor_sessions(visitor_id, last_message_time DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON visitor_sessions(status);

CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	visitor_id  TEXT NOT NULL,
	score       INTEGER NOT NULL,
	crm_synced  INTEGER NOT NULL DEFAULT 0,
	crm_lead_id TEXT,
	created_at  DATETIME NOT NULL,
	data        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_visitor ON leads(visitor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecentSession(ctx context.Context, visitorID, userID string) (*model.Session, error) {
	query := `SELECT data FROM visitor_sessions WHERE visitor_id = ?`
	args := []any{visitorID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY last_message_time DESC LIMIT 1`

	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: recent session for %s", visitorID)
	}
	return unmarshalSession([]byte(data))
}

func (s *SQLiteStore) GetSession(ctx context.Context, visitorID, sessionID string) (*model.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM visitor_sessions WHERE visitor_id = ? AND session_id = ?`,
		visitorID, sessionID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrSessionNotFound, "%s/%s", visitorID, sessionID)
		}
		return nil, eris.Wrapf(err, "sqlite: get session %s/%s", visitorID, sessionID)
	}
	return unmarshalSession([]byte(data))
}

func (s *SQLiteStore) UpsertSession(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visitor_sessions (visitor_id, session_id, user_id, status, last_message_time, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (visitor_id, session_id) DO UPDATE
		 SET user_id = excluded.user_id, status = excluded.status,
		     last_message_time = excluded.last_message_time, data = excluded.data`,
		sess.VisitorID, sess.SessionID, sess.UserID, string(sess.Status), sess.LastMessageTime.UTC(), string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert session %s/%s", sess.VisitorID, sess.SessionID)
}

func (s *SQLiteStore) SetSessionStatus(ctx context.Context, visitorID, sessionID string, status model.SessionStatus) error {
	sess, err := s.GetSession(ctx, visitorID, sessionID)
	if err != nil {
		return err
	}
	sess.Status = status
	return s.UpsertSession(ctx, sess)
}

func (s *SQLiteStore) CountSessions(ctx context.Context, visitorID, userID string, statuses ...model.SessionStatus) (int, error) {
	query := `SELECT count(*) FROM visitor_sessions WHERE visitor_id = ?`
	args := []any{visitorID}

	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count sessions for %s", visitorID)
	}
	return count, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, visitor_id, score, crm_synced, crm_lead_id, created_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.VisitorID, lead.Score.Score, lead.CRMSynced, nullable(lead.CRMLeadID), lead.CreatedAt, string(data),
	)
	return eris.Wrapf(err, "sqlite: insert lead for %s", lead.VisitorID)
}

func (s *SQLiteStore) UpdateLeadSync(ctx context.Context, leadID, crmLeadID string, synced bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_synced = ?, crm_lead_id = ? WHERE id = ?`,
		synced, nullable(crmLeadID), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead sync %s", leadID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("lead not found: %s", leadID)
	}
	return nil
}

func (s *SQLiteStore) TopLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data, crm_synced, crm_lead_id FROM leads ORDER BY score DESC, created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: top leads iterate")
}

func (s *SQLiteStore) LatestLead(ctx context.Context, visitorID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, crm_synced, crm_lead_id FROM leads WHERE visitor_id = ? ORDER BY created_at DESC LIMIT 1`,
		visitorID,
	)
	lead, err := scanSQLiteLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest lead for %s", visitorID)
	}
	return lead, nil
}

// sqlScanner covers both *sql.Row and *sql.Rows.
type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row sqlScanner) (*model.Lead, error) {
	var data string
	var synced bool
	var crmID sql.NullString

	if err := row.Scan(&data, &synced, &crmID); err != nil {
		return nil, err
	}
	var lead model.Lead
	if err := json.Unmarshal([]byte(data), &lead); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal lead")
	}
	lead.CRMSynced = synced
	if crmID.Valid {
		lead.CRMLeadID = crmID.String
	}
	return &lead, nil
}
