// Package store persists visitor sessions and finalized leads.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-intel/internal/model"
)

// ErrSessionNotFound marks a lookup for a session that does not exist.
// It is a client error, distinct from internal storage failures.
var ErrSessionNotFound = eris.New("session not found")

// Store defines the persistence interface for the qualification engine.
//
// Session rows are keyed by (visitor_id, session_id); they are archived by
// status, never deleted. Leads are append-only, one row per qualification
// event.
type Store interface {
	// Sessions
	RecentSession(ctx context.Context, visitorID, userID string) (*model.Session, error)
	GetSession(ctx context.Context, visitorID, sessionID string) (*model.Session, error)
	UpsertSession(ctx context.Context, s *model.Session) error
	SetSessionStatus(ctx context.Context, visitorID, sessionID string, status model.SessionStatus) error
	CountSessions(ctx context.Context, visitorID, userID string, statuses ...model.SessionStatus) (int, error)

	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLeadSync(ctx context.Context, leadID, crmLeadID string, synced bool) error
	TopLeads(ctx context.Context, limit int) ([]model.Lead, error)
	LatestLead(ctx context.Context, visitorID string) (*model.Lead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
