// Package session owns the visitor session lifecycle: visit detection,
// continuity, archival, and persistence. No other component writes
// session state.
package session

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/internal/store"
)

// DefaultTimeout is the inactivity gap after which the next message opens
// a new visit. Policy constant, overridable via config.
const DefaultTimeout = 30 * time.Minute

// Manager tracks visits per visitor. It never deletes a session row; a
// superseded session is archived by status.
type Manager struct {
	store   store.Store
	timeout time.Duration
	now     func() time.Time
}

// NewManager creates a Manager with the given inactivity timeout.
func NewManager(st store.Store, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{store: st, timeout: timeout, now: func() time.Time { return time.Now().UTC() }}
}

// GetOrCreate returns the active session for a visitor, or creates one.
//
// A prior session within the timeout window is continued as-is; the caller
// appends the new message and re-saves. A prior session beyond the window
// is archived and a fresh session starts the next visit: prior facts are
// intentionally NOT carried over. Visit numbers come from the count of
// archived sessions, not from wall-clock heuristics.
func (m *Manager) GetOrCreate(ctx context.Context, visitorID, sessionID, userID string) (*model.Session, bool, error) {
	recent, err := m.store.RecentSession(ctx, visitorID, userID)
	if err != nil {
		return nil, false, eris.Wrap(err, "session: find recent")
	}

	now := m.now()

	if recent == nil {
		sess := model.NewSession(visitorID, userID, sessionID, 1, now)
		if err := m.store.UpsertSession(ctx, sess); err != nil {
			return nil, false, eris.Wrap(err, "session: create first")
		}
		zap.L().Info("first visit, session created",
			zap.String("visitor_id", visitorID),
			zap.String("session_id", sessionID),
		)
		return sess, true, nil
	}

	gap := now.Sub(recent.LastMessageTime)
	if gap <= m.timeout {
		zap.L().Debug("continuing session",
			zap.String("visitor_id", visitorID),
			zap.Duration("gap", gap),
		)
		return recent, false, nil
	}

	// Inactivity gap exceeded: archive the stale session and open a new
	// visit with an empty fact set.
	if err := m.store.SetSessionStatus(ctx, recent.VisitorID, recent.SessionID, model.SessionExpired); err != nil {
		return nil, false, eris.Wrap(err, "session: archive stale")
	}

	archived, err := m.store.CountSessions(ctx, visitorID, "", model.SessionExpired, model.SessionCompleted)
	if err != nil {
		return nil, false, eris.Wrap(err, "session: count archived")
	}

	sess := model.NewSession(visitorID, userID, sessionID, archived+1, now)
	if err := m.store.UpsertSession(ctx, sess); err != nil {
		return nil, false, eris.Wrap(err, "session: create visit")
	}

	zap.L().Info("new visit detected",
		zap.String("visitor_id", visitorID),
		zap.Duration("gap", gap),
		zap.Int("visit_number", sess.VisitNumber),
	)
	return sess, true, nil
}

// Update upserts the session, refreshing its timestamps. A storage error
// is reported as a false return rather than an error: a missed save must
// not abort an in-flight conversational turn.
func (m *Manager) Update(ctx context.Context, sess *model.Session) bool {
	now := m.now()
	sess.LastUpdated = now
	sess.LastMessageTime = now

	if err := m.store.UpsertSession(ctx, sess); err != nil {
		zap.L().Error("session update failed",
			zap.String("visitor_id", sess.VisitorID),
			zap.String("session_id", sess.SessionID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Get fetches a session by its exact key.
func (m *Manager) Get(ctx context.Context, visitorID, sessionID string) (*model.Session, error) {
	return m.store.GetSession(ctx, visitorID, sessionID)
}

// VisitCount returns the total session-row count for a visitor across all
// statuses, used for the engagement bonus at scoring time.
func (m *Manager) VisitCount(ctx context.Context, visitorID, userID string) (int, error) {
	count, err := m.store.CountSessions(ctx, visitorID, userID)
	if err != nil {
		return 0, eris.Wrap(err, "session: visit count")
	}
	return count, nil
}

// MarkCompleted archives a session as converted.
func (m *Manager) MarkCompleted(ctx context.Context, visitorID, sessionID string) error {
	if err := m.store.SetSessionStatus(ctx, visitorID, sessionID, model.SessionCompleted); err != nil {
		return eris.Wrap(err, "session: mark completed")
	}
	return nil
}
