package session

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/internal/store"
)

// memStore is an in-memory Store for lifecycle tests.
type memStore struct {
	sessions  map[string]*model.Session
	leads     []model.Lead
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*model.Session)}
}

func key(visitorID, sessionID string) string { return visitorID + "/" + sessionID }

func (m *memStore) RecentSession(_ context.Context, visitorID, userID string) (*model.Session, error) {
	var recent *model.Session
	for _, s := range m.sessions {
		if s.VisitorID != visitorID {
			continue
		}
		if userID != "" && s.UserID != userID {
			continue
		}
		if recent == nil || s.LastMessageTime.After(recent.LastMessageTime) {
			recent = s
		}
	}
	if recent == nil {
		return nil, nil
	}
	cp := *recent
	return &cp, nil
}

func (m *memStore) GetSession(_ context.Context, visitorID, sessionID string) (*model.Session, error) {
	s, ok := m.sessions[key(visitorID, sessionID)]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpsertSession(_ context.Context, s *model.Session) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *s
	m.sessions[key(s.VisitorID, s.SessionID)] = &cp
	return nil
}

func (m *memStore) SetSessionStatus(_ context.Context, visitorID, sessionID string, status model.SessionStatus) error {
	s, ok := m.sessions[key(visitorID, sessionID)]
	if !ok {
		return store.ErrSessionNotFound
	}
	s.Status = status
	return nil
}

func (m *memStore) CountSessions(_ context.Context, visitorID, userID string, statuses ...model.SessionStatus) (int, error) {
	count := 0
	for _, s := range m.sessions {
		if s.VisitorID != visitorID {
			continue
		}
		if userID != "" && s.UserID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if s.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		count++
	}
	return count, nil
}

func (m *memStore) CreateLead(_ context.Context, lead *model.Lead) error {
	m.leads = append(m.leads, *lead)
	return nil
}

func (m *memStore) UpdateLeadSync(_ context.Context, leadID, crmLeadID string, synced bool) error {
	for i := range m.leads {
		if m.leads[i].ID == leadID {
			m.leads[i].CRMLeadID = crmLeadID
			m.leads[i].CRMSynced = synced
			return nil
		}
	}
	return eris.Errorf("lead not found: %s", leadID)
}

func (m *memStore) TopLeads(_ context.Context, limit int) ([]model.Lead, error) {
	if limit > len(m.leads) {
		limit = len(m.leads)
	}
	return append([]model.Lead(nil), m.leads[:limit]...), nil
}

func (m *memStore) LatestLead(_ context.Context, visitorID string) (*model.Lead, error) {
	for i := len(m.leads) - 1; i >= 0; i-- {
		if m.leads[i].VisitorID == visitorID {
			cp := m.leads[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func managerAt(st store.Store, now time.Time) *Manager {
	m := NewManager(st, DefaultTimeout)
	m.now = func() time.Time { return now }
	return m
}

func TestGetOrCreateFirstVisit(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	sess, isNew, err := m.GetOrCreate(context.Background(), "v1", "s1", "u1")
	require.NoError(t, err)

	assert.True(t, isNew)
	assert.Equal(t, 1, sess.VisitNumber)
	assert.Equal(t, model.SessionActive, sess.Status)
	assert.Equal(t, model.StageGreeting, sess.ConversationStage)
	assert.Empty(t, sess.Messages)
}

func TestGetOrCreateContinuesWithinTimeout(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	first, _, err := m.GetOrCreate(context.Background(), "v1", "s1", "")
	require.NoError(t, err)
	first.Messages = append(first.Messages, "hello")
	require.True(t, m.Update(context.Background(), first))

	// 29 minutes later: same visit.
	m.now = func() time.Time { return now.Add(29 * time.Minute) }
	sess, isNew, err := m.GetOrCreate(context.Background(), "v1", "s2", "")
	require.NoError(t, err)

	assert.False(t, isNew)
	assert.Equal(t, "s1", sess.SessionID)
	assert.Equal(t, []string{"hello"}, sess.Messages)
}

func TestGetOrCreateArchivesAfterTimeout(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	first, _, err := m.GetOrCreate(context.Background(), "v1", "s1", "")
	require.NoError(t, err)
	first.Messages = append(first.Messages, "hello")
	first.ExtractedData.VisitorEmail = "jane@acme.com"
	require.True(t, m.Update(context.Background(), first))

	// 31 minutes later: new visit, old one archived, facts not carried over.
	m.now = func() time.Time { return now.Add(31 * time.Minute) }
	sess, isNew, err := m.GetOrCreate(context.Background(), "v1", "s2", "")
	require.NoError(t, err)

	assert.True(t, isNew)
	assert.Equal(t, "s2", sess.SessionID)
	assert.Equal(t, 2, sess.VisitNumber)
	assert.True(t, sess.ExtractedData.IsEmpty())
	assert.Empty(t, sess.Messages)

	old, err := st.GetSession(context.Background(), "v1", "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionExpired, old.Status)
}

func TestGetOrCreateVisitNumbersAccumulate(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	for i := 1; i <= 4; i++ {
		sess, _, err := m.GetOrCreate(context.Background(), "v1", sessionID(i), "")
		require.NoError(t, err)
		assert.Equal(t, i, sess.VisitNumber)

		// Push the clock past the timeout before the next visit.
		now = now.Add(time.Hour)
		current := now
		m.now = func() time.Time { return current }
	}
}

func sessionID(i int) string {
	return string(rune('a' + i))
}

func TestUpdateReturnsFalseOnStorageError(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	sess, _, err := m.GetOrCreate(context.Background(), "v1", "s1", "")
	require.NoError(t, err)

	st.upsertErr = eris.New("disk full")
	assert.False(t, m.Update(context.Background(), sess))
}

func TestUpdateRefreshesTimestamps(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	sess, _, err := m.GetOrCreate(context.Background(), "v1", "s1", "")
	require.NoError(t, err)

	later := now.Add(5 * time.Minute)
	m.now = func() time.Time { return later }
	require.True(t, m.Update(context.Background(), sess))

	assert.Equal(t, later, sess.LastMessageTime)
	assert.Equal(t, later, sess.LastUpdated)
}

func TestVisitCountSpansAllStatuses(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	_, _, err := m.GetOrCreate(context.Background(), "v1", "s1", "")
	require.NoError(t, err)
	m.now = func() time.Time { return now.Add(time.Hour) }
	_, _, err = m.GetOrCreate(context.Background(), "v1", "s2", "")
	require.NoError(t, err)

	count, err := m.VisitCount(context.Background(), "v1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMarkCompleted(t *testing.T) {
	st := newMemStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := managerAt(st, now)

	_, _, err := m.GetOrCreate(context.Background(), "v1", "s1", "")
	require.NoError(t, err)

	require.NoError(t, m.MarkCompleted(context.Background(), "v1", "s1"))

	sess, err := st.GetSession(context.Background(), "v1", "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, sess.Status)

	assert.Error(t, m.MarkCompleted(context.Background(), "v1", "nope"))
}
