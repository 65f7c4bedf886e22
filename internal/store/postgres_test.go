package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func sessionJSON(t *testing.T, sess *model.Session) []byte {
	t.Helper()
	data, err := json.Marshal(sess)
	require.NoError(t, err)
	return data
}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS visitor_sessions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecentSessionNone(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT data FROM visitor_sessions WHERE visitor_id").
		WithArgs("v1").
		WillReturnError(pgx.ErrNoRows)

	sess, err := st.RecentSession(context.Background(), "v1", "")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecentSessionFound(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := model.NewSession("v1", "u1", "s1", 2, now)

	mock.ExpectQuery("SELECT data FROM visitor_sessions WHERE visitor_id").
		WithArgs("v1", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(sessionJSON(t, want)))

	got, err := st.RecentSession(context.Background(), "v1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 2, got.VisitNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSessionNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT data FROM visitor_sessions WHERE visitor_id").
		WithArgs("v1", "s1").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetSession(context.Background(), "v1", "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertSession(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := model.NewSession("v1", "u1", "s1", 1, now)

	mock.ExpectExec("INSERT INTO visitor_sessions").
		WithArgs("v1", "s1", "u1", "active", now, sessionJSON(t, sess)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.UpsertSession(context.Background(), sess))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetSessionStatus(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE visitor_sessions").
		WithArgs("expired", "v1", "s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.SetSessionStatus(context.Background(), "v1", "s1", model.SessionExpired))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetSessionStatusMissing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE visitor_sessions").
		WithArgs("expired", "v1", "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.SetSessionStatus(context.Background(), "v1", "nope", model.SessionExpired)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountSessionsWithStatuses(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM visitor_sessions`).
		WithArgs("v1", []string{"expired", "completed"}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := st.CountSessions(context.Background(), "v1", "", model.SessionExpired, model.SessionCompleted)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateLeadFillsDefaults(t *testing.T) {
	st, mock := newMockStore(t)
	lead := &model.Lead{
		VisitorID: "v1",
		Analysis:  model.NeutralAnalysis(),
		Score:     model.LeadScore{Score: 55, Category: model.CategoryWarm, Priority: model.PriorityMedium},
	}

	mock.ExpectExec("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "v1", 55, false, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.CreateLead(context.Background(), lead))
	assert.NotEmpty(t, lead.ID)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateLeadSync(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE leads SET crm_synced").
		WithArgs(true, pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpdateLeadSync(context.Background(), "lead-1", "00Q123", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTopLeadsSyncColumnsWin(t *testing.T) {
	st, mock := newMockStore(t)
	lead := model.Lead{
		ID:        "lead-1",
		VisitorID: "v1",
		Analysis:  model.NeutralAnalysis(),
		Score:     model.LeadScore{Score: 90, Category: model.CategoryHot, Priority: model.PriorityHigh},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(lead)
	require.NoError(t, err)

	crmID := "00Q123"
	mock.ExpectQuery("SELECT data, crm_synced, crm_lead_id FROM leads").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"data", "crm_synced", "crm_lead_id"}).
			AddRow(data, true, &crmID))

	leads, err := st.TopLeads(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, leads, 1)

	// The doc says unsynced; the columns are authoritative.
	assert.True(t, leads[0].CRMSynced)
	assert.Equal(t, "00Q123", leads[0].CRMLeadID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestLeadNone(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT data, crm_synced, crm_lead_id FROM leads WHERE visitor_id").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	lead, err := st.LatestLead(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}
