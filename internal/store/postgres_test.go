package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjustice/courtwatch/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, pool.ExpectationsWereMet())
		pool.Close()
	})
	return NewPostgresWithPool(pool), pool
}

func TestUpsertCourt_ReportsCreation(t *testing.T) {
	st, pool := newMockStore(t)
	court := model.Court{RegionID: 3, Name: "Калининградский областной суд", Code: "oblsud--kln"}

	pool.ExpectQuery(`INSERT INTO courts`).
		WithArgs(court.RegionID, court.Name, court.Code, false).
		WillReturnRows(pgxmock.NewRows([]string{"created"}).AddRow(true))
	created, err := st.UpsertCourt(context.Background(), court)
	require.NoError(t, err)
	assert.True(t, created)

	pool.ExpectQuery(`INSERT INTO courts`).
		WithArgs(court.RegionID, court.Name, court.Code, false).
		WillReturnRows(pgxmock.NewRows([]string{"created"}).AddRow(false))
	created, err = st.UpsertCourt(context.Background(), court)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGetCourtByCode_MissingIsNil(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectQuery(`SELECT .+ FROM courts`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	court, err := st.GetCourtByCode(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, court)
}

func TestInsertCase_DuplicateKey(t *testing.T) {
	st, pool := newMockStore(t)
	c := &model.Case{CourtID: 1, CaseNumber: "1-123/2022", DefendantName: "Иванов И.И.", Articles: "ст. 207.3 ч.2"}

	pool.ExpectQuery(`INSERT INTO cases`).
		WithArgs(c.CourtID, c.CaseNumber, c.DefendantName, c.Articles, "",
			"", "", "", (*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := st.InsertCase(context.Background(), c)
	assert.ErrorIs(t, err, ErrDuplicateCase)
}

func TestInsertCase_SetsID(t *testing.T) {
	st, pool := newMockStore(t)
	entry := time.Date(2022, 5, 10, 0, 0, 0, 0, time.UTC)
	c := &model.Case{
		CourtID: 1, CaseNumber: "1-123/2022", DefendantName: "Иванов И.И.",
		Articles: "ст. 207.3 ч.2", JudgeName: "Петрова А.А.",
		SubType: "Первая инстанция", URL: "https://oblsud--kln.sudrf.ru/card1",
		EntryDate: &entry,
	}

	pool.ExpectQuery(`INSERT INTO cases`).
		WithArgs(c.CourtID, c.CaseNumber, c.DefendantName, c.Articles, c.JudgeName,
			"", c.SubType, c.URL, c.EntryDate, (*time.Time)(nil), (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := st.InsertCase(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), c.ID)
}

func TestUpdateCaseFields_StableSetOrder(t *testing.T) {
	st, pool := newMockStore(t)

	// Columns bind in CaseFields order no matter the map iteration order.
	pool.ExpectExec(regexp.QuoteMeta(
		`UPDATE cases SET judge_name = $1, result = $2, updated_at = now() WHERE id = $3`)).
		WithArgs("Петрова А.А.", "Приговор", int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.UpdateCaseFields(context.Background(), 42, map[model.Field]any{
		model.FieldResult:    "Приговор",
		model.FieldJudgeName: "Петрова А.А.",
	})
	assert.NoError(t, err)
}

func TestUpdateCaseFields_EmptyMapIsNoop(t *testing.T) {
	st, _ := newMockStore(t)
	assert.NoError(t, st.UpdateCaseFields(context.Background(), 42, nil))
}

func TestUpdateCaseFields_MissingCase(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectExec(`UPDATE cases SET`).
		WithArgs("Приговор", int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateCaseFields(context.Background(), 99, map[model.Field]any{
		model.FieldResult: "Приговор",
	})
	assert.Error(t, err)
}

func TestDeleteStaleSessions_OnlyEmptyOnes(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectExec(regexp.QuoteMeta(`DELETE FROM scrape_sessions`)).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := st.DeleteStaleSessions(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestBatchNextIndex_LazyInit(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectQuery(`SELECT batch_next_index FROM scrape_state`).
		WillReturnError(pgx.ErrNoRows)
	pool.ExpectExec(`INSERT INTO scrape_state`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	idx, err := st.BatchNextIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestBatchNextIndex_Existing(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectQuery(`SELECT batch_next_index FROM scrape_state`).
		WillReturnRows(pgxmock.NewRows([]string{"batch_next_index"}).AddRow(4))

	idx, err := st.BatchNextIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestSetBatchNextIndex_InsertsWhenMissing(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectExec(`UPDATE scrape_state SET batch_next_index`).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectExec(`INSERT INTO scrape_state`).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, st.SetBatchNextIndex(context.Background(), 5))
}

func TestCourtsPage_SkipsAggregatorCourts(t *testing.T) {
	st, pool := newMockStore(t)
	now := time.Now()

	pool.ExpectQuery(regexp.QuoteMeta(`WHERE courts.code NOT LIKE '%.msk'`)).
		WithArgs(5, 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "region_id", "name", "code", "is_military", "created_at", "updated_at",
			"r_id", "r_name", "r_created_at", "r_updated_at",
		}).AddRow(
			int64(11), int64(3), "Калининградский областной суд", "oblsud--kln", false, now, now,
			int64(3), "Калининградская область", now, now,
		))

	courts, err := st.CourtsPage(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, courts, 1)
	assert.Equal(t, "oblsud--kln", courts[0].Code)
	require.NotNil(t, courts[0].Region)
	assert.Equal(t, "Калининградская область", courts[0].Region.Name)
}

func TestFinalizeSession_WritesCounters(t *testing.T) {
	st, pool := newMockStore(t)

	pool.ExpectExec(`UPDATE scrape_sessions`).
		WithArgs(2, 1, 4, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, st.FinalizeSession(context.Background(), 7, 2, 1, 4))
}
