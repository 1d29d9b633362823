package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
	"github.com/openjustice/courtwatch/internal/store"
)

// fakeStore overrides the read paths the handlers exercise; everything else
// panics through the embedded nil interface.
type fakeStore struct {
	store.Store

	regions  []model.Region
	courts   map[int64]*model.Court
	cases    []model.Case
	caseByID map[int64]*model.Case
	sessions []model.ScrapeSession
	sessByID map[int64]*model.ScrapeSession
	logs     []model.ScrapeLog

	gotCaseFilter store.CaseFilter
	gotLogFilter  store.LogFilter
	gotPage       store.Page
	pingErr       error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListRegions(_ context.Context, _ store.RegionFilter, p store.Page) ([]model.Region, int, error) {
	f.gotPage = p
	return f.regions, len(f.regions), nil
}

func (f *fakeStore) GetCourt(_ context.Context, id int64) (*model.Court, error) {
	return f.courts[id], nil
}

func (f *fakeStore) ListCases(_ context.Context, filter store.CaseFilter, p store.Page) ([]model.Case, int, error) {
	f.gotCaseFilter = filter
	f.gotPage = p
	return f.cases, len(f.cases), nil
}

func (f *fakeStore) GetCase(_ context.Context, id int64) (*model.Case, error) {
	return f.caseByID[id], nil
}

func (f *fakeStore) ListSessions(_ context.Context, p store.Page) ([]model.ScrapeSession, int, error) {
	f.gotPage = p
	return f.sessions, len(f.sessions), nil
}

func (f *fakeStore) GetSession(_ context.Context, id int64) (*model.ScrapeSession, error) {
	return f.sessByID[id], nil
}

func (f *fakeStore) ListLogs(_ context.Context, filter store.LogFilter, p store.Page) ([]model.ScrapeLog, int, error) {
	f.gotLogFilter = filter
	return f.logs, len(f.logs), nil
}

func get(t *testing.T, st *fakeStore, url string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	srv := NewServer(":0", st, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", url, nil))

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func items(t *testing.T, body map[string]any) []any {
	t.Helper()
	raw, ok := body["items"]
	require.True(t, ok, "missing items")
	list, ok := raw.([]any)
	require.True(t, ok, "items is not a list")
	return list
}

func TestHealth(t *testing.T) {
	rec, body := get(t, &fakeStore{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = get(t, &fakeStore{pingErr: eris.New("down")}, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRegions_EmptyListIsArrayNotNull(t *testing.T) {
	rec, body := get(t, &fakeStore{}, "/api/regions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, items(t, body))
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	pg := body["pagination"].(map[string]any)
	assert.Equal(t, float64(0), pg["totalItems"])
	assert.Equal(t, float64(50), pg["itemsPerPage"])
	assert.Nil(t, pg["startCursor"])
	assert.Nil(t, pg["endCursor"])
}

func TestListCases_ParsesFiltersAndPagination(t *testing.T) {
	st := &fakeStore{}
	rec, _ := get(t, st, "/api/cases?defendant=Иванов&article=207.3&court=5&region=2&from=2022-02-24&itemsPerPage=25&after=9")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"Иванов"}, st.gotCaseFilter.Defendants)
	assert.Equal(t, []string{"207.3"}, st.gotCaseFilter.Articles)
	assert.Equal(t, []int64{5}, st.gotCaseFilter.CourtIDs)
	assert.Equal(t, []int64{2}, st.gotCaseFilter.RegionIDs)
	require.NotNil(t, st.gotCaseFilter.EntryFrom)
	assert.Equal(t, "2022-02-24", st.gotCaseFilter.EntryFrom.Format(model.DateFormat))

	assert.Equal(t, 25, st.gotPage.PerPage)
	require.NotNil(t, st.gotPage.After)
	assert.Equal(t, int64(9), *st.gotPage.After)
}

func TestListCases_DatesOnTheWire(t *testing.T) {
	entry := time.Date(2022, 5, 10, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{cases: []model.Case{{
		ID: 1, CourtID: 7, CaseNumber: "1-123/2022", EntryDate: &entry,
	}}}

	rec, body := get(t, st, "/api/cases")
	assert.Equal(t, http.StatusOK, rec.Code)
	item := items(t, body)[0].(map[string]any)
	assert.Equal(t, "2022-05-10", item["entry_date"])
	assert.Nil(t, item["result_date"])
	assert.Nil(t, item["effective_date"])
}

func TestListSessions_CleanErrorTypeIsNull(t *testing.T) {
	st := &fakeStore{sessions: []model.ScrapeSession{
		{ID: 1, ErrorType: "None", IsSuccessful: true},
		{ID: 2, ErrorType: "captcha_failed"},
	}}

	rec, body := get(t, st, "/api/sessions")
	assert.Equal(t, http.StatusOK, rec.Code)
	list := items(t, body)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].(map[string]any)["error_type"])
	assert.Equal(t, "captcha_failed", list[1].(map[string]any)["error_type"])
}

func TestGetCase_NotFound(t *testing.T) {
	rec, body := get(t, &fakeStore{}, "/api/cases/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])
}

func TestGetCourt_IncludesRegion(t *testing.T) {
	st := &fakeStore{courts: map[int64]*model.Court{
		7: {ID: 7, RegionID: 3, Code: "oblsud--kln", Name: "Калининградский областной суд",
			Region: &model.Region{ID: 3, Name: "Калининградская область"}},
	}}

	rec, body := get(t, st, "/api/courts/7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "oblsud--kln", body["code"])
	region := body["region"].(map[string]any)
	assert.Equal(t, "Калининградская область", region["name"])
}

func TestSessionHistory_HydratesCases(t *testing.T) {
	st := &fakeStore{
		sessByID: map[int64]*model.ScrapeSession{4: {ID: 4}},
		caseByID: map[int64]*model.Case{8: {ID: 8, CaseNumber: "1-123/2022"}},
		logs: []model.ScrapeLog{
			{ID: 1, ScrapeSessionID: 4, CaseID: 8, Diff: `{"result":"Приговор"}`, IsUpdate: true},
		},
	}

	rec, body := get(t, st, "/api/sessions/4/history")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, st.gotLogFilter.SessionID)
	assert.Equal(t, int64(4), *st.gotLogFilter.SessionID)

	item := items(t, body)[0].(map[string]any)
	assert.Equal(t, map[string]any{"result": "Приговор"}, item["diff"])
	c := item["case"].(map[string]any)
	assert.Equal(t, "1-123/2022", c["case_number"])
}

func TestSessionHistory_MissingSessionIs404(t *testing.T) {
	rec, _ := get(t, &fakeStore{}, "/api/sessions/4/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaseHistory_OmitsCaseAndSanitizesDiff(t *testing.T) {
	st := &fakeStore{
		caseByID: map[int64]*model.Case{8: {ID: 8}},
		logs:     []model.ScrapeLog{{ID: 1, CaseID: 8, Diff: "not json"}},
	}

	rec, body := get(t, st, "/api/cases/8/history")
	assert.Equal(t, http.StatusOK, rec.Code)
	item := items(t, body)[0].(map[string]any)
	assert.Equal(t, map[string]any{}, item["diff"])
	_, hasCase := item["case"]
	assert.False(t, hasCase)
}
