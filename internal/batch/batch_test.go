package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
)

// rosterStore keeps the cursor and a fixed roster in memory.
type rosterStore struct {
	roster  []model.Court
	idx     int
	deleted int64
	gotRet  time.Duration
}

func (s *rosterStore) BatchNextIndex(context.Context) (int, error) { return s.idx, nil }

func (s *rosterStore) SetBatchNextIndex(_ context.Context, idx int) error {
	s.idx = idx
	return nil
}

func (s *rosterStore) CourtsPage(_ context.Context, offset, limit int) ([]model.Court, error) {
	if offset >= len(s.roster) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.roster) {
		end = len(s.roster)
	}
	return s.roster[offset:end], nil
}

func (s *rosterStore) DeleteStaleSessions(_ context.Context, retention time.Duration) (int64, error) {
	s.gotRet = retention
	return s.deleted, nil
}

type recordingQueue struct {
	courts []string
	metro  int
}

func (q *recordingQueue) EnqueueCourtScrape(_ context.Context, court model.Court) error {
	q.courts = append(q.courts, court.Code)
	return nil
}

func (q *recordingQueue) EnqueueMetroScrape(context.Context) error {
	q.metro++
	return nil
}

func roster(codes ...string) []model.Court {
	courts := make([]model.Court, len(codes))
	for i, code := range codes {
		courts[i] = model.Court{ID: int64(i + 1), Code: code}
	}
	return courts
}

func TestTick_ResetsCursorOnlyOnEmptyPage(t *testing.T) {
	st := &rosterStore{roster: roster("a", "b", "c", "d", "e", "f", "g")}
	q := &recordingQueue{}
	o := New(st, q, 5, zap.NewNop())
	ctx := context.Background()

	// First tick covers the aggregator plus the first roster page.
	require.NoError(t, o.Tick(ctx))
	assert.Equal(t, 1, q.metro)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, q.courts)
	assert.Equal(t, 1, st.idx)

	// Second tick picks up the roster tail. A partial page still advances
	// the cursor; only an empty one resets it.
	require.NoError(t, o.Tick(ctx))
	assert.Equal(t, 1, q.metro)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, q.courts)
	assert.Equal(t, 2, st.idx)

	// Past the end: nothing dispatched, cursor resets.
	require.NoError(t, o.Tick(ctx))
	assert.Equal(t, 1, q.metro)
	assert.Len(t, q.courts, 7)
	assert.Equal(t, 0, st.idx)

	// The roster starts over and the aggregator is re-dispatched.
	require.NoError(t, o.Tick(ctx))
	assert.Equal(t, 2, q.metro)
	assert.Equal(t, "a", q.courts[7])
}

func TestTick_EmptyRosterStillDispatchesAggregator(t *testing.T) {
	st := &rosterStore{}
	q := &recordingQueue{}
	o := New(st, q, 5, zap.NewNop())

	require.NoError(t, o.Tick(context.Background()))
	assert.Equal(t, 1, q.metro)
	assert.Empty(t, q.courts)
	assert.Equal(t, 0, st.idx)
}

func TestCleanSessions_PassesRetention(t *testing.T) {
	st := &rosterStore{deleted: 12}
	o := New(st, &recordingQueue{}, 5, zap.NewNop())

	require.NoError(t, o.CleanSessions(context.Background(), 7*24*time.Hour))
	assert.Equal(t, 7*24*time.Hour, st.gotRet)
}
