package scraper

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
)

// scriptFetcher returns its bodies in order, repeating the last one.
type scriptFetcher struct {
	bodies []string
	urls   []string
}

func (f *scriptFetcher) Get(_ context.Context, url string) (*Page, error) {
	f.urls = append(f.urls, url)
	if len(f.bodies) == 0 {
		return &Page{StatusCode: 200}, nil
	}
	body := f.bodies[0]
	if len(f.bodies) > 1 {
		f.bodies = f.bodies[1:]
	}
	return &Page{Body: body, StatusCode: 200}, nil
}

type fakeSolver struct {
	code  string
	calls int
}

func (s *fakeSolver) Solve(context.Context, []byte) (string, error) {
	s.calls++
	return s.code, nil
}

func noDelay(context.Context) error { return nil }

func countingDelay(n *int) Sleeper {
	return func(context.Context) error {
		*n++
		return nil
	}
}

const challengePage = `<form><input name="captchaid" value="ch-1"/><img src="/captcha.png"/></form>`

func newTestRunner(f Fetcher, s Solver) *Runner {
	return NewRunner(f, s, noDelay, zap.NewNop())
}

func TestRun_NoResultsIsSuccessfulEmptyRun(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"<html>Данных по запросу не обнаружено</html>"}}
	r := newTestRunner(fetch, &fakeSolver{code: "123"})

	env := r.Run(context.Background(), NewRegionalAdapter("oblsud--kln"), Query{SubType: "Первая инстанция"})
	assert.True(t, env.Succeeded)
	assert.Empty(t, env.Rows)
	assert.Empty(t, string(env.ErrorKind))
}

func TestRun_CaptchaLoopStopsAtFiveAttempts(t *testing.T) {
	captcha := "<html>Неверно указан проверочный код с картинки</html>"
	bodies := []string{captcha}
	for i := 0; i < MaxCaptchaAttempts; i++ {
		// Each attempt fetches the challenge page, the image and the
		// resubmitted search, which here comes back as the gate again.
		bodies = append(bodies, challengePage, "imgbytes", captcha)
	}
	fetch := &scriptFetcher{bodies: bodies}
	solver := &fakeSolver{code: "wrong"}
	r := newTestRunner(fetch, solver)

	env := r.Run(context.Background(), NewRegionalAdapter("oblsud--kln"), Query{SubType: "Первая инстанция"})
	assert.False(t, env.Succeeded)
	assert.Equal(t, KindCaptchaFailed, env.ErrorKind)
	assert.Equal(t, "Captcha not solved in 5 attempts", env.DebugMessage)
	assert.Equal(t, MaxCaptchaAttempts, solver.calls)
	assert.True(t, env.CaptchaEncountered)
	assert.False(t, env.CaptchaSolved)
}

func TestRun_CaptchaSolvedOnFirstAttempt(t *testing.T) {
	captcha := "<html>Неверно указан проверочный код с картинки</html>"
	results := "Всего по запросу найдено — 3. На странице записи с 1 по 20."
	fetch := &scriptFetcher{bodies: []string{captcha, challengePage, "imgbytes", results}}
	solver := &fakeSolver{code: "1234"}
	r := newTestRunner(fetch, solver)

	env := r.Run(context.Background(), NewRegionalAdapter("oblsud--kln"), Query{SubType: "Первая инстанция"})
	assert.True(t, env.Succeeded)
	assert.Equal(t, 1, solver.calls)
	assert.True(t, env.CaptchaEncountered)
	assert.True(t, env.CaptchaSolved)
}

func TestRun_ServerUnavailable(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"<html>Сервис временно недоступен</html>"}}
	r := newTestRunner(fetch, &fakeSolver{code: "123"})

	env := r.Run(context.Background(), NewRegionalAdapter("oblsud--kln"), Query{SubType: "Первая инстанция"})
	assert.False(t, env.Succeeded)
	assert.Equal(t, KindServerUnavailable, env.ErrorKind)
	assert.Equal(t, "Server is unavailable (200)", env.DebugMessage)
}

func TestRun_AccessBlocked(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"<html>Ваш запрос заблокирован по соображениям безопасности</html>"}}
	r := newTestRunner(fetch, &fakeSolver{code: "123"})

	env := r.Run(context.Background(), NewRegionalAdapter("oblsud--kln"), Query{SubType: "Первая инстанция"})
	assert.Equal(t, KindAccessBlocked, env.ErrorKind)
	assert.Equal(t, "Access to server is blocked (200)", env.DebugMessage)
}

func TestRun_UnknownPage(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"<html>что-то странное</html>"}}
	r := newTestRunner(fetch, &fakeSolver{code: "123"})

	env := r.Run(context.Background(), NewRegionalAdapter("oblsud--kln"), Query{SubType: "Первая инстанция"})
	assert.Equal(t, KindUnknownPage, env.ErrorKind)
	assert.Contains(t, env.DebugMessage, "An unknown page was encountered (200)")
}

// pagedAdapter fakes a captcha-free site with a fixed page count; each
// parsed page yields one row carrying the page body.
type pagedAdapter struct {
	pages    int
	failBody string
}

func (a *pagedAdapter) Code() string                  { return "test-court" }
func (a *pagedAdapter) SearchURL(Query) (string, error) { return "https://test/search", nil }
func (a *pagedAdapter) ResultStats(string) (ResultStats, bool) {
	return ResultStats{Pages: a.pages}, true
}
func (a *pagedAdapter) PageURL(_ Query, _ ResultStats, n int) (string, error) {
	return fmt.Sprintf("https://test/page/%d", n), nil
}
func (a *pagedAdapter) ParseResults(_ context.Context, _ Env, _ Query, body string) ([]model.CaseRow, []string, error) {
	if body == a.failBody {
		return nil, nil, eris.New("parse failed")
	}
	return []model.CaseRow{{CourtCode: "test-court", CaseNumber: body}}, nil, nil
}

func TestRun_SleepsBeforeEveryAdditionalPageFetch(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"p1", "p2", "p3"}}
	delays := 0
	r := NewRunner(fetch, &fakeSolver{code: "123"}, countingDelay(&delays), zap.NewNop())

	env := r.Run(context.Background(), &pagedAdapter{pages: 3}, Query{})
	require.True(t, env.Succeeded)
	require.Len(t, env.Rows, 3)
	assert.Equal(t, "p1", env.Rows[0].CaseNumber)
	assert.Equal(t, "p3", env.Rows[2].CaseNumber)
	// Page 1 reuses the search response; pages 2 and 3 each wait first.
	assert.Equal(t, 2, delays)
	assert.Len(t, fetch.urls, 3)
}

func TestRun_PartialFailureRetainsEarlierRows(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"p1", "boom"}}
	r := newTestRunner(fetch, &fakeSolver{code: "123"})

	env := r.Run(context.Background(), &pagedAdapter{pages: 2, failBody: "boom"}, Query{})
	assert.False(t, env.Succeeded)
	assert.Equal(t, KindUnknownError, env.ErrorKind)
	require.Len(t, env.Rows, 1)
	assert.Equal(t, "p1", env.Rows[0].CaseNumber)
}

func TestRun_CollectsVisitedURLs(t *testing.T) {
	fetch := &scriptFetcher{bodies: []string{"p1", "p2"}}
	r := newTestRunner(fetch, &fakeSolver{code: "123"})

	env := r.Run(context.Background(), &pagedAdapter{pages: 2}, Query{})
	require.True(t, env.Succeeded)
	assert.ElementsMatch(t, []string{"https://test/search", "https://test/page/2"}, env.URLs)
}
