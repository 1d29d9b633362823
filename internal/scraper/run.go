package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
)

// MaxCaptchaAttempts bounds the captcha-retry loop. Exceeding it fails the
// run with KindCaptchaFailed.
const MaxCaptchaAttempts = 5

// Sleeper waits between network fetches. The production sleeper waits a
// uniform random interval inside a bounded window; the delay is part of the
// contract with the scraped sites, not an optimization.
type Sleeper func(ctx context.Context) error

// RandomDelay returns a Sleeper drawing uniformly from [minDelay, maxDelay].
func RandomDelay(minDelay, maxDelay time.Duration) Sleeper {
	return func(ctx context.Context) error {
		d := minDelay
		if maxDelay > minDelay {
			d += time.Duration(rand.Int63n(int64(maxDelay - minDelay + 1)))
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Envelope is the outcome of one scrape run. Rows may be non-empty even when
// Succeeded is false: pages gathered before a later failure are kept.
type Envelope struct {
	Succeeded          bool
	ErrorKind          ErrorKind
	DebugMessage       string
	URLs               []string
	CaptchaEncountered bool
	CaptchaSolved      bool
	Rows               []model.CaseRow
}

// Runner drives one adapter through the search, captcha and pagination state
// machine. All fetches are sequential by design: parallel requests to the
// same court site trip its anti-scraping defenses.
type Runner struct {
	fetch  Fetcher
	solver Solver
	sleep  Sleeper
	log    *zap.Logger
}

// NewRunner assembles a runner from its injected capabilities.
func NewRunner(fetch Fetcher, solver Solver, sleep Sleeper, log *zap.Logger) *Runner {
	return &Runner{fetch: fetch, solver: solver, sleep: sleep, log: log}
}

// Run executes one (court, article, subtype) unit of work.
func (r *Runner) Run(ctx context.Context, a Adapter, q Query) *Envelope {
	log := r.log.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("court_code", a.Code()),
		zap.String("article", q.Article),
	)
	env := &Envelope{}
	urls := map[string]struct{}{}
	defer func() { env.URLs = urlList(urls) }()

	searchURL, err := a.SearchURL(q)
	if err != nil {
		r.fail(env, KindUnknownError, err.Error())
		return env
	}
	urls[searchURL] = struct{}{}

	log.Info("make initial request")
	page, err := r.fetch.Get(ctx, searchURL)
	if err != nil {
		r.fail(env, KindUnknownError, err.Error())
		return env
	}
	body := page.Body

	if cp, ok := a.(CaptchaProtected); ok {
		body = r.captchaLoop(ctx, cp, q, env, urls, body, log)
		if env.ErrorKind != "" {
			return env
		}
	}

	stats, ok := a.ResultStats(body)
	if !ok {
		r.classifyFailure(env, body, page.StatusCode, log)
		return env
	}
	if env.CaptchaEncountered {
		env.CaptchaSolved = true
	}

	pages := stats.PageCount()
	if pages > 1 {
		log.Info("detected result pages", zap.Int("pages", pages))
	}
	adapterEnv := Env{Fetch: r.fetch, Sleep: r.sleep}
	for n := 1; n <= pages; n++ {
		pageBody := body
		if n > 1 {
			pageURL, err := a.PageURL(q, stats, n)
			if err != nil {
				r.fail(env, KindUnknownError, err.Error())
				return env
			}
			urls[pageURL] = struct{}{}
			if err := r.sleep(ctx); err != nil {
				r.fail(env, KindUnknownError, err.Error())
				return env
			}
			log.Info("request result page", zap.Int("page", n))
			p, err := r.fetch.Get(ctx, pageURL)
			if err != nil {
				r.fail(env, KindUnknownError, err.Error())
				return env
			}
			pageBody = p.Body
		}
		rows, visited, err := a.ParseResults(ctx, adapterEnv, q, pageBody)
		for _, u := range visited {
			urls[u] = struct{}{}
		}
		env.Rows = append(env.Rows, rows...)
		if err != nil {
			r.fail(env, KindUnknownError, err.Error())
			return env
		}
		log.Info("added results", zap.Int("count", len(rows)))
	}

	env.Succeeded = true
	return env
}

// captchaLoop resubmits the search with solved codes until the challenge
// clears or the attempt bound is hit. On exit with the challenge still up it
// marks the run failed with KindCaptchaFailed.
func (r *Runner) captchaLoop(ctx context.Context, cp CaptchaProtected, q Query, env *Envelope, urls map[string]struct{}, body string, log *zap.Logger) string {
	attempts := 0
	for cp.IsCaptchaChallenge(body) && attempts < MaxCaptchaAttempts {
		env.CaptchaEncountered = true
		attempts++

		solved, err := r.solveOnce(ctx, cp, q, urls)
		if err != nil {
			// A challenge page we could not process: clear the body so the
			// loop exits and classification sees an unknown page.
			log.Warn("could not retrieve or solve captcha", zap.Error(err))
			body = ""
			continue
		}
		body = solved
	}
	if cp.IsCaptchaChallenge(body) {
		log.Warn("captcha never accepted", zap.Int("attempts", attempts))
		env.CaptchaSolved = false
		r.fail(env, KindCaptchaFailed, fmt.Sprintf("Captcha not solved in %d attempts", attempts))
	}
	return body
}

func (r *Runner) solveOnce(ctx context.Context, cp CaptchaProtected, q Query, urls map[string]struct{}) (string, error) {
	if err := r.sleep(ctx); err != nil {
		return "", err
	}
	chPage, err := r.fetch.Get(ctx, cp.ChallengeURL())
	if err != nil {
		return "", err
	}
	ch, err := cp.ParseChallenge(chPage.Body)
	if err != nil {
		return "", err
	}
	if err := r.sleep(ctx); err != nil {
		return "", err
	}
	img, err := r.fetch.Get(ctx, ch.ImageURL)
	if err != nil {
		return "", err
	}
	code, err := r.solver.Solve(ctx, []byte(img.Body))
	if err != nil {
		return "", err
	}
	r.log.Info("solved captcha", zap.String("code", code))

	solvedURL, err := cp.SolvedURL(q, ch, code)
	if err != nil {
		return "", err
	}
	urls[solvedURL] = struct{}{}
	if err := r.sleep(ctx); err != nil {
		return "", err
	}
	page, err := r.fetch.Get(ctx, solvedURL)
	if err != nil {
		return "", err
	}
	return page.Body, nil
}

// classifyFailure handles a response that is neither a captcha challenge nor
// a recognized result page. A "no results" page is a successful empty run.
func (r *Runner) classifyFailure(env *Envelope, body string, status int, log *zap.Logger) {
	if containsNoResults(body) {
		log.Info("no results")
		env.Succeeded = true
		return
	}
	kind := classifyBody(body)
	switch kind {
	case KindServerUnavailable:
		r.fail(env, kind, fmt.Sprintf("Server is unavailable (%d)", status))
	case KindAccessBlocked:
		r.fail(env, kind, fmt.Sprintf("Access to server is blocked (%d)", status))
	default:
		r.fail(env, kind, fmt.Sprintf("An unknown page was encountered (%d): %s", status, truncate(body, 2000)))
	}
	log.Warn("scrape failed", zap.String("error_kind", string(kind)))
}

func (r *Runner) fail(env *Envelope, kind ErrorKind, msg string) {
	env.Succeeded = false
	env.ErrorKind = kind
	env.DebugMessage = msg
}

func containsNoResults(body string) bool {
	return strings.Contains(body, markerNoResults)
}

func urlList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
