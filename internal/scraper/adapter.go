package scraper

import (
	"context"

	"github.com/openjustice/courtwatch/internal/model"
)

// MetroCode is the meta court code dispatching the metropolitan aggregator,
// which serves many courts from one host and sits outside the ordinary
// court roster.
const MetroCode = "mos-gorsud"

// Query describes one (article, case subtype, date window) search unit of
// work. Dates use the sites' day-first format; empty strings leave the bound
// open.
type Query struct {
	Article        string
	SubType        string
	EntryDateFrom  string
	EntryDateTo    string
	ResultDateFrom string
	ResultDateTo   string
}

// ResultStats describes a recognized result page: either a total hit count
// with the page-1 size (page count is total/pageSize rounded up), or an
// explicit page count when the site reports one directly. PageToken carries
// any site-specific token later page requests must echo.
type ResultStats struct {
	Total     int
	PageSize  int
	Pages     int
	PageToken string
}

// PageCount returns the number of result pages.
func (s ResultStats) PageCount() int {
	if s.Pages > 0 {
		return s.Pages
	}
	if s.PageSize <= 0 {
		return 1
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

// Env gives adapters access to the run's fetcher and pacing while parsing
// result pages that require follow-up detail requests. Adapters must call
// Sleep before every such request.
type Env struct {
	Fetch Fetcher
	Sleep Sleeper
}

// Adapter knows how to query one family of court websites and parse their
// pages into canonical rows. An adapter instance drives a single run and may
// keep per-run request state; it is not safe for concurrent use.
type Adapter interface {
	// Code is the input court code this adapter was built for.
	Code() string
	// SearchURL builds the initial search request.
	SearchURL(q Query) (string, error)
	// ResultStats reports whether body is a recognized result page.
	ResultStats(body string) (ResultStats, bool)
	// PageURL builds the request for result page n, n >= 2.
	PageURL(q Query, stats ResultStats, n int) (string, error)
	// ParseResults extracts rows from one result page, fetching detail pages
	// through env as needed. Returns the rows, every detail URL visited, and
	// an error only for failures that abort the page.
	ParseResults(ctx context.Context, env Env, q Query, body string) ([]model.CaseRow, []string, error)
}

// Challenge is one server-issued captcha puzzle.
type Challenge struct {
	ID       string
	ImageURL string
}

// CaptchaProtected is implemented by adapters whose host gates search behind
// an image captcha.
type CaptchaProtected interface {
	Adapter
	// IsCaptchaChallenge reports whether body is the captcha gate.
	IsCaptchaChallenge(body string) bool
	// ChallengeURL is the page carrying the captcha image and id.
	ChallengeURL() string
	// ParseChallenge extracts the puzzle from the challenge page.
	ParseChallenge(body string) (Challenge, error)
	// SolvedURL rebuilds the search request with the solved code and
	// challenge id injected. The adapter keeps the solved parameters for
	// subsequent page requests.
	SolvedURL(q Query, ch Challenge, code string) (string, error)
}
