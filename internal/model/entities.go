// Package model holds the persistent entities of the court monitor and the
// canonical scraped-row shape exchanged between the site adapters and the
// change reconciler.
package model

import "time"

// Region is static reference data, seeded once from the court catalog.
type Region struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Court is one court website we scrape. Code is the site subdomain for
// regional courts (e.g. "oblsud--kln") or the path segment for courts served
// by the metropolitan aggregator (e.g. "presnensky.msk").
type Court struct {
	ID         int64     `json:"id"`
	RegionID   int64     `json:"region_id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	IsMilitary bool      `json:"is_military"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Region *Region `json:"region,omitempty"`
}

// Case is one scraped legal proceeding record. Identity is the four-tuple
// (case_number, court_id, articles, defendant_name): anonymized defendants in
// a single filing collide on case_number alone.
type Case struct {
	ID            int64      `json:"id"`
	CourtID       int64      `json:"court_id"`
	CaseNumber    string     `json:"case_number"`
	DefendantName string     `json:"defendant_name"`
	Articles      string     `json:"articles"`
	JudgeName     string     `json:"judge_name"`
	Result        string     `json:"result"`
	SubType       string     `json:"sub_type"`
	URL           string     `json:"url"`
	EntryDate     *time.Time `json:"entry_date"`
	ResultDate    *time.Time `json:"result_date"`
	EffectiveDate *time.Time `json:"effective_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Court *Court `json:"court,omitempty"`
}

// CaseKey is the identity key used to look up an existing Case during
// reconciliation.
type CaseKey struct {
	CourtID       int64
	CaseNumber    string
	Articles      string
	DefendantName string
}

// Key returns the identity key of the case.
func (c *Case) Key() CaseKey {
	return CaseKey{
		CourtID:       c.CourtID,
		CaseNumber:    c.CaseNumber,
		Articles:      c.Articles,
		DefendantName: c.DefendantName,
	}
}

// ScrapeSession records the inputs, outcome and counters of a single scrape
// run for one court group. Created with zeroed counters at run start and
// finalized once; never mutated afterwards.
type ScrapeSession struct {
	ID                  int64  `json:"id"`
	CourtID             *int64 `json:"court_id"`
	InputArticle        string `json:"input_article"`
	InputCourtCode      string `json:"input_court_code"`
	CreatedCases        int    `json:"created_cases"`
	UpdatedCases        int    `json:"updated_cases"`
	IgnoredCases        int    `json:"ignored_cases"`
	IsSuccessful        bool   `json:"is_successful"`
	IsCaptcha           bool   `json:"is_captcha"`
	IsCaptchaSuccessful bool   `json:"is_captcha_successful"`
	// ErrorType stores the scrape error kind, or the literal string "None"
	// for clean runs. The API surfaces "None" as null.
	ErrorType    string    `json:"error_type"`
	DebugMessage string    `json:"debug_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Court *Court `json:"court,omitempty"`
}

// ScrapeLog is an append-only audit entry: one row per case create or per
// update that changed at least one field. Diff holds a serialized
// field->value map restricted to the fields written.
type ScrapeLog struct {
	ID              int64     `json:"id"`
	ScrapeSessionID int64     `json:"scrape_session_id"`
	CaseID          int64     `json:"case_id"`
	IsUpdate        bool      `json:"is_update"`
	Diff            string    `json:"diff"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Case *Case `json:"case,omitempty"`
}

// ScrapeState is the singleton rotating cursor over the court roster used by
// the batch orchestrator. Exactly one row exists, created lazily.
type ScrapeState struct {
	ID             int64
	BatchNextIndex int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
