// Package tasks runs the scrape pipeline on Temporal: one workflow per
// dispatched unit of work, recurring schedules for the batch tick and the
// session cleanup.
package tasks

// TaskQueue is the Temporal task queue shared by the worker and every
// dispatched workflow.
const TaskQueue = "courtwatch"

// Schedule IDs. Creating them is idempotent.
const (
	BatchTickScheduleID     = "courtwatch-batch-tick"
	CleanSessionsScheduleID = "courtwatch-clean-sessions"
)

// ScrapeCourtArgs identifies one (court, article, subtype) scrape run.
type ScrapeCourtArgs struct {
	CourtCode string `json:"court_code"`
	Article   string `json:"article"`
	SubType   string `json:"sub_type"`
}

// ScrapeAllArticlesArgs identifies one "scrape everything for this court"
// unit of work, fanned out across the configured search matrix. The
// aggregator meta code fans out across its courts by itself.
type ScrapeAllArticlesArgs struct {
	CourtCode string `json:"court_code"`
}

// ScrapeInputs is the search matrix every court is scraped with: each
// dispatched court expands into one run per article and case subtype.
type ScrapeInputs struct {
	Articles      []string
	SubTypes      []string
	EntryDateFrom string
}
