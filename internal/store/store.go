// Package store persists courts, cases and scrape telemetry in Postgres and
// implements the keyset-paginated queries behind the read API.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/openjustice/courtwatch/internal/model"
)

// ErrDuplicateCase is returned by InsertCase when the identity key already
// exists: two concurrent runs discovered the same case and we lost the race.
var ErrDuplicateCase = eris.New("store: duplicate case")

// RegionFilter narrows a region listing.
type RegionFilter struct {
	Name string
	IDs  []int64
}

// CourtFilter narrows a court listing.
type CourtFilter struct {
	Name      string
	IDs       []int64
	RegionIDs []int64
}

// CaseFilter narrows a case listing. The repeated substring filters are
// ANDed; date bounds are inclusive.
type CaseFilter struct {
	Defendants []string
	Judges     []string
	Articles   []string
	CourtIDs   []int64
	RegionIDs  []int64

	EntryFrom, EntryTo         *time.Time
	ResultFrom, ResultTo       *time.Time
	EffectiveFrom, EffectiveTo *time.Time
}

// LogFilter selects scrape log entries by exactly one of the owning
// relations.
type LogFilter struct {
	CourtID   *int64
	SessionID *int64
	CaseID    *int64
}

// Store is the persistence interface consumed by the reconciler, the batch
// orchestrator and the API handlers.
type Store interface {
	// Catalog
	UpsertRegion(ctx context.Context, name string) (int64, error)
	UpsertCourt(ctx context.Context, court model.Court) (created bool, err error)
	GetCourtByCode(ctx context.Context, code string) (*model.Court, error)
	GetCourt(ctx context.Context, id int64) (*model.Court, error)
	ListRegions(ctx context.Context, f RegionFilter, p Page) ([]model.Region, int, error)
	ListCourts(ctx context.Context, f CourtFilter, p Page) ([]model.Court, int, error)

	// Cases
	FindCase(ctx context.Context, key model.CaseKey) (*model.Case, error)
	InsertCase(ctx context.Context, c *model.Case) (int64, error)
	UpdateCaseFields(ctx context.Context, id int64, fields map[model.Field]any) error
	GetCase(ctx context.Context, id int64) (*model.Case, error)
	ListCases(ctx context.Context, f CaseFilter, p Page) ([]model.Case, int, error)

	// Scrape telemetry
	CreateSession(ctx context.Context, s *model.ScrapeSession) (int64, error)
	FinalizeSession(ctx context.Context, id int64, created, updated, ignored int) error
	GetSession(ctx context.Context, id int64) (*model.ScrapeSession, error)
	ListSessions(ctx context.Context, p Page) ([]model.ScrapeSession, int, error)
	AppendLog(ctx context.Context, l *model.ScrapeLog) error
	ListLogs(ctx context.Context, f LogFilter, p Page) ([]model.ScrapeLog, int, error)
	DeleteStaleSessions(ctx context.Context, retention time.Duration) (int64, error)

	// Batch cursor
	BatchNextIndex(ctx context.Context) (int, error)
	SetBatchNextIndex(ctx context.Context, idx int) error
	CourtsPage(ctx context.Context, offset, limit int) ([]model.Court, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
