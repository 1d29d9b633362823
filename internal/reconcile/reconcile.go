// Package reconcile turns scrape envelopes into durable case records: it
// matches scraped rows against stored cases by identity key, applies field
// updates, and writes the per-run session and audit log rows.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
	"github.com/openjustice/courtwatch/internal/scraper"
	"github.com/openjustice/courtwatch/internal/store"
)

// cleanErrorType is stored on sessions of runs that did not fail.
const cleanErrorType = "None"

// Store is the persistence surface the reconciler needs.
type Store interface {
	GetCourtByCode(ctx context.Context, code string) (*model.Court, error)
	CreateSession(ctx context.Context, s *model.ScrapeSession) (int64, error)
	FinalizeSession(ctx context.Context, id int64, created, updated, ignored int) error
	FindCase(ctx context.Context, key model.CaseKey) (*model.Case, error)
	InsertCase(ctx context.Context, c *model.Case) (int64, error)
	UpdateCaseFields(ctx context.Context, id int64, fields map[model.Field]any) error
	AppendLog(ctx context.Context, l *model.ScrapeLog) error
}

// Input is one scrape run's outcome plus the inputs that produced it.
type Input struct {
	CourtCode string
	Article   string
	SubType   string
	Env       *scraper.Envelope
}

// Totals counts the case-level outcomes of one reconciliation.
type Totals struct {
	Created int
	Updated int
	Ignored int
}

// Reconciler applies scrape envelopes to the store.
type Reconciler struct {
	store Store
	log   *zap.Logger
}

func New(st Store, log *zap.Logger) *Reconciler {
	return &Reconciler{store: st, log: log}
}

// Apply reconciles one envelope. Rows are grouped per court in first-seen
// order and each group gets its own session; aggregator runs thus produce
// one session per court encountered. A failed run that still yielded rows
// reconciles them under sessions flagged unsuccessful. Rows naming a court
// missing from the catalog abort the whole call.
func (r *Reconciler) Apply(ctx context.Context, in Input) (Totals, error) {
	var totals Totals

	if len(in.Env.Rows) == 0 {
		if err := r.recordEmpty(ctx, in); err != nil {
			return totals, err
		}
		return totals, nil
	}

	codes, groups := groupByCourt(in.Env.Rows)
	for _, code := range codes {
		court, err := r.store.GetCourtByCode(ctx, code)
		if err != nil {
			return totals, err
		}
		if court == nil {
			return totals, eris.Errorf("reconcile: unknown court code %s", code)
		}

		sess := r.newSession(in, &court.ID, code)
		if _, err := r.store.CreateSession(ctx, sess); err != nil {
			return totals, err
		}

		var t Totals
		for i := range groups[code] {
			if err := r.applyRow(ctx, sess.ID, court.ID, &groups[code][i], &t); err != nil {
				return totals, err
			}
		}
		if err := r.store.FinalizeSession(ctx, sess.ID, t.Created, t.Updated, t.Ignored); err != nil {
			return totals, err
		}

		totals.Created += t.Created
		totals.Updated += t.Updated
		totals.Ignored += t.Ignored
	}
	return totals, nil
}

// recordEmpty writes the session for a run with no rows. A failed run is
// persisted first so the report survives for debugging, then the failure is
// raised to fail the enclosing unit of work.
func (r *Reconciler) recordEmpty(ctx context.Context, in Input) error {
	var courtID *int64
	if court, err := r.store.GetCourtByCode(ctx, in.CourtCode); err != nil {
		return err
	} else if court != nil {
		courtID = &court.ID
	}
	sess := r.newSession(in, courtID, in.CourtCode)
	if _, err := r.store.CreateSession(ctx, sess); err != nil {
		return err
	}
	if !in.Env.Succeeded {
		r.log.Warn("scrape run failed",
			zap.String("court_code", in.CourtCode),
			zap.String("article", in.Article),
			zap.String("error_type", sess.ErrorType))
		return eris.Errorf("reconcile: scrape failed with error_type=%s", sess.ErrorType)
	}
	return nil
}

func (r *Reconciler) newSession(in Input, courtID *int64, code string) *model.ScrapeSession {
	errorType := cleanErrorType
	if !in.Env.Succeeded {
		errorType = string(in.Env.ErrorKind)
	}
	return &model.ScrapeSession{
		CourtID:             courtID,
		InputArticle:        in.Article,
		InputCourtCode:      code,
		IsSuccessful:        in.Env.Succeeded,
		IsCaptcha:           in.Env.CaptchaEncountered,
		IsCaptchaSuccessful: in.Env.CaptchaSolved,
		ErrorType:           errorType,
		DebugMessage:        sessionReport(in, errorType),
	}
}

// applyRow creates, updates or ignores one scraped row. Losing the insert
// race to a concurrent run is logged and counted nowhere: the winner's
// session owns the create. Every other storage failure propagates and fails
// the run; rows already committed stay committed.
func (r *Reconciler) applyRow(ctx context.Context, sessionID, courtID int64, row *model.CaseRow, t *Totals) error {
	key := model.CaseKey{
		CourtID:       courtID,
		CaseNumber:    row.CaseNumber,
		Articles:      row.Articles,
		DefendantName: row.DefendantName,
	}
	existing, err := r.store.FindCase(ctx, key)
	if err != nil {
		return eris.Wrapf(err, "reconcile: find case %s", row.CaseNumber)
	}

	if existing == nil {
		c := newCase(row, courtID)
		id, err := r.store.InsertCase(ctx, c)
		if err != nil {
			if eris.Is(err, store.ErrDuplicateCase) {
				r.log.Warn("lost insert race", zap.String("case_number", row.CaseNumber))
				return nil
			}
			return eris.Wrapf(err, "reconcile: insert case %s", row.CaseNumber)
		}
		if err := r.appendLog(ctx, sessionID, id, false, createDiff(row)); err != nil {
			return err
		}
		t.Created++
		return nil
	}

	changed := changedFields(existing, row)
	if len(changed) == 0 {
		t.Ignored++
		return nil
	}
	if err := r.store.UpdateCaseFields(ctx, existing.ID, changed); err != nil {
		return eris.Wrapf(err, "reconcile: update case %d", existing.ID)
	}
	if err := r.appendLog(ctx, sessionID, existing.ID, true, updateDiff(row, changed)); err != nil {
		return err
	}
	t.Updated++
	return nil
}

func (r *Reconciler) appendLog(ctx context.Context, sessionID, caseID int64, isUpdate bool, diff string) error {
	err := r.store.AppendLog(ctx, &model.ScrapeLog{
		ScrapeSessionID: sessionID,
		CaseID:          caseID,
		IsUpdate:        isUpdate,
		Diff:            diff,
	})
	if err != nil {
		return eris.Wrapf(err, "reconcile: append log for case %d", caseID)
	}
	return nil
}

// groupByCourt splits rows per court code, keeping first-seen court order
// and row order within each court.
func groupByCourt(rows []model.CaseRow) ([]string, map[string][]model.CaseRow) {
	var codes []string
	groups := map[string][]model.CaseRow{}
	for _, row := range rows {
		if _, ok := groups[row.CourtCode]; !ok {
			codes = append(codes, row.CourtCode)
		}
		groups[row.CourtCode] = append(groups[row.CourtCode], row)
	}
	return codes, groups
}

func newCase(row *model.CaseRow, courtID int64) *model.Case {
	return &model.Case{
		CourtID:       courtID,
		CaseNumber:    row.CaseNumber,
		DefendantName: row.DefendantName,
		Articles:      row.Articles,
		JudgeName:     row.JudgeName,
		Result:        row.Result,
		SubType:       row.SubType,
		URL:           row.URL,
		EntryDate:     row.EntryDate,
		ResultDate:    row.ResultDate,
		EffectiveDate: row.EffectiveDate,
	}
}

// changedFields compares the updatable fields of a stored case against a
// scraped row: calendar-date comparison for dates, whitespace-trimmed
// comparison for strings. Whatever the site shows now wins, including a
// field that went empty since the last sighting.
func changedFields(c *model.Case, row *model.CaseRow) map[model.Field]any {
	changed := map[model.Field]any{}

	date := func(f model.Field, scraped, stored *time.Time) {
		if !model.SameDate(scraped, stored) {
			changed[f] = scraped
		}
	}
	str := func(f model.Field, scraped, stored string) {
		if v := strings.TrimSpace(scraped); v != strings.TrimSpace(stored) {
			changed[f] = v
		}
	}

	for _, f := range model.UpdatableFields {
		switch f {
		case model.FieldEffectiveDate:
			date(f, row.EffectiveDate, c.EffectiveDate)
		case model.FieldResultDate:
			date(f, row.ResultDate, c.ResultDate)
		case model.FieldJudgeName:
			str(f, row.JudgeName, c.JudgeName)
		case model.FieldResult:
			str(f, row.Result, c.Result)
		case model.FieldURL:
			str(f, row.URL, c.URL)
		}
	}
	return changed
}

// createDiff serializes every populated field of a new case.
func createDiff(row *model.CaseRow) string {
	diff := map[string]any{}
	for _, f := range model.CaseFields {
		if v := row.Value(f); v != nil {
			diff[string(f)] = v
		}
	}
	return marshalDiff(diff)
}

// updateDiff serializes exactly the fields written by an update.
func updateDiff(row *model.CaseRow, changed map[model.Field]any) string {
	diff := map[string]any{}
	for f := range changed {
		diff[string(f)] = row.Value(f)
	}
	return marshalDiff(diff)
}

func marshalDiff(diff map[string]any) string {
	b, err := json.Marshal(diff)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// sessionReport formats the human-facing summary stored on every session:
// the inputs, the captcha flags and the URLs the run visited. For clean runs
// the error fields stay blank, for failed runs they carry the diagnosis.
func sessionReport(in Input, errorType string) string {
	return fmt.Sprintf(
		"court_code=%s\narticle=%s\nsub_type=%s\nis_captcha=%t\nis_captcha_successful=%t\nerror_type=%s\nurls=\n* %s\nerror_message=%s",
		in.CourtCode, in.Article, in.SubType,
		in.Env.CaptchaEncountered, in.Env.CaptchaSolved,
		errorType, strings.Join(in.Env.URLs, "\n* "), in.Env.DebugMessage,
	)
}
