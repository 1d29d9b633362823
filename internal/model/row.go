package model

import "time"

// DateFormat is the wire format for date-only values in diffs and API
// responses.
const DateFormat = "2006-01-02"

// CaseRow is the canonical normalized row emitted by every site adapter.
// Adapter-specific page shapes are converted into this at the adapter
// boundary and carried through the pipeline as-is.
type CaseRow struct {
	CourtCode     string
	SubType       string
	CaseNumber    string
	DefendantName string
	Articles      string
	JudgeName     string
	Result        string
	URL           string
	EntryDate     *time.Time
	ResultDate    *time.Time
	EffectiveDate *time.Time
}

// Value returns the row's value for a field in diff-serializable form:
// dates as "2006-01-02" strings, empty strings and absent dates as nil.
func (r CaseRow) Value(f Field) any {
	switch f {
	case FieldArticles:
		return nullable(r.Articles)
	case FieldCaseNumber:
		return nullable(r.CaseNumber)
	case FieldDefendantName:
		return nullable(r.DefendantName)
	case FieldJudgeName:
		return nullable(r.JudgeName)
	case FieldResult:
		return nullable(r.Result)
	case FieldURL:
		return nullable(r.URL)
	case FieldEntryDate:
		return dateValue(r.EntryDate)
	case FieldResultDate:
		return dateValue(r.ResultDate)
	case FieldEffectiveDate:
		return dateValue(r.EffectiveDate)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DateFormat)
}

// SameDate compares two optional timestamps as calendar dates.
func SameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
