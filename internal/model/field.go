package model

// Field enumerates the normalized case-row fields produced by the site
// adapters. Natural-language column labels on the court sites are translated
// into these; labels with no mapping are dropped.
type Field string

const (
	FieldArticles      Field = "articles"
	FieldCaseNumber    Field = "case_number"
	FieldDefendantName Field = "defendant_name"
	FieldEffectiveDate Field = "effective_date"
	FieldEntryDate     Field = "entry_date"
	FieldJudgeName     Field = "judge_name"
	FieldResult        Field = "result"
	FieldResultDate    Field = "result_date"
	FieldURL           Field = "url"
)

// CaseFields lists every field captured on first sighting of a case.
var CaseFields = []Field{
	FieldArticles,
	FieldCaseNumber,
	FieldDefendantName,
	FieldEffectiveDate,
	FieldEntryDate,
	FieldJudgeName,
	FieldResult,
	FieldResultDate,
	FieldURL,
}

// UpdatableFields lists the fields that may change on later sightings.
// Everything else is immutable once the case exists.
var UpdatableFields = []Field{
	FieldEffectiveDate,
	FieldJudgeName,
	FieldResult,
	FieldResultDate,
	FieldURL,
}

// IsDate reports whether the field holds a calendar date.
func (f Field) IsDate() bool {
	switch f {
	case FieldEffectiveDate, FieldEntryDate, FieldResultDate:
		return true
	}
	return false
}
