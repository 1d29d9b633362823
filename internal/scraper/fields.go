package scraper

import (
	"strings"
	"time"

	"github.com/openjustice/courtwatch/internal/model"
)

// labelTable translates the Russian column labels found on court result and
// detail pages into normalized row fields. Labels not in the table are
// dropped.
var labelTable = map[string]model.Field{
	"Номер дела ~ материала": model.FieldCaseNumber,
	"№ дела":                 model.FieldCaseNumber,
	"Номер дела":             model.FieldCaseNumber,
	"Карточка дела":          model.FieldURL,
	"Статьи":                 model.FieldArticles,
	"Дата поступления":       model.FieldEntryDate,
	"Дата поступления дела":  model.FieldEntryDate,
	"Дата поступления дела в апелляционную инстанцию": model.FieldEntryDate,
	"Дата рассмотрения дела в первой инстанции":       model.FieldResultDate,
	"Дата решения":                  model.FieldResultDate,
	"Дата окончания":                model.FieldResultDate,
	"Дата вступления решения в силу": model.FieldEffectiveDate,
	"Дата вступления в законную силу": model.FieldEffectiveDate,
	"Судья":                      model.FieldJudgeName,
	"Суд первой инстанции, судья": model.FieldJudgeName,
	"Решение":                model.FieldResult,
	"Результат рассмотрения": model.FieldResult,
	"Результат":              model.FieldResult,
	"Лица":                   model.FieldDefendantName,
}

// ocrConfusables maps Latin characters to the visually identical Cyrillic
// ones. Header text extraction is unreliable and labels routinely come back
// with a few Latin lookalikes mixed in.
var ocrConfusables = strings.NewReplacer(
	"c", "с",
	"o", "о",
	"e", "е",
	"a", "а",
	"p", "р",
)

// siteDateFormat is the day-first date format used by every court site.
const siteDateFormat = "02.01.2006"

// NormalizeLabel collapses whitespace and substitutes OCR-confusable Latin
// characters so the label can be looked up in the translation table.
func NormalizeLabel(label string) string {
	return ocrConfusables.Replace(strings.Join(strings.Fields(label), " "))
}

// parseSiteDate parses a day-first date cell. Court sites sometimes put free
// text ("pending" and the like) in date cells, so failures map to nil rather
// than an error.
func parseSiteDate(s string) *time.Time {
	t, err := time.Parse(siteDateFormat, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

// rowFromLabels converts a raw label->value map scraped off a page into the
// canonical row shape. Labels are normalized before lookup; unknown labels
// and empty values are dropped.
func rowFromLabels(labels map[string]string, courtCode, subType string) model.CaseRow {
	row := model.CaseRow{CourtCode: courtCode, SubType: subType}
	for label, value := range labels {
		field, ok := labelTable[NormalizeLabel(label)]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch field {
		case model.FieldCaseNumber:
			row.CaseNumber = value
		case model.FieldDefendantName:
			row.DefendantName = value
		case model.FieldArticles:
			row.Articles = value
		case model.FieldJudgeName:
			row.JudgeName = value
		case model.FieldResult:
			row.Result = value
		case model.FieldURL:
			row.URL = value
		case model.FieldEntryDate:
			row.EntryDate = parseSiteDate(value)
		case model.FieldResultDate:
			row.ResultDate = parseSiteDate(value)
		case model.FieldEffectiveDate:
			row.EffectiveDate = parseSiteDate(value)
		}
	}
	return row
}
