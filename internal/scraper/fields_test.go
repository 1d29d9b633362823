package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabel_SubstitutesOCRConfusables(t *testing.T) {
	// Latin "c", "o", "a" mixed into a Cyrillic label.
	assert.Equal(t, "Дата поступления", NormalizeLabel("Дatа пocтупления"))
}

func TestNormalizeLabel_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "Номер дела", NormalizeLabel("  Номер \n\t дела "))
}

func TestParseSiteDate(t *testing.T) {
	d := parseSiteDate("24.02.2022")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2022, 2, 24, 0, 0, 0, 0, time.UTC), *d)

	assert.Nil(t, parseSiteDate("не назначена"))
	assert.Nil(t, parseSiteDate(""))
}

func TestRowFromLabels(t *testing.T) {
	row := rowFromLabels(map[string]string{
		"Номер дела":       "1-123/2023",
		"Лица":             "Иванов И.И.",
		"Статьи":           "ст.280 ч.2",
		"Судья":            "Петрова А.А.",
		"Дата поступления": "01.03.2023",
		"Дата решения":     "ожидается",
		"Прочее":           "мусор",
		"Решение":          "",
	}, "oblsud--kln", "Первая инстанция")

	assert.Equal(t, "oblsud--kln", row.CourtCode)
	assert.Equal(t, "Первая инстанция", row.SubType)
	assert.Equal(t, "1-123/2023", row.CaseNumber)
	assert.Equal(t, "Иванов И.И.", row.DefendantName)
	assert.Equal(t, "ст.280 ч.2", row.Articles)
	assert.Equal(t, "Петрова А.А.", row.JudgeName)
	require.NotNil(t, row.EntryDate)
	assert.Equal(t, "2023-03-01", row.EntryDate.Format("2006-01-02"))
	// Free text in a date cell maps to nil, unknown labels and empty
	// values are dropped.
	assert.Nil(t, row.ResultDate)
	assert.Empty(t, row.Result)
}
