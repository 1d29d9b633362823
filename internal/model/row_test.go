package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaseRowValue(t *testing.T) {
	entry := time.Date(2022, 5, 10, 14, 30, 0, 0, time.UTC)
	row := CaseRow{CaseNumber: "1-123/2022", EntryDate: &entry}

	assert.Equal(t, "1-123/2022", row.Value(FieldCaseNumber))
	assert.Equal(t, "2022-05-10", row.Value(FieldEntryDate))
	assert.Nil(t, row.Value(FieldJudgeName))
	assert.Nil(t, row.Value(FieldResultDate))
}

func TestSameDate(t *testing.T) {
	morning := time.Date(2022, 5, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2022, 5, 10, 22, 0, 0, 0, time.UTC)
	nextDay := morning.AddDate(0, 0, 1)

	assert.True(t, SameDate(&morning, &evening))
	assert.False(t, SameDate(&morning, &nextDay))
	assert.True(t, SameDate(nil, nil))
	assert.False(t, SameDate(&morning, nil))
	assert.False(t, SameDate(nil, &morning))
}
