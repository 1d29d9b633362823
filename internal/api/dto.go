package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/openjustice/courtwatch/internal/model"
	"github.com/openjustice/courtwatch/internal/store"
)

// Wire shapes. Timestamps serialize as RFC 3339, date-only fields as
// "2006-01-02" strings, absent dates as null.

type paginationDTO struct {
	ItemsPerPage    int     `json:"itemsPerPage"`
	TotalItems      int     `json:"totalItems"`
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

type listResponse struct {
	Pagination paginationDTO `json:"pagination"`
	Items      any           `json:"items"`
}

func paginationFromInfo(info store.PageInfo) paginationDTO {
	return paginationDTO{
		ItemsPerPage:    info.PerPage,
		TotalItems:      info.TotalItems,
		HasNextPage:     info.HasNext,
		HasPreviousPage: info.HasPrev,
		StartCursor:     cursorString(info.StartCursor),
		EndCursor:       cursorString(info.EndCursor),
	}
}

func cursorString(id *int64) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatInt(*id, 10)
	return &s
}

type regionDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func regionToDTO(r model.Region) regionDTO {
	return regionDTO{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type courtDTO struct {
	ID         int64      `json:"id"`
	RegionID   int64      `json:"region_id"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	IsMilitary bool       `json:"is_military"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Region     *regionDTO `json:"region,omitempty"`
}

func courtToDTO(c model.Court) courtDTO {
	dto := courtDTO{
		ID:         c.ID,
		RegionID:   c.RegionID,
		Name:       c.Name,
		Code:       c.Code,
		IsMilitary: c.IsMilitary,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.Region != nil {
		r := regionToDTO(*c.Region)
		dto.Region = &r
	}
	return dto
}

type caseDTO struct {
	ID            int64     `json:"id"`
	CourtID       int64     `json:"court_id"`
	CaseNumber    string    `json:"case_number"`
	DefendantName string    `json:"defendant_name"`
	Articles      string    `json:"articles"`
	JudgeName     string    `json:"judge_name"`
	Result        string    `json:"result"`
	SubType       string    `json:"sub_type"`
	URL           string    `json:"url"`
	EntryDate     *string   `json:"entry_date"`
	ResultDate    *string   `json:"result_date"`
	EffectiveDate *string   `json:"effective_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func caseToDTO(c model.Case) caseDTO {
	return caseDTO{
		ID:            c.ID,
		CourtID:       c.CourtID,
		CaseNumber:    c.CaseNumber,
		DefendantName: c.DefendantName,
		Articles:      c.Articles,
		JudgeName:     c.JudgeName,
		Result:        c.Result,
		SubType:       c.SubType,
		URL:           c.URL,
		EntryDate:     dateString(c.EntryDate),
		ResultDate:    dateString(c.ResultDate),
		EffectiveDate: dateString(c.EffectiveDate),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(model.DateFormat)
	return &s
}

type sessionDTO struct {
	ID                  int64     `json:"id"`
	CourtID             *int64    `json:"court_id"`
	InputArticle        string    `json:"input_article"`
	InputCourtCode      string    `json:"input_court_code"`
	CreatedCases        int       `json:"created_cases"`
	UpdatedCases        int       `json:"updated_cases"`
	IgnoredCases        int       `json:"ignored_cases"`
	IsSuccessful        bool      `json:"is_successful"`
	IsCaptcha           bool      `json:"is_captcha"`
	IsCaptchaSuccessful bool      `json:"is_captcha_successful"`
	ErrorType           *string   `json:"error_type"`
	DebugMessage        string    `json:"debug_message"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func sessionToDTO(s model.ScrapeSession) sessionDTO {
	dto := sessionDTO{
		ID:                  s.ID,
		CourtID:             s.CourtID,
		InputArticle:        s.InputArticle,
		InputCourtCode:      s.InputCourtCode,
		CreatedCases:        s.CreatedCases,
		UpdatedCases:        s.UpdatedCases,
		IgnoredCases:        s.IgnoredCases,
		IsSuccessful:        s.IsSuccessful,
		IsCaptcha:           s.IsCaptcha,
		IsCaptchaSuccessful: s.IsCaptchaSuccessful,
		DebugMessage:        s.DebugMessage,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
	// "None" is the stored sentinel for a clean run; the wire shape uses a
	// real null.
	if s.ErrorType != "" && s.ErrorType != "None" {
		et := s.ErrorType
		dto.ErrorType = &et
	}
	return dto
}

type logDTO struct {
	ID              int64           `json:"id"`
	ScrapeSessionID int64           `json:"scrape_session_id"`
	CaseID          int64           `json:"case_id"`
	IsUpdate        bool            `json:"is_update"`
	Diff            json.RawMessage `json:"diff"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Case            *caseDTO        `json:"case,omitempty"`
}

func logToDTO(l model.ScrapeLog, c *model.Case) logDTO {
	diff := json.RawMessage(l.Diff)
	if !json.Valid(diff) {
		diff = json.RawMessage("{}")
	}
	dto := logDTO{
		ID:              l.ID,
		ScrapeSessionID: l.ScrapeSessionID,
		CaseID:          l.CaseID,
		IsUpdate:        l.IsUpdate,
		Diff:            diff,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if c != nil {
		cd := caseToDTO(*c)
		dto.Case = &cd
	}
	return dto
}
