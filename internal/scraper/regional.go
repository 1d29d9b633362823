package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/openjustice/courtwatch/internal/model"
)

// subTypeTables maps a case subtype to the search table the regional backend
// expects: first instance or appeal.
var subTypeTables = map[string]string{
	"Первая инстанция":       "u1_case",
	"Апелляционная инстанция": "u2_case",
}

// param is one ordered query parameter. The regional backend is picky about
// parameter order, and the solved captcha code must land at a fixed position,
// so the request is kept as a slice rather than url.Values.
type param struct {
	key   string
	value string
}

// captchaParamPos is where the solved code and challenge id are injected
// into the search parameters.
const captchaParamPos = 12

var (
	reResultCount = regexp.MustCompile(`Всего по запросу найдено — (\d+)\. На странице записи с 1\s*по (\d+)\.`)
	rePageToken   = regexp.MustCompile(`vnkod=(\w+)`)
)

// markerCaptcha is present both on the captcha gate page and on the "wrong
// code" page, so it doubles as the challenge indicator and, after the retry
// bound, the failure marker.
const markerCaptcha = "Неверно указан проверочный код с картинки"

// RegionalAdapter scrapes one regional court: each court runs its own host
// at <code>.sudrf.ru with the shared sud_delo search module. Result pages
// are tabular; every hit's case card is fetched separately and expands into
// one row per (defendant, article list) pair.
type RegionalAdapter struct {
	code    string
	baseURL string
	// search parameters of the last (re)submitted request; page requests
	// echo them, including any solved captcha code.
	params []param
}

// NewRegionalAdapter builds an adapter for one court code.
func NewRegionalAdapter(code string) *RegionalAdapter {
	return &RegionalAdapter{
		code:    code,
		baseURL: fmt.Sprintf("https://%s.sudrf.ru", code),
	}
}

func (a *RegionalAdapter) Code() string { return a.code }

func (a *RegionalAdapter) SearchURL(q Query) (string, error) {
	table, ok := subTypeTables[q.SubType]
	if !ok {
		return "", eris.Errorf("regional: unknown case subtype %q", q.SubType)
	}
	a.params = searchParams(table, q)
	return a.requestURL(a.params)
}

func (a *RegionalAdapter) ResultStats(body string) (ResultStats, bool) {
	m := reResultCount.FindStringSubmatch(body)
	if m == nil {
		return ResultStats{}, false
	}
	total, _ := strconv.Atoi(m[1])
	pageSize, _ := strconv.Atoi(m[2])
	stats := ResultStats{Total: total, PageSize: pageSize}
	if tok := rePageToken.FindStringSubmatch(body); tok != nil {
		stats.PageToken = tok[1]
	}
	return stats, true
}

func (a *RegionalAdapter) PageURL(_ Query, stats ResultStats, n int) (string, error) {
	params := append([]param{}, a.params...)
	params = append(params,
		param{"vnkod", stats.PageToken},
		param{"page", strconv.Itoa(n)},
	)
	return a.requestURL(params)
}

func (a *RegionalAdapter) IsCaptchaChallenge(body string) bool {
	return strings.Contains(body, markerCaptcha)
}

func (a *RegionalAdapter) ChallengeURL() string {
	return a.baseURL + "/modules.php?name=sud_delo&srv_num=1&name_op=sf&delo_id=1540005"
}

func (a *RegionalAdapter) ParseChallenge(body string) (Challenge, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Challenge{}, eris.Wrap(err, "regional: parse challenge page")
	}
	input := doc.Find(`input[name="captchaid"]`).First()
	id, ok := input.Attr("value")
	if !ok {
		return Challenge{}, eris.New("regional: captcha id not found on challenge page")
	}
	img, ok := input.Parent().Find("img").First().Attr("src")
	if !ok {
		return Challenge{}, eris.New("regional: captcha image not found on challenge page")
	}
	return Challenge{ID: id, ImageURL: strings.ReplaceAll(img, " ", "")}, nil
}

func (a *RegionalAdapter) SolvedURL(_ Query, ch Challenge, code string) (string, error) {
	solved := make([]param, 0, len(a.params)+2)
	solved = append(solved, a.params[:captchaParamPos]...)
	solved = append(solved,
		param{"captcha", code},
		param{"captchaid", ch.ID},
	)
	solved = append(solved, a.params[captchaParamPos:]...)
	a.params = solved
	return a.requestURL(solved)
}

// ParseResults walks the #tablcont result table. The header row labels the
// columns; each data row points at a case card which is fetched and expanded
// into one row per defendant listed there.
func (a *RegionalAdapter) ParseResults(ctx context.Context, env Env, q Query, body string) ([]model.CaseRow, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, nil, eris.Wrap(err, "regional: parse result page")
	}
	table := doc.Find("table#tablcont").First()
	if table.Length() == 0 {
		// Not an error: the page matched the result-count marker but carries
		// no table, e.g. an empty trailing page.
		return nil, nil, nil
	}

	var labels []string
	var rows []model.CaseRow
	var visited []string
	var rowErr error
	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if i == 0 {
			tr.Find("th").Each(func(_ int, th *goquery.Selection) {
				labels = append(labels, cellText(th))
			})
			return true
		}
		values := map[string]string{}
		cardURL := ""
		tr.Find("td").Each(func(j int, td *goquery.Selection) {
			if j >= len(labels) {
				return
			}
			label := NormalizeLabel(labels[j])
			values[label] = cellText(td)
			if label == "№ дела" {
				if href, ok := td.Find("a").First().Attr("href"); ok {
					cardURL = a.baseURL + href
				}
			}
		})
		if cardURL == "" {
			return true
		}
		values["Карточка дела"] = cardURL

		expanded, err := a.expandCaseCard(ctx, env, q, cardURL, values)
		if err != nil {
			rowErr = err
			return false
		}
		visited = append(visited, cardURL)
		rows = append(rows, expanded...)
		return true
	})
	if rowErr != nil {
		return rows, visited, rowErr
	}
	return rows, visited, nil
}

// expandCaseCard fetches a case card and produces one row per person in its
// defendants table, inheriting the search-hit columns.
func (a *RegionalAdapter) expandCaseCard(ctx context.Context, env Env, q Query, cardURL string, values map[string]string) ([]model.CaseRow, error) {
	if err := env.Sleep(ctx); err != nil {
		return nil, err
	}
	page, err := env.Fetch.Get(ctx, cardURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, eris.Wrap(err, "regional: parse case card")
	}
	if doc.Find("ul.tabs").Length() == 0 {
		// Card layout we do not understand; keep going with the other hits.
		return nil, nil
	}

	var persons *goquery.Selection
	doc.Find("div.contentt div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if strings.Contains(div.Text(), "Перечень статей") {
			persons = div
			return false
		}
		return true
	})
	if persons == nil {
		return nil, nil
	}

	var rows []model.CaseRow
	persons.Find("tr").Each(func(i int, tr *goquery.Selection) {
		// The first two rows are the section header and the column header.
		if i < 2 {
			return
		}
		cols := tr.Find("td")
		if cols.Length() < 2 {
			return
		}
		personValues := make(map[string]string, len(values)+2)
		for k, v := range values {
			personValues[k] = v
		}
		personValues["Лица"] = strings.TrimSpace(cols.Eq(0).Text())
		personValues["Статьи"] = strings.TrimSpace(cols.Eq(1).Text())
		rows = append(rows, rowFromLabels(personValues, a.code, q.SubType))
	})
	return rows, nil
}

func (a *RegionalAdapter) requestURL(params []param) (string, error) {
	encoded, err := encodeLegacyQuery(params)
	if err != nil {
		return "", err
	}
	return a.baseURL + "/modules.php?" + encoded, nil
}

// encodeLegacyQuery urlencodes parameters in windows-1251, preserving order.
// The regional backend decodes its query string with the legacy charset and
// rejects UTF-8 percent escapes for the Cyrillic values.
func encodeLegacyQuery(params []param) (string, error) {
	enc := charmap.Windows1251.NewEncoder()
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		v, err := enc.String(p.value)
		if err != nil {
			return "", eris.Wrapf(err, "regional: encode query value %q", p.value)
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String(), nil
}

// cellText extracts a cell's text with inner line breaks collapsed to single
// spaces.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// searchParams builds the full ordered sud_delo parameter list for one
// search table. The backend expects every field present even when empty.
func searchParams(table string, q Query) []param {
	if table == "u2_case" {
		return []param{
			{"name", "sud_delo"},
			{"srv_num", "1"},
			{"name_op", "r"},
			{"delo_id", "4"},
			{"case_type", "0"},
			{"new", "4"},
			{"U2_DEFENDANT__NAMESS", ""},
			{"u2_case__CASE_NUMBERSS", ""},
			{"u2_case__JUDICIAL_UIDSS", ""},
			{"delo_table", "u2_case"},
			{"u2_case__ENTRY_DATE1D", q.EntryDateFrom},
			{"u2_case__ENTRY_DATE2D", q.EntryDateTo},
			{"U2_CASE__COURT_I_REGION_ID", ""},
			{"U2_CASE__COURT_I", ""},
			{"U2_CASE__CASE_NUMBER_ISS", ""},
			{"U2_CASE__JUDGE", ""},
			{"u2_case__RESULT_DATE1D", q.ResultDateFrom},
			{"u2_case__RESULT_DATE2D", q.ResultDateTo},
			{"U2_CASE__RESULT", ""},
			{"U2_CASE__BUILDING_ID", ""},
			{"U2_CASE__JUDGE_I", ""},
			{"U2_CASE__COURT_STRUCT", ""},
			{"U2_EVENT__EVENT_DATEDD", ""},
			{"U2_DEFENDANT__LAW_ARTICLESS", q.Article},
			{"U2_DEFENDANT__M_SUB_TYPE", ""},
			{"U2_DEFENDANT__RESULT", ""},
			{"U2_PARTS__PARTS_TYPE", ""},
			{"U2_PARTS__INN_STRSS", ""},
			{"U2_PARTS__KPP_STRSS", ""},
			{"U2_PARTS__OGRN_STRSS", ""},
			{"U2_PARTS__OGRNIP_STRSS", ""},
			{"U2_DOCUMENT__PUBL_DATE1D", ""},
			{"U2_DOCUMENT__PUBL_DATE2D", ""},
			{"U2_DOCUMENT__VALIDITY_DATE1D", ""},
			{"U2_DOCUMENT__VALIDITY_DATE2D", ""},
			{"Submit", "Найти"},
		}
	}
	return []param{
		{"name", "sud_delo"},
		{"srv_num", "1"},
		{"name_op", "r"},
		{"delo_id", "1540006"},
		{"case_type", "0"},
		{"new", "0"},
		{"U1_DEFENDANT__NAMESS", ""},
		{"u1_case__CASE_NUMBERSS", ""},
		{"u1_case__JUDICIAL_UIDSS", ""},
		{"delo_table", "u1_case"},
		{"u1_case__ENTRY_DATE1D", q.EntryDateFrom},
		{"u1_case__ENTRY_DATE2D", q.EntryDateTo},
		{"U1_CASE__JUDGE", ""},
		{"u1_case__RESULT_DATE1D", q.ResultDateFrom},
		{"u1_case__RESULT_DATE2D", q.ResultDateTo},
		{"U1_CASE__RESULT", ""},
		{"U1_CASE__BUILDING_ID", ""},
		{"U1_CASE__COURT_STRUCT", ""},
		{"U1_EVENT__EVENT_NAME", ""},
		{"U1_EVENT__EVENT_DATEDD", ""},
		{"U1_DEFENDANT__LAW_ARTICLESS", q.Article},
		{"U1_DEFENDANT__RESULT_DATE1D", ""},
		{"U1_DEFENDANT__RESULT_DATE2D", ""},
		{"U1_DEFENDANT__RESULT", ""},
		{"U1_PARTS__PARTS_TYPE", ""},
		{"U1_PARTS__INN_STRSS", ""},
		{"U1_PARTS__KPP_STRSS", ""},
		{"U1_PARTS__OGRN_STRSS", ""},
		{"U1_PARTS__OGRNIP_STRSS", ""},
		{"U1_DOCUMENT__PUBL_DATE1D", ""},
		{"U1_DOCUMENT__PUBL_DATE2D", ""},
		{"U1_CASE__VALIDITY_DATE1D", ""},
		{"U1_CASE__VALIDITY_DATE2D", ""},
		{"U1_ORDER_INFO__ORDER_DATE1D", ""},
		{"U1_ORDER_INFO__ORDER_DATE2D", ""},
		{"U1_ORDER_INFO__ORDER_NUMSS", ""},
		{"U1_ORDER_INFO__EXTERNALKEYSS", ""},
		{"U1_ORDER_INFO__STATE_ID", ""},
		{"U1_ORDER_INFO__RECIP_ID", ""},
		{"Submit", "Найти"},
	}
}
