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

	"github.com/openjustice/courtwatch/internal/model"
)

const metroHost = "www.mos-gorsud.ru"

// metroInstances maps a case subtype to the aggregator's instance number.
var metroInstances = map[string]int{
	"Первая инстанция":       1,
	"Апелляционная инстанция": 2,
}

// markerMetroResults appears on every non-empty aggregator result page.
const markerMetroResults = "По вашему запросу найдено записей"

// reMetroCourtCode pulls the owning court's path segment out of a detail
// page URL.
var reMetroCourtCode = regexp.MustCompile(`mos-gorsud\.ru/(.+)/services`)

// reArticleGroups captures the parenthesized article groups next to the
// defendant names on a detail page.
var reArticleGroups = regexp.MustCompile(`\((.+)\)`)

// MetroAdapter scrapes the metropolitan aggregator: one shared host serving
// many courts. Search hits are links into per-court detail pages; each
// detail page decomposes into one row per defendant, with articles matched
// positionally against the parenthesized groups, and the owning court
// derived from the detail URL.
type MetroAdapter struct{}

// NewMetroAdapter builds the aggregator adapter.
func NewMetroAdapter() *MetroAdapter { return &MetroAdapter{} }

func (a *MetroAdapter) Code() string { return MetroCode }

func (a *MetroAdapter) SearchURL(q Query) (string, error) {
	return a.pageURL(q, 1)
}

func (a *MetroAdapter) ResultStats(body string) (ResultStats, bool) {
	if !strings.Contains(body, markerMetroResults) {
		return ResultStats{}, false
	}
	pages := 1
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		if v, ok := doc.Find("input#paginationFormMaxPages").First().Attr("value"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				pages = n
			}
		}
	}
	return ResultStats{Pages: pages}, true
}

func (a *MetroAdapter) PageURL(q Query, _ ResultStats, n int) (string, error) {
	return a.pageURL(q, n)
}

func (a *MetroAdapter) pageURL(q Query, page int) (string, error) {
	instance, ok := metroInstances[q.SubType]
	if !ok {
		return "", eris.Errorf("metro: unknown case subtype %q", q.SubType)
	}
	v := url.Values{}
	v.Set("caseDateFrom", q.EntryDateFrom)
	if q.EntryDateTo != "" {
		v.Set("caseDateTo", q.EntryDateTo)
	}
	v.Set("codex", q.Article)
	v.Set("instance", strconv.Itoa(instance))
	v.Set("processType", "6")
	v.Set("formType", "fullForm")
	v.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("https://%s/search?%s", metroHost, v.Encode()), nil
}

// ParseResults collects the detail links off a result page and expands each
// detail page into per-defendant rows.
func (a *MetroAdapter) ParseResults(ctx context.Context, env Env, q Query, body string) ([]model.CaseRow, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, nil, eris.Wrap(err, "metro: parse result page")
	}
	var links []string
	doc.Find("nobr a.detailsLink").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			links = append(links, "https://"+metroHost+href)
		}
	})

	var rows []model.CaseRow
	var visited []string
	for _, link := range links {
		if err := env.Sleep(ctx); err != nil {
			return rows, visited, err
		}
		page, err := env.Fetch.Get(ctx, link)
		if err != nil {
			return rows, visited, err
		}
		visited = append(visited, link)
		expanded, err := a.parseDetail(page.Body, link, q)
		if err != nil {
			return rows, visited, err
		}
		rows = append(rows, expanded...)
	}
	return rows, visited, nil
}

// parseDetail reads one case detail page: the row_card table labels the
// case fields, and the defendants row names one or more persons with their
// article groups in parentheses.
func (a *MetroAdapter) parseDetail(body, link string, q Query) ([]model.CaseRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "metro: parse detail page")
	}
	card := doc.Find("div.main.searchDetails").First()
	if card.Length() == 0 {
		// Not a case card; skip rather than fail the whole page.
		return nil, nil
	}

	values := map[string]string{}
	var personsDiv *goquery.Selection
	card.Find("div.row_card").Each(func(_ int, row *goquery.Selection) {
		label := NormalizeLabel(row.Find("div.left").First().Text())
		right := row.Find("div.right").First()
		lower := strings.ToLower(label)
		if strings.Contains(lower, "подсудимый") || strings.Contains(lower, "осужденный") {
			personsDiv = right
			return
		}
		values[label] = strings.TrimSpace(right.Text())
	})
	courtCode, err := courtCodeFromLink(link)
	if err != nil {
		return nil, err
	}

	if personsDiv == nil {
		return nil, nil
	}
	var names []string
	personsDiv.Find("span").Each(func(_ int, span *goquery.Selection) {
		names = append(names, strings.TrimSpace(span.Text()))
	})
	articleGroups := reArticleGroups.FindAllStringSubmatch(personsDiv.Text(), -1)

	var rows []model.CaseRow
	for i, name := range names {
		row := rowFromLabels(values, courtCode, q.SubType)
		row.URL = link
		row.DefendantName = name
		if i < len(articleGroups) {
			row.Articles = articleGroups[i][1]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// courtCodeFromLink derives the owning court's code from a detail URL path
// segment. District courts sit under an "rs/" prefix and get the ".msk"
// suffix to keep their codes distinct from the regional roster.
func courtCodeFromLink(link string) (string, error) {
	m := reMetroCourtCode.FindStringSubmatch(link)
	if m == nil {
		return "", eris.Errorf("metro: no court code in detail url %s", link)
	}
	code := m[1]
	if strings.HasPrefix(code, "rs/") {
		code = strings.TrimPrefix(code, "rs/") + ".msk"
	}
	return code, nil
}
