package scraper

import "strings"

// ErrorKind classifies a failed scrape run. Recorded on the scrape session
// and never raised past the run boundary except when the run produced zero
// rows.
type ErrorKind string

const (
	// KindServerUnavailable: internal server error or overload on the court
	// site, a request at a different time usually works.
	KindServerUnavailable ErrorKind = "server_unavailable"
	// KindAccessBlocked: the site blocked us.
	KindAccessBlocked ErrorKind = "access_blocked"
	// KindUnknownPage: the response is neither a captcha challenge nor a
	// recognized result page, either a parser bug or the site changed.
	KindUnknownPage ErrorKind = "unknown_page"
	// KindCaptchaFailed: the captcha loop never produced an accepted code.
	KindCaptchaFailed ErrorKind = "captcha_failed"
	// KindUnknownError: an unexpected error while processing.
	KindUnknownError ErrorKind = "unknown_error"
)

// markerNoResults on a non-result page means the search matched nothing,
// which is a successful empty run, not an error.
const markerNoResults = "Данных по запросу не обнаружено"

// bodyMarkers is checked in order; first match wins. Ordering matters:
// some markers appear as substrings of other pages' surrounding text.
var bodyMarkers = []struct {
	substr string
	kind   ErrorKind
}{
	{"временно недоступен", KindServerUnavailable},
	{"Информация временно недоступна", KindServerUnavailable},
	{"запрос заблокирован по соображениям безопасности", KindAccessBlocked},
}

// classifyBody inspects a response body that is not a recognized result page
// and maps it to an error kind.
func classifyBody(body string) ErrorKind {
	for _, m := range bodyMarkers {
		if strings.Contains(body, m.substr) {
			return m.kind
		}
	}
	return KindUnknownPage
}
