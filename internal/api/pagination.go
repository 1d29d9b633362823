package api

import (
	"net/http"
	"strconv"

	"github.com/openjustice/courtwatch/internal/store"
)

const defaultPerPage = 50

// allowedPerPage is the closed set of accepted page sizes; anything else
// falls back to the default.
var allowedPerPage = map[int]bool{10: true, 25: true, 50: true, 75: true, 100: true}

// pageFromRequest reads the shared pagination parameters. Supplying both
// cursors is ambiguous and collapses to the first page.
func pageFromRequest(r *http.Request) store.Page {
	q := r.URL.Query()
	p := store.Page{PerPage: defaultPerPage}
	if n, err := strconv.Atoi(q.Get("itemsPerPage")); err == nil && allowedPerPage[n] {
		p.PerPage = n
	}
	before := parseCursor(q.Get("before"))
	after := parseCursor(q.Get("after"))
	if before != nil && after != nil {
		before, after = nil, nil
	}
	p.Before, p.After = before, after
	return p
}

// parseCursor decodes an opaque cursor. Cursors are stringified row ids;
// garbage is treated as absent.
func parseCursor(s string) *int64 {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
