package store

import "fmt"

// Page is a keyset pagination request: at most one of Before/After is set,
// each holding the id of the anchor row. PerPage is the page size; one extra
// row is fetched to detect adjacent pages.
type Page struct {
	Before  *int64
	After   *int64
	PerPage int
}

// PageInfo describes the resolved page for the API envelope.
type PageInfo struct {
	PerPage     int
	TotalItems  int
	HasNext     bool
	HasPrev     bool
	StartCursor *int64
	EndCursor   *int64
}

// keysetClause builds the cursor predicate and ORDER BY for a composite
// (orderCol, idCol) keyset over table. The tie-break on id keeps the order
// total even when orderCol is not unique. Canonical display order is
// orderCol descending, id ascending; a Before cursor flips the fetch order
// and the caller reverses the fetched page back (ResolvePage does this).
// nullDefault, when non-empty, is a SQL literal substituted for NULL order
// values so nullable order columns still participate in the comparisons.
// Returns the predicate ("" without a cursor), the ORDER BY expression and
// the bind args starting at $argIdx.
func keysetClause(table, idCol, orderCol, nullDefault string, p Page, argIdx int) (cond, orderBy string, args []any) {
	expr := fmt.Sprintf("%s.%s", table, orderCol)
	anchorExpr := "anchor." + orderCol
	if nullDefault != "" {
		expr = fmt.Sprintf("COALESCE(%s, %s)", expr, nullDefault)
		anchorExpr = fmt.Sprintf("COALESCE(%s, %s)", anchorExpr, nullDefault)
	}
	anchor := fmt.Sprintf("(SELECT %s FROM %s anchor WHERE anchor.%s = $%d)", anchorExpr, table, idCol, argIdx)
	switch {
	case p.After != nil:
		cond = fmt.Sprintf("(%[1]s < %[2]s OR (%[1]s = %[2]s AND %[3]s.%[4]s > $%[5]d))",
			expr, anchor, table, idCol, argIdx)
		args = append(args, *p.After)
		orderBy = fmt.Sprintf("%s DESC, %s.%s ASC", expr, table, idCol)
	case p.Before != nil:
		cond = fmt.Sprintf("(%[1]s > %[2]s OR (%[1]s = %[2]s AND %[3]s.%[4]s < $%[5]d))",
			expr, anchor, table, idCol, argIdx)
		args = append(args, *p.Before)
		orderBy = fmt.Sprintf("%s ASC, %s.%s DESC", expr, table, idCol)
	default:
		orderBy = fmt.Sprintf("%s DESC, %s.%s ASC", expr, table, idCol)
	}
	return cond, orderBy, args
}

// ResolvePage applies the pageSize+1 sentinel rules to a fetched row set:
// detect adjacent pages, restore display order for Before cursors, truncate
// to the page size and extract the boundary cursors.
func ResolvePage[T any](items []T, p Page, total int, id func(T) int64) ([]T, PageInfo) {
	info := PageInfo{PerPage: p.PerPage, TotalItems: total}
	overflow := len(items) == p.PerPage+1

	switch {
	case p.After != nil:
		info.HasPrev = true
		info.HasNext = overflow
	case p.Before != nil:
		// Fetched in reversed order to select the adjacent page from the
		// "before" side; flip back into display order. The sentinel row is
		// the one farthest from the anchor, which after the flip sits at
		// the head, so that is the row to drop.
		reverse(items)
		if overflow {
			items = items[1:]
		}
		info.HasNext = true
		info.HasPrev = overflow
	default:
		info.HasNext = overflow
	}

	if len(items) > p.PerPage {
		items = items[:p.PerPage]
	}
	if len(items) > 0 {
		first, last := id(items[0]), id(items[len(items)-1])
		info.StartCursor = &first
		info.EndCursor = &last
	}
	return items, info
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
