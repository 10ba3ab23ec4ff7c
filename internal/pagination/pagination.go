package pagination

import (
	"fmt"

	"catalog/browser/internal/domain"
)

// MaxWindow is the number of page controls shown at once.
const MaxWindow = 5

// Descriptor is everything a pager control needs to render.
type Descriptor struct {
	Pages      []int  `json:"pages"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	HasNext    bool   `json:"hasNext"`
	HasPrev    bool   `json:"hasPrev"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	Total      int    `json:"total"`
	Range      string `json:"range"` // "X to Y of Z"
}

// TotalPages returns the page count for totalCount rows at limit per page.
func TotalPages(totalCount, limit int) int {
	if totalCount <= 0 || limit <= 0 {
		return 0
	}
	return (totalCount + limit - 1) / limit
}

// Clamp forces page into [1, totalPages]. With no pages known, page 1 is used.
func Clamp(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Window returns at most MaxWindow page numbers around page.
func Window(page, totalPages int) []int {
	if totalPages < 1 {
		return []int{}
	}
	page = Clamp(page, totalPages)

	var start, end int
	switch {
	case totalPages <= MaxWindow:
		start, end = 1, totalPages
	case page <= 3:
		start, end = 1, MaxWindow
	case page >= totalPages-2:
		start, end = totalPages-MaxWindow+1, totalPages
	default:
		start, end = page-2, page+2
	}

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Describe builds the pager descriptor from server pagination metadata.
func Describe(p domain.Pagination) Descriptor {
	totalPages := p.TotalPages
	if totalPages == 0 && p.TotalCount > 0 {
		totalPages = TotalPages(p.TotalCount, p.Limit)
	}
	page := Clamp(p.Page, totalPages)

	from, to := 0, 0
	if p.TotalCount > 0 && p.Limit > 0 {
		from = (page-1)*p.Limit + 1
		to = min(page*p.Limit, p.TotalCount)
	}

	return Descriptor{
		Pages:      Window(page, totalPages),
		Page:       page,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
		From:       from,
		To:         to,
		Total:      p.TotalCount,
		Range:      fmt.Sprintf("%d to %d of %d", from, to, p.TotalCount),
	}
}
