package pkg

import (
	"time"
)

const (
	DEFAULT_PAGE       = 1
	DEFAULT_PAGE_LIMIT = 20
	MAX_PAGE_LIMIT     = 100
)

// SameCalendarDay compares the calendar dates of a and b as seen in loc. A nil loc means UTC.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}

	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NormalizePage clamps page and limit to the defaults used by every paginated listing.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DEFAULT_PAGE
	}
	if limit < 1 {
		limit = DEFAULT_PAGE_LIMIT
	}
	if limit > MAX_PAGE_LIMIT {
		limit = MAX_PAGE_LIMIT
	}
	return page, limit
}

func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
