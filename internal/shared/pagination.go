package shared

import (
	"net/url"
	"strconv"
)

const (
	// DefaultPageLimit applies when the caller omits the limit parameter.
	DefaultPageLimit = 20
	// MaxPageLimit caps a single listing request.
	MaxPageLimit = 100
)

// PageRequest carries limit/offset windowing for listings.
type PageRequest struct {
	Limit  int
	Offset int
}

// ParsePageRequest reads limit/offset query parameters applying defaults and caps.
func ParsePageRequest(query url.Values) PageRequest {
	page := PageRequest{Limit: DefaultPageLimit}
	if raw := query.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page.Limit = v
		}
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}
	if raw := query.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page.Offset = v
		}
	}
	return page
}
