package api

import (
	"net/url"
	"strconv"
	"strings"

	"fabrika/internal/eav"
)

// parseListParams читает параметры листинга инстансов из query string.
func parseListParams(q url.Values) eav.ListParams {
	// limit
	limit := 50
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	// offset
	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	includeInactive := false
	switch strings.ToLower(strings.TrimSpace(q.Get("include_inactive"))) {
	case "1", "true", "yes":
		includeInactive = true
	}

	return eav.ListParams{
		Limit:           limit,
		Offset:          offset,
		IncludeInactive: includeInactive,
		Status:          strings.TrimSpace(q.Get("status")),
	}
}
