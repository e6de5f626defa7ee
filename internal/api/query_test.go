package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseListParamsDefaults(t *testing.T) {
	p := parseListParams(url.Values{})
	require.Equal(t, 50, p.Limit)
	require.Equal(t, 0, p.Offset)
	require.False(t, p.IncludeInactive)
	require.Equal(t, "", p.Status)
}

func TestParseListParamsUnderscoreAliases(t *testing.T) {
	q := url.Values{}
	q.Set("_limit", "10")
	q.Set("_offset", "20")
	p := parseListParams(q)
	require.Equal(t, 10, p.Limit)
	require.Equal(t, 20, p.Offset)

	q = url.Values{}
	q.Set("limit", "5")
	q.Set("offset", "7")
	p = parseListParams(q)
	require.Equal(t, 5, p.Limit)
	require.Equal(t, 7, p.Offset)
}

func TestParseListParamsClampsGarbage(t *testing.T) {
	q := url.Values{}
	q.Set("limit", "99999") // за пределом — остаётся дефолт
	q.Set("offset", "-5")
	p := parseListParams(q)
	require.Equal(t, 50, p.Limit)
	require.Equal(t, 0, p.Offset)

	q.Set("limit", "abc")
	p = parseListParams(q)
	require.Equal(t, 50, p.Limit)
}

func TestParseListParamsFlags(t *testing.T) {
	q := url.Values{}
	q.Set("include_inactive", "true")
	q.Set("status", " DRAFT ")
	p := parseListParams(q)
	require.True(t, p.IncludeInactive)
	require.Equal(t, "DRAFT", p.Status)
}
