// Package urlctx extracts platform identifiers from the page location a host
// application opened. Micro-app entry links look like
//
//	https://host/subapp/h5?corpId=ding123&agAppId=42
//	https://host/subapp/#/home?appId=cli_a1&agAppId=42
//
// where agAppId is the business routing id and the other key names the
// platform-side app or corp.
package urlctx

import (
	"net/url"
	"strings"
)

// BusinessAppIDKey is the query name carrying the platform-independent business id.
const BusinessAppIDKey = "agAppId"

// Identifiers is the business identifier pair resolved from a location.
type Identifiers struct {
	BusinessAppID string
	Key           string // platform-specific query name, e.g. "corpId" or "appId"
	Value         string
}

// Map returns the identifiers keyed by their query names.
func (id Identifiers) Map() map[string]string {
	m := map[string]string{BusinessAppIDKey: id.BusinessAppID}
	if id.Key != "" {
		m[id.Key] = id.Value
	}
	return m
}

// Resolve reads agAppId and key from location. The regular query string wins;
// when it is empty the query embedded in the fragment (after its first '?') is
// used instead. Missing or malformed input yields empty strings.
func Resolve(location, key string) Identifiers {
	values := parse(rawQuery(location))
	id := Identifiers{
		BusinessAppID: first(values, BusinessAppIDKey),
		Key:           key,
	}
	if key != "" {
		id.Value = first(values, key)
	}
	return id
}

// rawQuery picks the query text to parse, without the leading '?'.
func rawQuery(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return fallbackQuery(location)
	}
	if u.RawQuery != "" {
		return u.RawQuery
	}
	frag := u.EscapedFragment()
	if i := strings.IndexByte(frag, '?'); i >= 0 {
		return frag[i+1:]
	}
	return ""
}

// fallbackQuery handles locations url.Parse rejects (stray '%' and the like)
// by splitting on the raw delimiters.
func fallbackQuery(location string) string {
	base, frag, _ := strings.Cut(location, "#")
	if _, q, ok := strings.Cut(base, "?"); ok && q != "" {
		return q
	}
	if _, q, ok := strings.Cut(frag, "?"); ok {
		return q
	}
	return ""
}

func parse(raw string) url.Values {
	if raw == "" {
		return url.Values{}
	}
	// ParseQuery keeps every pair it could decode even when it reports an error.
	values, _ := url.ParseQuery(raw)
	if values == nil {
		return url.Values{}
	}
	return values
}

func first(values url.Values, key string) string {
	for _, v := range values[key] {
		if v != "" {
			return v
		}
	}
	return ""
}
