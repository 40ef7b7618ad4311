package cache

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached response by request path and query parameters.
type CacheKey struct {
	// Path is the request path (e.g., "/search")
	Path string
	// Query holds the query parameters (e.g., {"q": "go", "page": "2"})
	Query url.Values
}

// String generates the canonical cache key.
// Format: path?name1=val1&name2=val2 with pairs sorted by name, then value.
//
// Example:
//
//	/search?a=1&b=2
func (k CacheKey) String() string {
	query := k.sortedQuery()
	if query == "" {
		return k.Path
	}
	return k.Path + "?" + query
}

// sortedQuery encodes the query parameters in a deterministic order.
// Repeated parameters are ordered by value as well, so "a=2&a=1" and
// "a=1&a=2" collapse to the same key.
func (k CacheKey) sortedQuery() string {
	if len(k.Query) == 0 {
		return ""
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		if len(values) == 0 {
			values = []string{""}
		}
		escaped := url.QueryEscape(name)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(escaped)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// KeyFromRequest builds the cache key for an inbound request. The path is taken
// in its escaped form so /a%2Fb and /a/b stay distinct. A query string that does
// not parse is an error: the parsed form would silently drop the bad pairs.
func KeyFromRequest(r *http.Request) (CacheKey, error) {
	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return CacheKey{}, fmt.Errorf("parse query %q: %w", r.URL.RawQuery, err)
	}
	return CacheKey{
		Path:  r.URL.EscapedPath(),
		Query: query,
	}, nil
}

// Canonicalize rewrites the request's query string into canonical order and
// returns the resulting key. Downstream lookup and capture see the same identity.
// When the query does not parse, r is left untouched and the error is returned.
func Canonicalize(r *http.Request) (string, error) {
	key, err := KeyFromRequest(r)
	if err != nil {
		return "", err
	}
	r.URL.RawQuery = key.sortedQuery()
	if r.RequestURI != "" {
		r.RequestURI = r.URL.RequestURI()
	}
	return key.String(), nil
}

// isCacheableMethod reports whether requests with this method take part in caching.
func isCacheableMethod(method string) bool {
	return method == http.MethodGet
}
