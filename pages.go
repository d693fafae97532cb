package main

import (
	"net/url"
	"strconv"
	"strings"
)

// HasMore reports whether a page after page exists. A nil total means the
// listing has no known end.
func HasMore(page int, totalPages *int) bool {
	if totalPages == nil {
		return true
	}
	return page < *totalPages
}

// ParsePage reads a 1-based page number, falling back to 1.
func ParsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// SearchURL reflects keyword into the search parameter of base so the
// current search can be shared or bookmarked.
func SearchURL(base string, keyword string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		q.Del("search")
	} else {
		q.Set("search", keyword)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// KeywordFromURL returns the keyword encoded in the search parameter.
func KeywordFromURL(u *url.URL) string {
	return strings.TrimSpace(u.Query().Get("search"))
}
