package util

import (
	"net/url"
	"strings"
)

// SafeRedirectPath returns p when it is a same-origin relative path, or "" otherwise.
// Connect callbacks append it to the frontend URL, so absolute and
// protocol-relative targets are rejected.
func SafeRedirectPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		return ""
	}
	if strings.HasPrefix(p, "//") || strings.ContainsAny(p, "\\\r\n") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}

// AppendQuery adds key=value to rawURL, preserving any existing query string.
func AppendQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
