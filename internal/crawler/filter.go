package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// NewPatternFilter returns a Filter driven by URL path glob patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, the URL is rejected
//  2. If follow patterns are set and the path matches none, it is rejected
//  3. Otherwise it is accepted
//
// Identifiers that do not parse as URLs are accepted so that they reach the
// host resolver and get recorded as malformed.
func NewPatternFilter(ignore, follow []string) Filter {
	if len(ignore) == 0 && len(follow) == 0 {
		return nil
	}
	return func(id string) bool {
		u, err := url.Parse(id)
		if err != nil {
			return true
		}
		path := u.Path
		if path == "" {
			path = "/"
		}

		for _, pattern := range ignore {
			if matchPattern(pattern, path) {
				return false
			}
		}
		if len(follow) == 0 {
			return true
		}
		for _, pattern := range follow {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}
}

// SameHostFilter accepts only URLs on the same host name as seed; ports are
// ignored, matching URLHostResolver.
// Unparseable identifiers are accepted, see NewPatternFilter.
func SameHostFilter(seed string) Filter {
	base, err := url.Parse(seed)
	if err != nil {
		return nil
	}
	return func(id string) bool {
		u, err := url.Parse(id)
		if err != nil {
			return true
		}
		return strings.EqualFold(u.Hostname(), base.Hostname())
	}
}

// AllOf combines filters; an identifier must pass every non-nil one.
func AllOf(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(id string) bool {
		for _, f := range active {
			if !f(id) {
				return false
			}
		}
		return true
	}
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(path, pattern[1:]) {
		return true
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Slash-free patterns are tried against the last segment as well.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		return err == nil && matched
	}
	return false
}
