package model

import (
	"mime"
	"strings"
)

// PageInfo is what a report keeps of a downloaded page.
//
// Design decision: Reports hold metadata only, never bodies. A crawl can
// download thousands of pages and the history database would otherwise grow
// with every run; the hash is enough to detect changed content.
type PageInfo struct {
	// URL is the crawled identifier.
	URL string `json:"url"`

	// FinalURL is the URL after redirects. Omitted when equal to URL.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the Content-Type response header.
	ContentType string `json:"content_type,omitempty"`

	// Title is the text of the <title> element, empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Size is the number of body bytes read.
	Size int64 `json:"size"`

	// Truncated is true when the body hit the size limit.
	Truncated bool `json:"truncated,omitempty"`

	// Hash is the hex SHA-256 of the body that was read.
	Hash string `json:"hash,omitempty"`
}

// MediaType returns the content type without parameters, lower-cased.
// It returns "" when the content type is missing or unparseable.
func (p PageInfo) MediaType() string {
	if p.ContentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// Redirected reports whether the page was served from another URL.
func (p PageInfo) Redirected() bool {
	return p.FinalURL != "" && p.FinalURL != p.URL
}
