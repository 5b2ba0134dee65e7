package fetch

import (
	"bytes"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/hostcrawl/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Default link extraction settings.
const (
	// DefaultLinkSelector selects the elements whose href is followed.
	DefaultLinkSelector = "a[href]"

	// DefaultMaxLinks caps the number of links taken from a single page.
	DefaultMaxLinks = 500
)

// skippedSchemes are href prefixes that never lead to a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Page is a fetched HTTP response. It implements crawler.Document.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the response body, capped at the fetcher's size limit.
	Body []byte

	// Truncated is true when the body was cut at the size limit.
	Truncated bool

	// Hash is the hex SHA-256 of Body.
	Hash string

	// FetchedAt is when the response was received.
	FetchedAt time.Time

	// selector and maxLinks control Links.
	selector string
	maxLinks int

	// title is filled by the first parse of Body.
	title    string
	titleSet bool
}

// IsHTML reports whether the page declares an HTML content type.
// A missing content type counts as HTML.
func (p *Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Links returns the absolute URLs the page links to, in document order,
// without fragments or duplicates. Non-HTML pages have no links.
//
// Design decision: We decode with x/net/html/charset before parsing because
// pages served as Shift_JIS or ISO-8859-1 would otherwise produce mangled
// non-ASCII paths.
func (p *Page) Links() ([]string, error) {
	if !p.IsHTML() {
		return nil, nil
	}

	doc, err := p.document()
	if err != nil {
		p.titleSet = true
		return nil, err
	}
	p.setTitle(doc)

	base, err := url.Parse(p.FinalURL)
	if err != nil || p.FinalURL == "" {
		base, err = url.Parse(p.URL)
		if err != nil {
			return nil, err
		}
	}
	// <base href> overrides the document URL.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	selector := p.selector
	if selector == "" {
		selector = DefaultLinkSelector
	}
	maxLinks := p.maxLinks
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		resolved := resolveLink(base, href)
		if resolved == "" {
			return true
		}
		if _, dup := seen[resolved]; dup {
			return true
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
		return len(links) < maxLinks
	})

	return links, nil
}

// Title returns the text of the page's <title> element. It reuses the
// parse done by Links when there was one.
func (p *Page) Title() string {
	if p.titleSet || !p.IsHTML() {
		return p.title
	}
	doc, err := p.document()
	p.titleSet = true
	if err != nil {
		return ""
	}
	p.setTitle(doc)
	return p.title
}

func (p *Page) setTitle(doc *goquery.Document) {
	p.title = strings.TrimSpace(doc.Find("title").First().Text())
	p.titleSet = true
}

// Info returns the metadata a crawl report keeps of the page.
func (p *Page) Info() model.PageInfo {
	info := p.meta()
	info.Title = p.Title()
	return info
}

// meta is Info without the title, which needs the body parsed.
func (p *Page) meta() model.PageInfo {
	info := model.PageInfo{
		URL:         p.URL,
		StatusCode:  p.StatusCode,
		ContentType: p.ContentType,
		Size:        int64(len(p.Body)),
		Truncated:   p.Truncated,
		Hash:        p.Hash,
	}
	if p.FinalURL != p.URL {
		info.FinalURL = p.FinalURL
	}
	return info
}

func (p *Page) document() (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// resolveLink resolves href against base and drops the fragment.
// It returns "" for links that cannot be crawled.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
