package fetch

import (
	"context"
	"sync"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
)

// Recorder remembers the metadata of every *Page fetched through it, so
// reports can show status codes and titles for downloaded URLs.
//
// Design decision: The crawler core only tracks identifiers. Recording in a
// Fetcher decorator keeps page metadata out of crawler.Result without a
// second pass over the network.
type Recorder struct {
	next  crawler.Fetcher
	pages sync.Map // map[string]model.PageInfo
}

// NewRecorder wraps next.
func NewRecorder(next crawler.Fetcher) *Recorder {
	return &Recorder{next: next}
}

// Fetch delegates to the wrapped fetcher and records successful pages.
// The title is added once the page's links are extracted, so the body is
// parsed once and never on the fetch worker.
func (r *Recorder) Fetch(ctx context.Context, id string) (crawler.Document, error) {
	doc, err := r.next.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	page, ok := doc.(*Page)
	if !ok {
		return doc, nil
	}
	r.pages.Store(id, page.meta())
	return &recordedPage{Page: page, id: id, recorder: r}, nil
}

// recordedPage completes the recorded metadata when links are extracted.
type recordedPage struct {
	*Page
	id       string
	recorder *Recorder
}

// Links extracts the page's links and records its title.
func (p *recordedPage) Links() ([]string, error) {
	links, err := p.Page.Links()
	p.recorder.pages.Store(p.id, p.Page.Info())
	return links, err
}

// Lookup returns the recorded metadata for id. It has the signature of
// model.PageLookup.
func (r *Recorder) Lookup(id string) (model.PageInfo, bool) {
	v, ok := r.pages.Load(id)
	if !ok {
		return model.PageInfo{}, false
	}
	return v.(model.PageInfo), true //nolint:forcetypeassert // only PageInfo is stored
}
