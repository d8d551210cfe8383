package catalog

import (
	"context"
	"sync"

	"filmflare/internal/domain/catalog"
)

// Page sizes for infinite scrolling: a full first screen, then small steps.
const (
	FirstPageSize = 20
	NextPageSize  = 5
)

// PageFunc fetches one page.
type PageFunc func(ctx context.Context, limit, offset int) ([]catalog.Movie, error)

// Pager walks a paged listing, dropping movies already seen. An empty or
// failed page ends the walk until Reset.
type Pager struct {
	fetch PageFunc

	mu      sync.Mutex
	offset  int
	seen    map[int]bool
	items   []catalog.Movie
	hasMore bool
}

// NewPager creates a pager positioned at the first page.
func NewPager(fetch PageFunc) *Pager {
	p := &Pager{fetch: fetch}
	p.Reset()
	return p
}

// TopRatedPager pages through top rated movies for genres.
func (s *Service) TopRatedPager(genres []string) *Pager {
	selected := append([]string(nil), genres...)
	return NewPager(func(ctx context.Context, limit, offset int) ([]catalog.Movie, error) {
		return s.TopRated(ctx, selected, limit, offset)
	})
}

// SearchPager pages through search results for query.
func (s *Service) SearchPager(query string) *Pager {
	return NewPager(func(ctx context.Context, limit, offset int) ([]catalog.Movie, error) {
		return s.Search(ctx, query, limit, offset)
	})
}

// Next fetches the following page and returns the movies it added.
func (p *Pager) Next(ctx context.Context) ([]catalog.Movie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasMore {
		return nil, nil
	}
	limit := NextPageSize
	if p.offset == 0 {
		limit = FirstPageSize
	}

	page, err := p.fetch(ctx, limit, p.offset)
	if err != nil {
		p.hasMore = false
		return nil, err
	}
	if len(page) == 0 {
		p.hasMore = false
		return nil, nil
	}
	p.offset += limit

	var added []catalog.Movie
	for _, m := range page {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		added = append(added, m)
	}
	p.items = append(p.items, added...)
	return added, nil
}

// Items returns everything collected so far.
func (p *Pager) Items() []catalog.Movie {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]catalog.Movie(nil), p.items...)
}

// HasMore reports whether Next may return more movies.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Reset restarts from the first page, e.g. after the genre filter changed.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = 0
	p.seen = make(map[int]bool)
	p.items = nil
	p.hasMore = true
}
