package ost

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Metadata is what a Resolver learns about a URL. URL is the canonical page
// to store (e.g. a Spotify link rewritten to a YouTube one) and may be empty
// when the input URL is kept as is.
type Metadata struct {
	URL       string
	Title     string
	Duration  time.Duration
	StreamURL string
}

// Resolver looks up track metadata for a URL.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Metadata, error)
}

// Catalog maps every category to its ordered track list.
type Catalog struct {
	mu        sync.RWMutex
	persistMu sync.Mutex

	categories *Categories
	tracks     map[string][]Track
	resolver   Resolver
	now        func() time.Time
}

// NewCatalog returns an empty catalog with an entry for each category.
func NewCatalog(categories *Categories, resolver Resolver) *Catalog {
	c := &Catalog{
		categories: categories,
		tracks:     make(map[string][]Track, categories.Len()),
		resolver:   resolver,
		now:        time.Now,
	}
	for _, cat := range categories.All() {
		c.tracks[cat.Letter] = []Track{}
	}
	return c
}

// Categories returns the category set the catalog was built with.
func (c *Catalog) Categories() *Categories {
	return c.categories
}

// Add resolves url and appends it to the category named by token. The
// catalog is left untouched if either step fails.
func (c *Catalog) Add(ctx context.Context, token, url string) (Entry, error) {
	cat, ok := c.categories.Lookup(token)
	if !ok {
		return Entry{}, errors.Wrapf(ErrInvalidCategory, "%q is not a category", token)
	}

	md, err := c.resolver.Resolve(ctx, url)
	if err != nil {
		if errors.Is(err, ErrResolution) {
			return Entry{}, err
		}
		return Entry{}, errors.Mark(errors.Wrapf(err, "resolve %s", url), ErrResolution)
	}

	t := Track{URL: url, Title: md.Title, Duration: md.Duration}
	if md.URL != "" {
		t.URL = md.URL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks[cat.Letter] = append(c.tracks[cat.Letter], t)
	return Entry{
		ID:       DisplayID{Letter: cat.Letter, Index: len(c.tracks[cat.Letter]) - 1},
		Category: cat,
		Track:    t,
	}, nil
}

// Remove deletes the track named by displayID. Later tracks of the same
// category move up one position.
func (c *Catalog) Remove(displayID string) (Entry, error) {
	id, err := ParseDisplayID(displayID)
	if err != nil {
		return Entry{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cat, list, err := c.locate(id)
	if err != nil {
		return Entry{}, err
	}

	removed := list[id.Index]
	c.tracks[cat.Letter] = slices.Delete(list, id.Index, id.Index+1)
	return Entry{ID: id, Category: cat, Track: removed}, nil
}

// Lookup returns the entry named by displayID.
func (c *Catalog) Lookup(displayID string) (Entry, error) {
	id, err := ParseDisplayID(displayID)
	if err != nil {
		return Entry{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	cat, list, err := c.locate(id)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: id, Category: cat, Track: list[id.Index]}, nil
}

// locate must be called with mu held.
func (c *Catalog) locate(id DisplayID) (Category, []Track, error) {
	cat, ok := c.categories.Lookup(id.Letter)
	if !ok {
		return Category{}, nil, errors.Wrapf(ErrInvalidTrack, "unknown category in %s", id)
	}
	list := c.tracks[cat.Letter]
	if id.Index < 0 || id.Index >= len(list) {
		return Category{}, nil, errors.Wrapf(ErrInvalidTrack, "%s is out of range (%d tracks)", id, len(list))
	}
	return cat, list, nil
}

// Track returns the track at index in the given category.
func (c *Catalog) Track(letter string, index int) (Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.tracks[letter]
	if index < 0 || index >= len(list) {
		return Track{}, false
	}
	return list[index], true
}

// IndexOf returns the position of the first track with url in the category,
// or -1.
func (c *Catalog) IndexOf(letter, url string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.IndexFunc(c.tracks[letter], func(t Track) bool { return t.URL == url })
}

// Tracks returns a copy of the category's track list.
func (c *Catalog) Tracks(letter string) []Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tracks[letter])
}

// Len returns the number of tracks filed under letter.
func (c *Catalog) Len(letter string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks[letter])
}

// List returns every track grouped by category, categories sorted by name.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Entry
	for _, cat := range c.categories.Sorted() {
		for i, t := range c.tracks[cat.Letter] {
			out = append(out, Entry{
				ID:       DisplayID{Letter: cat.Letter, Index: i},
				Category: cat,
				Track:    t,
			})
		}
	}
	return out
}

// Pending returns the tracks whose metadata has not been resolved yet.
func (c *Catalog) Pending() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Entry
	for _, cat := range c.categories.All() {
		for i, t := range c.tracks[cat.Letter] {
			if !t.Resolved() {
				out = append(out, Entry{ID: DisplayID{Letter: cat.Letter, Index: i}, Category: cat, Track: t})
			}
		}
	}
	return out
}

// SetMetadata fills in metadata for every track of the category stored under
// url. It reports false when no such track exists anymore.
func (c *Catalog) SetMetadata(letter, url string, md Metadata) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	list := c.tracks[letter]
	for i := range list {
		if list[i].URL != url {
			continue
		}
		found = true
		list[i].Title = md.Title
		list[i].Duration = md.Duration
		if md.URL != "" {
			list[i].URL = md.URL
		}
	}
	return found
}

// CategoryTotal summarizes one category.
type CategoryTotal struct {
	Category Category
	Count    int
	Duration time.Duration
}

// Totals summarizes the whole catalog.
type Totals struct {
	Count       int
	Duration    time.Duration
	PerCategory []CategoryTotal
}

// Totals counts tracks and sums durations, per category in declaration order.
func (c *Catalog) Totals() Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var tot Totals
	for _, cat := range c.categories.All() {
		ct := CategoryTotal{Category: cat}
		for _, t := range c.tracks[cat.Letter] {
			ct.Count++
			ct.Duration += t.Duration
		}
		tot.Count += ct.Count
		tot.Duration += ct.Duration
		tot.PerCategory = append(tot.PerCategory, ct)
	}
	return tot
}
