package ost

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	md    map[string]Metadata
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, url string) (Metadata, error) {
	s.calls++
	if s.err != nil {
		return Metadata{}, s.err
	}
	if md, ok := s.md[url]; ok {
		return md, nil
	}
	return Metadata{Title: "title of " + url, Duration: 90 * time.Second}, nil
}

func testCategories(t *testing.T) *Categories {
	t.Helper()
	cats, err := NewCategories(
		Category{Letter: "C", Name: "Combate", Emoji: "⚔️", Description: "Lutas"},
		Category{Letter: "a", Name: "Aparições", Emoji: "👻", Description: "Entradas"},
		Category{Letter: "D", Name: "Drama", Emoji: "🎭", Description: "Cenas tensas"},
	)
	require.NoError(t, err)
	return cats
}

func newTestCatalog(t *testing.T, r Resolver) *Catalog {
	t.Helper()
	if r == nil {
		r = &stubResolver{}
	}
	return NewCatalog(testCategories(t), r)
}

// appendTracks files unresolved urls under letter through the list loader.
func appendTracks(t *testing.T, c *Catalog, letter string, urls ...string) {
	t.Helper()
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(letter + ":" + u + "\n")
	}
	_, err := c.Load(strings.NewReader(b.String()))
	require.NoError(t, err)
}

func TestNewCategories_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cats    []Category
		wantErr bool
	}{
		{name: "empty", cats: nil, wantErr: true},
		{name: "multi-letter key", cats: []Category{{Letter: "CC", Name: "Combate"}}, wantErr: true},
		{
			name:    "duplicate letter ignoring case",
			cats:    []Category{{Letter: "c", Name: "Combate"}, {Letter: "C", Name: "Caos"}},
			wantErr: true,
		},
		{
			name:    "duplicate emoji",
			cats:    []Category{{Letter: "C", Name: "Combate", Emoji: "⚔️"}, {Letter: "D", Name: "Drama", Emoji: "⚔️"}},
			wantErr: true,
		},
		{name: "valid", cats: []Category{{Letter: "c", Name: "Combate", Emoji: "⚔️"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCategories(tt.cats...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCategories_Lookup(t *testing.T) {
	cats := testCategories(t)

	tests := []struct {
		token  string
		letter string
		ok     bool
	}{
		{"C", "C", true},
		{"c", "C", true},
		{"A", "A", true},
		{"drama", "D", true},
		{"X", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			cat, ok := cats.Lookup(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.letter, cat.Letter)
		})
	}
}

func TestCatalog_EveryCategoryHasEntry(t *testing.T) {
	c := newTestCatalog(t, nil)
	for _, cat := range c.Categories().All() {
		assert.NotNil(t, c.Tracks(cat.Letter), cat.Letter)
		assert.Equal(t, 0, c.Len(cat.Letter))
	}
}

func TestCatalog_Add(t *testing.T) {
	r := &stubResolver{md: map[string]Metadata{
		"https://youtu.be/a": {Title: "Battle Theme", Duration: 3*time.Minute + 5*time.Second},
	}}
	c := newTestCatalog(t, r)

	e, err := c.Add(context.Background(), "c", "https://youtu.be/a")
	require.NoError(t, err)

	assert.Equal(t, "C1", e.ID.String())
	assert.Equal(t, "Battle Theme", e.Track.Title)
	assert.Equal(t, "03:05", e.Track.Length())
	assert.Equal(t, 1, c.Len("C"))
}

func TestCatalog_Add_StoresRewrittenURL(t *testing.T) {
	spotify := "https://open.spotify.com/track/abc"
	r := &stubResolver{md: map[string]Metadata{
		spotify: {URL: "https://www.youtube.com/watch?v=xyz", Title: "Song"},
	}}
	c := newTestCatalog(t, r)

	e, err := c.Add(context.Background(), "D", spotify)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz", e.Track.URL)
}

func TestCatalog_Add_InvalidCategoryLeavesCatalogUnchanged(t *testing.T) {
	r := &stubResolver{}
	c := newTestCatalog(t, r)
	appendTracks(t, c, "C", "https://youtu.be/keep")
	before := c.List()

	_, err := c.Add(context.Background(), "X", "http://example.com/track")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCategory))
	assert.Equal(t, before, c.List())
	assert.Zero(t, r.calls, "resolver must not be called for an unknown category")
}

func TestCatalog_Add_ResolutionFailure(t *testing.T) {
	c := newTestCatalog(t, &stubResolver{err: errors.New("unsupported url")})

	_, err := c.Add(context.Background(), "C", "https://example.com/nothing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolution))
	assert.Equal(t, 0, c.Len("C"))
}

func TestCatalog_Remove_RenumbersContiguously(t *testing.T) {
	c := newTestCatalog(t, nil)
	for _, u := range []string{"u0", "u1", "u2", "u3"} {
		appendTracks(t, c, "C", u)
	}

	e, err := c.Remove("C2")
	require.NoError(t, err)
	assert.Equal(t, "u1", e.Track.URL)

	var ids, urls []string
	for _, entry := range c.List() {
		if entry.Category.Letter != "C" {
			continue
		}
		ids = append(ids, entry.ID.String())
		urls = append(urls, entry.Track.URL)
	}
	assert.Equal(t, []string{"C1", "C2", "C3"}, ids)
	assert.Equal(t, []string{"u0", "u2", "u3"}, urls)
}

func TestCatalog_Remove_Invalid(t *testing.T) {
	c := newTestCatalog(t, nil)
	for _, u := range []string{"u0", "u1", "u2"} {
		appendTracks(t, c, "C", u)
	}
	before := c.List()

	for _, id := range []string{"C5", "C0", "X1", "C", "Cx", ""} {
		t.Run(id, func(t *testing.T) {
			_, err := c.Remove(id)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTrack))
			assert.Equal(t, before, c.List())
		})
	}
}

func TestCatalog_List_SortedByCategoryName(t *testing.T) {
	c := newTestCatalog(t, nil)
	appendTracks(t, c, "D", "d0")
	appendTracks(t, c, "C", "c0")
	appendTracks(t, c, "A", "a0")
	appendTracks(t, c, "C", "c1")

	var got []string
	for _, e := range c.List() {
		got = append(got, e.ID.String()+"="+e.Track.URL)
	}
	assert.Equal(t, []string{"A1=a0", "C1=c0", "C2=c1", "D1=d0"}, got)
}

func TestCatalog_SetMetadata(t *testing.T) {
	c := newTestCatalog(t, nil)
	appendTracks(t, c, "C", "u0")

	ok := c.SetMetadata("C", "u0", Metadata{Title: "Resolved", Duration: time.Minute})
	assert.True(t, ok)
	assert.Empty(t, c.Pending())

	tr, found := c.Track("C", 0)
	require.True(t, found)
	assert.Equal(t, "Resolved", tr.Title)

	assert.False(t, c.SetMetadata("C", "gone", Metadata{Title: "x"}))
}

func TestCatalog_Totals(t *testing.T) {
	c := newTestCatalog(t, nil)
	appendTracks(t, c, "C", "c0")
	appendTracks(t, c, "C", "c1")
	appendTracks(t, c, "D", "d0")
	c.SetMetadata("C", "c0", Metadata{Title: "c0", Duration: 2 * time.Minute})
	c.SetMetadata("C", "c1", Metadata{Title: "c1", Duration: time.Minute})
	c.SetMetadata("D", "d0", Metadata{Title: "d0", Duration: time.Hour})

	tot := c.Totals()
	assert.Equal(t, 3, tot.Count)
	assert.Equal(t, "01:03:00", FormatDurationHours(tot.Duration))
	require.Len(t, tot.PerCategory, 3)
	assert.Equal(t, "C", tot.PerCategory[0].Category.Letter)
	assert.Equal(t, 2, tot.PerCategory[0].Count)
	assert.Equal(t, 3*time.Minute, tot.PerCategory[0].Duration)
	assert.Equal(t, 0, tot.PerCategory[1].Count)
}

func TestCatalog_IndexOf(t *testing.T) {
	c := newTestCatalog(t, nil)
	appendTracks(t, c, "C", "c0", "c1", "c2")

	assert.Equal(t, 1, c.IndexOf("C", "c1"))
	_, err := c.Remove("C1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.IndexOf("C", "c1"))
	assert.Equal(t, -1, c.IndexOf("C", "c0"))
	assert.Equal(t, -1, c.IndexOf("D", "c1"))
}
