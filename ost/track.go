package ost

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Track is a single catalog entry. Title and Duration stay empty until the
// metadata lookup for URL completes.
type Track struct {
	URL      string
	Title    string
	Duration time.Duration
}

// Name returns the title, or the URL while metadata is still missing.
func (t Track) Name() string {
	if t.Title == "" {
		return t.URL
	}
	return t.Title
}

// Length formats the duration as MM:SS.
func (t Track) Length() string {
	if t.Duration <= 0 {
		return "--:--"
	}
	return FormatDuration(t.Duration)
}

// Resolved reports whether metadata has been filled in.
func (t Track) Resolved() bool {
	return t.Title != ""
}

// DisplayID identifies a track by category letter and position. Index is
// zero-based; the string form is one-based ("C3" is Index 2).
type DisplayID struct {
	Letter string
	Index  int
}

func (d DisplayID) String() string {
	return d.Letter + strconv.Itoa(d.Index+1)
}

// ParseDisplayID parses a "{letter}{position}" identifier such as "C3".
// The category itself is not validated here.
func ParseDisplayID(s string) (DisplayID, error) {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) < 2 || !unicode.IsLetter(r[0]) {
		return DisplayID{}, errors.Wrapf(ErrInvalidTrack, "malformed track id %q", s)
	}
	pos, err := strconv.Atoi(string(r[1:]))
	if err != nil || pos < 1 {
		return DisplayID{}, errors.Wrapf(ErrInvalidTrack, "malformed track id %q", s)
	}
	return DisplayID{Letter: strings.ToUpper(string(r[0])), Index: pos - 1}, nil
}

// Entry is a track together with its current position in the catalog.
type Entry struct {
	ID       DisplayID
	Category Category
	Track    Track
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s (%s)", e.ID, e.Track.Name(), e.Track.Length())
}
