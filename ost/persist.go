package ost

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultDir is where saved catalogs go when no directory is configured.
const DefaultDir = "soundtracks"

var blankRuns = regexp.MustCompile(`\n+`)

// FileName returns the dated file name Persist writes to.
func (c *Catalog) FileName() string {
	return "ost-" + c.now().Format("02-01-2006") + ".txt"
}

// Persist writes the catalog as LETTER:url lines to dir/ost-DD-MM-YYYY.txt,
// creating dir if needed, and returns the written path.
func (c *Catalog) Persist(dir string) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	content := c.encode()
	path := filepath.Join(dir, c.FileName())
	c.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// encode must be called with mu held.
func (c *Catalog) encode() string {
	var b strings.Builder
	for _, cat := range c.categories.All() {
		for _, t := range c.tracks[cat.Letter] {
			b.WriteString(cat.Letter)
			b.WriteByte(':')
			b.WriteString(strings.TrimSpace(t.URL))
			b.WriteByte('\n')
		}
	}
	return blankRuns.ReplaceAllString(b.String(), "\n")
}

// Load appends the tracks listed in r. Each non-blank line is KEY:url where
// the first character of KEY is the category letter. Nothing is added if any
// line is invalid.
func (c *Catalog) Load(r io.Reader) (int, error) {
	type line struct{ letter, url string }
	var parsed []line

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		key, url, ok := strings.Cut(text, ":")
		key, url = strings.TrimSpace(key), strings.TrimSpace(url)
		if !ok || url == "" {
			return 0, errors.Newf("line %d: expected KEY:url", n)
		}
		if key == "" {
			return 0, errors.Wrapf(ErrInvalidCategory, "line %d: empty key", n)
		}

		cat, found := c.categories.Lookup(string([]rune(key)[0]))
		if !found {
			return 0, errors.Wrapf(ErrInvalidCategory, "line %d: %q is not a category", n, key)
		}
		parsed = append(parsed, line{cat.Letter, url})
	}
	if err := sc.Err(); err != nil {
		return 0, errors.Wrap(err, "read track list")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range parsed {
		c.tracks[l.letter] = append(c.tracks[l.letter], Track{URL: l.url})
	}
	return len(parsed), nil
}

// LoadFile loads a track list from path.
func (c *Catalog) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return c.Load(f)
}
