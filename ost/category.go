package ost

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// Category is one mood tag partitioning the catalog.
type Category struct {
	Letter      string
	Name        string
	Emoji       string
	Description string
}

// Categories is the immutable set of categories known to the bot.
type Categories struct {
	list     []Category
	byLetter map[string]int
}

// NewCategories validates and indexes the given categories. Letters are
// normalized to upper case and must be unique single characters.
func NewCategories(cs ...Category) (*Categories, error) {
	if len(cs) == 0 {
		return nil, errors.New("at least one category is required")
	}

	set := &Categories{
		list:     make([]Category, 0, len(cs)),
		byLetter: make(map[string]int, len(cs)),
	}
	emojis := make(map[string]bool, len(cs))

	for _, c := range cs {
		c.Letter = strings.ToUpper(strings.TrimSpace(c.Letter))
		if len([]rune(c.Letter)) != 1 {
			return nil, errors.Newf("category %q: letter must be a single character", c.Name)
		}
		if _, dup := set.byLetter[c.Letter]; dup {
			return nil, errors.Newf("category letter %q declared twice", c.Letter)
		}
		if c.Emoji != "" {
			if emojis[c.Emoji] {
				return nil, errors.Newf("category emoji %q declared twice", c.Emoji)
			}
			emojis[c.Emoji] = true
		}
		set.byLetter[c.Letter] = len(set.list)
		set.list = append(set.list, c)
	}
	return set, nil
}

// All returns the categories in declaration order.
func (s *Categories) All() []Category {
	return slices.Clone(s.list)
}

// Sorted returns the categories ordered by name.
func (s *Categories) Sorted() []Category {
	out := slices.Clone(s.list)
	slices.SortStableFunc(out, func(a, b Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Len returns the number of categories.
func (s *Categories) Len() int { return len(s.list) }

// Lookup resolves a command token to a category. The token may be the
// letter or the full name, compared case-insensitively.
func (s *Categories) Lookup(token string) (Category, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Category{}, false
	}
	if i, ok := s.byLetter[strings.ToUpper(token)]; ok {
		return s.list[i], true
	}
	for _, c := range s.list {
		if strings.EqualFold(c.Name, token) {
			return c, true
		}
	}
	return Category{}, false
}

// ByEmoji finds the category whose reaction symbol is emoji, with or
// without a trailing presentation selector.
func (s *Categories) ByEmoji(emoji string) (Category, bool) {
	for _, c := range s.list {
		if c.Emoji != "" && strings.ReplaceAll(c.Emoji, "\ufe0f", "") == strings.ReplaceAll(emoji, "\ufe0f", "") {
			return c, true
		}
	}
	return Category{}, false
}
