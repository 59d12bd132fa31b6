package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/sys"
)

// View is one rendering of the track list message.
type View struct {
	Title       string
	Description string
	Content     string
	Footer      string
	Fields      []discord.EmbedField
	Reactions   []string
	// ClearReactions asks for the old reactions to be removed before
	// Reactions are added.
	ClearReactions bool
}

// Embed renders the view for Discord.
func (v View) Embed() discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle(v.Title).
		SetDescription(v.Description).
		SetColor(colorDarkBlue)
	for _, f := range v.Fields {
		b.AddField(f.Name, f.Value, f.Inline != nil && *f.Inline)
	}
	if v.Footer != "" {
		b.SetFooterText(v.Footer)
	}
	return b.Build()
}

type page int

const (
	pageHome page = iota
	pageTracks
)

// Pager walks the catalog one reaction at a time: a home page listing the
// categories and fixed-size pages of each category's tracks.
type Pager struct {
	catalog *ost.Catalog
	cfg     sys.ListConfig

	page     page
	category ost.Category
	index    int
}

func NewPager(catalog *ost.Catalog, cfg sys.ListConfig) *Pager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &Pager{catalog: catalog, cfg: cfg}
}

// Home resets to the category overview.
func (p *Pager) Home() View {
	p.page = pageHome
	p.index = 0

	v := View{
		Title:          "Soundtracks",
		Description:    "React to list the tracks of a category.",
		Content:        fmt.Sprintf(sys.MsgCommandListHint, p.cfg.HomeEmoji),
		Reactions:      []string{p.cfg.HomeEmoji},
		ClearReactions: true,
	}
	for _, c := range p.catalog.Categories().All() {
		desc := c.Description
		if desc == "" {
			desc = "\u200b"
		}
		v.Fields = append(v.Fields, discord.EmbedField{Name: c.Name + "\t" + c.Emoji, Value: desc})
		v.Reactions = append(v.Reactions, c.Emoji)
	}
	return v
}

// React moves to the page symbol leads to. It reports false, leaving the
// state untouched, for symbols that mean nothing on the current page.
func (p *Pager) React(symbol string) (View, bool) {
	switch {
	case sameEmoji(symbol, p.cfg.HomeEmoji):
		return p.Home(), true
	case sameEmoji(symbol, p.cfg.NextEmoji):
		if p.page != pageTracks {
			return View{}, false
		}
		p.index = min(p.index+1, p.LastPage())
		return p.tracks(), true
	case sameEmoji(symbol, p.cfg.PreviousEmoji):
		if p.page != pageTracks {
			return View{}, false
		}
		p.index = max(p.index-1, 0)
		return p.tracks(), true
	}

	c, ok := p.catalog.Categories().ByEmoji(symbol)
	if !ok {
		return View{}, false
	}
	p.page = pageTracks
	p.category = c
	p.index = 0
	return p.tracks(), true
}

// LastPage is the index of the last track page of the open category.
func (p *Pager) LastPage() int {
	n := p.catalog.Len(p.category.Letter)
	return max((n+p.cfg.PageSize-1)/p.cfg.PageSize-1, 0)
}

func (p *Pager) HasNext() bool {
	return p.page == pageTracks && p.index < p.LastPage()
}

func (p *Pager) HasPrevious() bool {
	return p.page == pageTracks && p.index > 0
}

// Index returns the open track page, or -1 on the home page.
func (p *Pager) Index() int {
	if p.page != pageTracks {
		return -1
	}
	return p.index
}

func (p *Pager) tracks() View {
	list := p.catalog.Tracks(p.category.Letter)
	start := min(p.index*p.cfg.PageSize, len(list))
	end := min(start+p.cfg.PageSize, len(list))

	var b strings.Builder
	for i, t := range list[start:end] {
		id := ost.DisplayID{Letter: p.category.Letter, Index: start + i}
		fmt.Fprintf(&b, "`%s` [%s](%s) (%s)\n", id, t.Name(), t.URL, t.Length())
	}
	desc := b.String()
	if desc == "" {
		desc = "No tracks yet."
	}

	v := View{
		Title:          p.category.Name + " " + p.category.Emoji,
		Description:    desc,
		Content:        fmt.Sprintf(sys.MsgCommandListHint, p.cfg.HomeEmoji),
		Footer:         fmt.Sprintf("Page %d/%d", p.index+1, p.LastPage()+1),
		Reactions:      []string{p.cfg.HomeEmoji},
		ClearReactions: true,
	}
	if p.HasPrevious() {
		v.Reactions = append(v.Reactions, p.cfg.PreviousEmoji)
	}
	if p.HasNext() {
		v.Reactions = append(v.Reactions, p.cfg.NextEmoji)
	}
	return v
}

// sameEmoji ignores the emoji presentation selector Discord sometimes drops.
func sameEmoji(a, b string) bool {
	return strings.ReplaceAll(a, "\ufe0f", "") == strings.ReplaceAll(b, "\ufe0f", "")
}
