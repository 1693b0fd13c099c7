// Package feed fetches RSS and Atom feeds and decides how many of their
// items are unread since the user last looked.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Item is one entry of a feed, newest first as the feed lists them.
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishDate time.Time `json:"publish_date"`
}

type Channel struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Source returns the filtered items of the feed at url.
type Source interface {
	Fetch(ctx context.Context, url, exclude, include string) (Channel, error)
}

// Parser is the HTTP Source.
type Parser struct {
	client    *http.Client
	userAgent string
}

// NewParser creates a Parser. If timeout is <= 0, it defaults to 30s.
func NewParser(timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Parser{
		client:    &http.Client{Timeout: timeout},
		userAgent: "seedlink",
	}
}

func (p *Parser) Fetch(ctx context.Context, url, exclude, include string) (Channel, error) {
	filter, err := NewFilter(exclude, include)
	if err != nil {
		return Channel{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Channel{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Channel{}, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Channel{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	ch, err := Parse(resp.Body)
	if err != nil {
		return Channel{}, err
	}
	ch.Items = filter.Apply(ch.Items)
	return ch, nil
}

// Filter keeps items whose title matches include and does not match exclude.
// Patterns are case-insensitive regular expressions; empty means no filter.
type Filter struct {
	exclude *regexp.Regexp
	include *regexp.Regexp
}

func NewFilter(exclude, include string) (Filter, error) {
	var f Filter
	var err error
	if exclude != "" {
		if f.exclude, err = regexp.Compile("(?i)" + exclude); err != nil {
			return Filter{}, fmt.Errorf("invalid exclude filter: %w", err)
		}
	}
	if include != "" {
		if f.include, err = regexp.Compile("(?i)" + include); err != nil {
			return Filter{}, fmt.Errorf("invalid include filter: %w", err)
		}
	}
	return f, nil
}

func (f Filter) Apply(items []Item) []Item {
	if f.exclude == nil && f.include == nil {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.exclude != nil && f.exclude.MatchString(it.Title) {
			continue
		}
		if f.include != nil && !f.include.MatchString(it.Title) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Parse decodes an RSS 0.9x/1.0/2.0 or Atom document.
func Parse(r io.Reader) (Channel, error) {
	doc, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return Channel{}, fmt.Errorf("parsing feed: %w", err)
	}

	ch := Channel{Title: strings.TrimSpace(doc.Title), Items: make([]Item, 0, len(doc.Items))}
	for _, it := range doc.Items {
		ch.Items = append(ch.Items, toItem(it))
	}
	return ch, nil
}

func toItem(it *gofeed.Item) Item {
	// Torrent feeds put the .torrent in the enclosure; prefer it over the page link.
	var enclosure string
	if len(it.Enclosures) > 0 && it.Enclosures[0] != nil {
		enclosure = it.Enclosures[0].URL
	}

	var published time.Time
	switch {
	case it.PublishedParsed != nil:
		published = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		published = *it.UpdatedParsed
	}

	return Item{
		Title:       strings.TrimSpace(it.Title),
		Link:        strings.TrimSpace(firstNonEmpty(enclosure, it.Link, it.GUID)),
		PublishDate: published,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
