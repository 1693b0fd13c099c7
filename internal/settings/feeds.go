package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/seedlink/internal/kvstore"
)

const feedPrefix = "rssfeed_"

var feedFields = []string{"name", "url", "exclude", "include", "lastviewed", "lastvieweditemurl", "alarmnew"}

// FeedRecord is one configured RSS feed. Which of LastViewed and
// LastViewedItemURL decides unread items depends on the feed content.
type FeedRecord struct {
	Order             int       `json:"order"`
	Name              string    `json:"name"`
	URL               string    `json:"url"`
	ExcludeFilter     string    `json:"exclude,omitempty"`
	IncludeFilter     string    `json:"include,omitempty"`
	LastViewed        time.Time `json:"last_viewed"`
	LastViewedItemURL string    `json:"last_viewed_item_url,omitempty"`
	AlarmOnNewItems   bool      `json:"alarm_on_new_items"`
}

func decodeFeed(s kvstore.Snapshot, offset int) (FeedRecord, bool) {
	key := func(f string) string { return fieldKey(feedPrefix, f, offset) }

	url := s.String(key("url"), "")
	if url == "" {
		return FeedRecord{}, false
	}
	f := FeedRecord{
		Order:             offset,
		Name:              s.String(key("name"), ""),
		URL:               url,
		ExcludeFilter:     s.String(key("exclude"), ""),
		IncludeFilter:     s.String(key("include"), ""),
		LastViewedItemURL: s.String(key("lastvieweditemurl"), ""),
		AlarmOnNewItems:   s.Bool(key("alarmnew"), true),
	}
	if ms := s.Int(key("lastviewed"), 0); ms > 0 {
		f.LastViewed = time.UnixMilli(ms).UTC()
	}
	return f, true
}

func encodeFeed(b *kvstore.Batch, f FeedRecord, offset int) {
	key := func(name string) string { return fieldKey(feedPrefix, name, offset) }

	putString(b, key("name"), f.Name)
	b.SetString(key("url"), f.URL)
	putString(b, key("exclude"), f.ExcludeFilter)
	putString(b, key("include"), f.IncludeFilter)
	if f.LastViewed.IsZero() {
		b.Remove(key("lastviewed"))
	} else {
		b.SetInt(key("lastviewed"), f.LastViewed.UnixMilli())
	}
	putString(b, key("lastvieweditemurl"), f.LastViewedItemURL)
	b.SetBool(key("alarmnew"), f.AlarmOnNewItems)
}

func removeFeedAt(b *kvstore.Batch, offset int) {
	for _, f := range feedFields {
		b.Remove(fieldKey(feedPrefix, f, offset))
	}
}

// Feeds lists every configured feed by offset.
func (r *Registry) Feeds() ([]FeedRecord, error) {
	snap, err := kvstore.Load(r.store, feedPrefix)
	if err != nil {
		return nil, fmt.Errorf("loading feeds: %w", err)
	}
	top := maxOffset(snap, feedPrefix, "url")
	var out []FeedRecord
	for off := 0; off <= top; off++ {
		if f, ok := decodeFeed(snap, off); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *Registry) Feed(order int) (FeedRecord, bool, error) {
	snap, err := kvstore.Load(r.store, feedPrefix)
	if err != nil {
		return FeedRecord{}, false, fmt.Errorf("loading feeds: %w", err)
	}
	f, ok := decodeFeed(snap, order)
	return f, ok, nil
}

// AddFeed appends a feed and returns its order.
func (r *Registry) AddFeed(f FeedRecord) (int, error) {
	if f.URL == "" {
		return 0, errors.New("feed url is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := kvstore.Load(r.store, feedPrefix)
	if err != nil {
		return 0, fmt.Errorf("loading feeds: %w", err)
	}
	offset := maxOffset(snap, feedPrefix, "url") + 1

	b := kvstore.NewBatch()
	encodeFeed(b, f, offset)
	if err := r.store.Commit(b); err != nil {
		return 0, fmt.Errorf("saving feed: %w", err)
	}
	return offset, nil
}

// UpdateFeed replaces the feed at order. It reports false for an empty slot.
func (r *Registry) UpdateFeed(order int, f FeedRecord) (bool, error) {
	return r.mutateFeed(order, func(FeedRecord) FeedRecord { return f })
}

// MarkFeedViewed records the newest item the user has seen.
func (r *Registry) MarkFeedViewed(order int, viewed time.Time, itemURL string) (bool, error) {
	return r.mutateFeed(order, func(f FeedRecord) FeedRecord {
		f.LastViewed = viewed
		f.LastViewedItemURL = itemURL
		return f
	})
}

func (r *Registry) mutateFeed(order int, fn func(FeedRecord) FeedRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := kvstore.Load(r.store, feedPrefix)
	if err != nil {
		return false, fmt.Errorf("loading feeds: %w", err)
	}
	cur, ok := decodeFeed(snap, order)
	if !ok {
		return false, nil
	}

	b := kvstore.NewBatch()
	removeFeedAt(b, order)
	encodeFeed(b, fn(cur), order)
	if err := r.store.Commit(b); err != nil {
		return false, fmt.Errorf("updating feed %d: %w", order, err)
	}
	return true, nil
}

// RemoveFeed clears the feed slot, leaving a hole.
func (r *Registry) RemoveFeed(order int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := kvstore.Load(r.store, feedPrefix)
	if err != nil {
		return false, fmt.Errorf("loading feeds: %w", err)
	}
	if _, ok := decodeFeed(snap, order); !ok {
		return false, nil
	}

	b := kvstore.NewBatch()
	removeFeedAt(b, order)
	if err := r.store.Commit(b); err != nil {
		return false, fmt.Errorf("removing feed %d: %w", order, err)
	}
	return true, nil
}
