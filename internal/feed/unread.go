package feed

import "time"

// Mode is the strategy used to find where unread items end.
type Mode int

const (
	// ModeLink stops at the item whose link was last viewed.
	ModeLink Mode = iota
	// ModeDate counts items published after the last view.
	ModeDate
)

func (m Mode) String() string {
	if m == ModeDate {
		return "date"
	}
	return "link"
}

// SelectMode picks date mode when the newest item carries a usable date.
func SelectMode(items []Item) Mode {
	if len(items) > 0 && !items[0].PublishDate.IsZero() && items[0].PublishDate.Unix() > 0 {
		return ModeDate
	}
	return ModeLink
}

// CountUnread walks items newest first. In date mode it stops at the first
// dated item not strictly after lastViewed; undated items count as unread.
// In link mode it stops at the item whose link equals lastViewedURL and
// counts every item when none does. Out-of-order feeds are not corrected.
func CountUnread(items []Item, lastViewed time.Time, lastViewedURL string) (int, Mode) {
	mode := SelectMode(items)
	unread := 0
	for _, it := range items {
		if mode == ModeDate {
			if !it.PublishDate.IsZero() && !it.PublishDate.After(lastViewed) {
				break
			}
		} else if lastViewedURL != "" && it.Link != "" && it.Link == lastViewedURL {
			break
		}
		unread++
	}
	return unread, mode
}
