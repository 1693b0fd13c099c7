package feed

import (
	"testing"
	"time"
)

func TestCountUnread(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)
	d3 := d2.Add(24 * time.Hour)

	dated := []Item{{Link: "A", PublishDate: d3}, {Link: "B", PublishDate: d2}, {Link: "C", PublishDate: d1}}
	linked := []Item{{Link: "A"}, {Link: "B"}, {Link: "C"}}

	tests := []struct {
		name          string
		items         []Item
		lastViewed    time.Time
		lastViewedURL string
		want          int
		mode          Mode
	}{
		{"date mode stops at last viewed", dated, d1, "", 2, ModeDate},
		{"date mode equal date is read", dated, d3, "", 0, ModeDate},
		{"date mode never viewed", dated, time.Time{}, "", 3, ModeDate},
		{"date mode ignores link marker", dated, d2, "A", 1, ModeDate},
		{"link mode stops at marker", linked, time.Time{}, "B", 1, ModeLink},
		{"link mode marker first", linked, time.Time{}, "A", 0, ModeLink},
		{"link mode no match", []Item{{Link: "A"}, {Link: "B"}}, time.Time{}, "Z", 2, ModeLink},
		{"link mode empty marker", linked, d3, "", 3, ModeLink},
		{"empty feed", nil, d1, "A", 0, ModeLink},
		{
			"undated item in date mode counts",
			[]Item{{Link: "A", PublishDate: d3}, {Link: "B"}, {Link: "C", PublishDate: d1}},
			d2, "", 2, ModeDate,
		},
		{
			"newest undated selects link mode",
			[]Item{{Link: "A"}, {Link: "B", PublishDate: d3}},
			d1, "B", 1, ModeLink,
		},
		{
			"epoch date selects link mode",
			[]Item{{Link: "A", PublishDate: time.Unix(0, 0)}, {Link: "B"}},
			d1, "B", 1, ModeLink,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mode := CountUnread(tt.items, tt.lastViewed, tt.lastViewedURL)
			if got != tt.want {
				t.Errorf("unread = %d, want %d", got, tt.want)
			}
			if mode != tt.mode {
				t.Errorf("mode = %s, want %s", mode, tt.mode)
			}
		})
	}
}
