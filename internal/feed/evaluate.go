package feed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/seedlink/internal/metrics"
	"github.com/kalambet/seedlink/internal/settings"
)

// Result is the outcome of checking one feed.
type Result struct {
	Order  int    `json:"order"`
	Name   string `json:"name"`
	Unread int    `json:"unread"`
	Mode   string `json:"mode,omitempty"`
	// Skipped is set for feeds with new-item alarms turned off.
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates one pass over all feeds.
type Summary struct {
	Total int `json:"total"`
	// Names lists feeds with unread items, in feed order.
	Names   []string `json:"names"`
	Results []Result `json:"results"`
}

// Evaluator checks feeds against their last-viewed markers.
type Evaluator struct {
	source      Source
	concurrency int
	logger      *slog.Logger
}

// NewEvaluator creates an Evaluator. If concurrency is <= 0, it defaults to 4.
func NewEvaluator(source Source, concurrency int) *Evaluator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Evaluator{
		source:      source,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// Evaluate checks every feed and returns once all of them finished or
// failed. A feed that cannot be fetched counts as zero unread.
func (e *Evaluator) Evaluate(ctx context.Context, feeds []settings.FeedRecord) Summary {
	results := make([]Result, len(feeds))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, f := range feeds {
		results[i] = Result{Order: f.Order, Name: f.Name}
		if !f.AlarmOnNewItems {
			results[i].Skipped = true
			e.logger.Debug("skip feed with alarms disabled", "feed", f.Name)
			metrics.RecordFeedCheck(f.Name, "skipped", 0, 0)
			continue
		}
		g.Go(func() error {
			results[i] = e.check(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Names: []string{}, Results: results}
	for _, r := range results {
		if r.Unread > 0 {
			sum.Total += r.Unread
			sum.Names = append(sum.Names, r.Name)
		}
	}
	return sum
}

func (e *Evaluator) check(ctx context.Context, f settings.FeedRecord) Result {
	res := Result{Order: f.Order, Name: f.Name}

	start := time.Now()
	ch, err := e.source.Fetch(ctx, f.URL, f.ExcludeFilter, f.IncludeFilter)
	if err != nil {
		e.logger.Debug("feed could not be retrieved or parsed", "feed", f.Name, "url", f.URL, "error", err)
		metrics.RecordFeedCheck(f.Name, "failed", 0, 0)
		res.Error = err.Error()
		return res
	}

	unread, mode := CountUnread(ch.Items, f.LastViewed, f.LastViewedItemURL)
	res.Unread = unread
	res.Mode = mode.String()
	metrics.RecordFeedCheck(f.Name, "ok", unread, time.Since(start).Seconds())
	e.logger.Debug("feed checked", "feed", f.Name, "unread", unread, "mode", res.Mode)
	return res
}
