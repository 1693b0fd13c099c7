// Package checker runs the background jobs: the RSS feed checker and the
// application update checker.
package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/metrics"
	"github.com/kalambet/seedlink/internal/settings"
	"github.com/kalambet/seedlink/internal/storage"
	"github.com/kalambet/seedlink/internal/update"
)

const (
	JobFeedCheck   = "feed_check"
	JobUpdateCheck = "update_check"
)

// updateCheckGap is the minimum time between two update checks.
const updateCheckGap = 24 * time.Hour

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	PendingJobs(jobType string) (int, error)
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// SettingsReader is the slice of the settings registry the jobs need.
type SettingsReader interface {
	Feeds() ([]settings.FeedRecord, error)
	System() (settings.System, error)
	TouchUpdateCheck() error
}

// FeedEvaluator checks a set of feeds for unread items.
type FeedEvaluator interface {
	Evaluate(ctx context.Context, feeds []settings.FeedRecord) feed.Summary
}

// ReleaseSource returns the newest published release.
type ReleaseSource interface {
	Latest(ctx context.Context) (update.Release, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options tunes the Worker. Zero values pick the defaults.
type Options struct {
	PollInterval   time.Duration // default 1s
	FeedInterval   time.Duration // default 30m
	UpdateInterval time.Duration // default 24h
	VersionCode    int
}

// Worker processes feed_check and update_check jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	settings SettingsReader
	feeds    FeedEvaluator
	releases ReleaseSource
	notifier Notifier
	opts     Options
	clock    Clock
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies. releases may be
// nil, in which case update checks are skipped.
func NewWorker(store JobStore, reg SettingsReader, feeds FeedEvaluator, releases ReleaseSource, notifier Notifier, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.FeedInterval <= 0 {
		opts.FeedInterval = 30 * time.Minute
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = updateCheckGap
	}
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	return &Worker{
		store:    store,
		settings: reg,
		feeds:    feeds,
		releases: releases,
		notifier: notifier,
		opts:     opts,
		clock:    realClock{},
		logger:   slog.Default(),
	}
}

// Start schedules the first run of both periodic jobs.
func (w *Worker) Start() error {
	if _, err := Schedule(w.store, JobFeedCheck, 0); err != nil {
		return err
	}
	if w.releases != nil {
		if _, err := Schedule(w.store, JobUpdateCheck, 0); err != nil {
			return err
		}
	}
	return nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobFeedCheck, JobUpdateCheck})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	procErr := w.processJob(ctx, job)
	metrics.RecordJob(job.Type, procErr)
	if procErr != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", procErr)
		if failErr := w.store.FailJob(job.ID, procErr.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
	} else if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}

	// Periodic jobs put their next run on the queue. A pending retry from
	// FailJob counts as that next run.
	if _, err := Schedule(w.store, job.Type, w.interval(job.Type)); err != nil {
		return true, fmt.Errorf("rescheduling %s: %w", job.Type, err)
	}
	return true, nil
}

func (w *Worker) interval(jobType string) time.Duration {
	if jobType == JobUpdateCheck {
		return w.opts.UpdateInterval
	}
	return w.opts.FeedInterval
}

// FeedCheckPayload optionally narrows a feed_check job to some feeds.
type FeedCheckPayload struct {
	Orders []int `json:"orders,omitempty"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case JobFeedCheck:
		var payload FeedCheckPayload
		if job.PayloadJSON != "" {
			if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
				return fmt.Errorf("parsing payload: %w", err)
			}
		}
		_, err := w.CheckFeeds(ctx, payload.Orders)
		return err
	case JobUpdateCheck:
		return w.CheckUpdate(ctx)
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

// CheckFeeds evaluates the configured feeds and emits one notification for
// the whole pass. It returns a nil summary when RSS notifications are off.
func (w *Worker) CheckFeeds(ctx context.Context, orders []int) (*feed.Summary, error) {
	sys, err := w.settings.System()
	if err != nil {
		return nil, fmt.Errorf("reading system settings: %w", err)
	}
	if !sys.RSSNotifications {
		w.logger.Debug("skip the RSS checker, notifications are disabled")
		return nil, nil
	}

	feeds, err := w.settings.Feeds()
	if err != nil {
		return nil, fmt.Errorf("loading feeds: %w", err)
	}
	if len(orders) > 0 {
		feeds = selectFeeds(feeds, orders)
	}

	sum := w.feeds.Evaluate(ctx, feeds)
	if sum.Total == 0 {
		return &sum, nil
	}

	n := Notification{
		Kind:  "rss",
		Title: pluralItems(sum.Total),
		Text:  "for " + strings.Join(sum.Names, ", "),
		Count: sum.Total,
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		return &sum, fmt.Errorf("sending notification: %w", err)
	}
	metrics.RecordNotification(n.Kind)
	return &sum, nil
}

func selectFeeds(feeds []settings.FeedRecord, orders []int) []settings.FeedRecord {
	want := make(map[int]bool, len(orders))
	for _, o := range orders {
		want[o] = true
	}
	var out []settings.FeedRecord
	for _, f := range feeds {
		if want[f.Order] {
			out = append(out, f)
		}
	}
	return out
}

func pluralItems(n int) string {
	if n == 1 {
		return "1 new RSS item"
	}
	return fmt.Sprintf("%d new RSS items", n)
}

// CheckUpdate looks for a newer release at most once a day.
func (w *Worker) CheckUpdate(ctx context.Context) error {
	if w.releases == nil {
		return nil
	}
	sys, err := w.settings.System()
	if err != nil {
		return fmt.Errorf("reading system settings: %w", err)
	}
	if !sys.CheckUpdates {
		w.logger.Debug("skip the update checker, it is disabled")
		return nil
	}
	if !sys.LastCheckedUpdates.IsZero() && w.clock.Now().Sub(sys.LastCheckedUpdates) < updateCheckGap {
		w.logger.Debug("skip the update checker, already checked in the last 24 hours", "last_checked", sys.LastCheckedUpdates)
		return nil
	}

	rel, err := w.releases.Latest(ctx)
	if err != nil {
		return fmt.Errorf("retrieving latest version: %w", err)
	}
	w.logger.Debug("update check", "local", w.opts.VersionCode, "latest", rel.Code)

	if update.Newer(w.opts.VersionCode, rel) {
		n := Notification{
			Kind:  "update",
			Title: "New version available",
			Text:  "Update to " + rel.Name,
		}
		if err := w.notifier.Notify(ctx, n); err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
		metrics.RecordNotification(n.Kind)
	}

	if err := w.settings.TouchUpdateCheck(); err != nil {
		return fmt.Errorf("saving update check time: %w", err)
	}
	return nil
}

// Schedule enqueues a job of the given type unless one is already pending
// or running. It reports whether a job was added.
func Schedule(store JobStore, jobType string, delay time.Duration) (bool, error) {
	n, err := store.PendingJobs(jobType)
	if err != nil {
		return false, fmt.Errorf("counting pending %s jobs: %w", jobType, err)
	}
	if n > 0 {
		return false, nil
	}
	job := storage.Job{
		ID:       uuid.New().String(),
		Type:     jobType,
		RunAfter: time.Now().UTC().Add(delay),
	}
	if err := store.EnqueueJob(job); err != nil {
		return false, fmt.Errorf("enqueueing %s: %w", jobType, err)
	}
	return true, nil
}
