package checker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/kvstore"
	"github.com/kalambet/seedlink/internal/settings"
	"github.com/kalambet/seedlink/internal/storage"
	"github.com/kalambet/seedlink/internal/update"
)

// --- Mocks ---

type mockEvaluator struct {
	fn    func(feeds []settings.FeedRecord) feed.Summary
	calls [][]settings.FeedRecord
}

func (m *mockEvaluator) Evaluate(_ context.Context, feeds []settings.FeedRecord) feed.Summary {
	m.calls = append(m.calls, feeds)
	if m.fn != nil {
		return m.fn(feeds)
	}
	return feed.Summary{Names: []string{}}
}

type mockReleases struct {
	rel   update.Release
	err   error
	calls int
}

func (m *mockReleases) Latest(context.Context) (update.Release, error) {
	m.calls++
	return m.rel, m.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// --- Helpers ---

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addFeed(t *testing.T, reg *settings.Registry, name string) int {
	t.Helper()
	order, err := reg.AddFeed(settings.FeedRecord{Name: name, URL: "https://" + name + "/rss", AlarmOnNewItems: true})
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	return order
}

func summaryOf(unread map[string]int) func([]settings.FeedRecord) feed.Summary {
	return func(feeds []settings.FeedRecord) feed.Summary {
		sum := feed.Summary{Names: []string{}}
		for _, f := range feeds {
			n := unread[f.Name]
			sum.Results = append(sum.Results, feed.Result{Order: f.Order, Name: f.Name, Unread: n})
			if n > 0 {
				sum.Total += n
				sum.Names = append(sum.Names, f.Name)
			}
		}
		return sum
	}
}

// --- Tests ---

func TestRunOnce_FeedCheckNotifies(t *testing.T) {
	store := openTestStore(t)
	reg := settings.NewRegistry(kvstore.NewMemory())
	addFeed(t, reg, "alpha")
	addFeed(t, reg, "beta")

	eval := &mockEvaluator{fn: summaryOf(map[string]int{"alpha": 2, "beta": 1})}
	notes := &recordingNotifier{}
	w := NewWorker(store, reg, eval, nil, notes, Options{})

	if _, err := Schedule(store, JobFeedCheck, 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("RunOnce returned false, expected a job to be processed")
	}

	if len(notes.sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notes.sent))
	}
	n := notes.sent[0]
	if n.Title != "3 new RSS items" || n.Text != "for alpha, beta" || n.Count != 3 {
		t.Errorf("notification = %+v", n)
	}

	// The next run is queued but not yet due.
	pending, err := store.PendingJobs(JobFeedCheck)
	if err != nil {
		t.Fatalf("PendingJobs: %v", err)
	}
	if pending != 1 {
		t.Errorf("pending feed checks = %d, want 1", pending)
	}
	done, err = w.RunOnce(context.Background())
	if err != nil || done {
		t.Errorf("second RunOnce = %v, %v; want false, nil", done, err)
	}
}

func TestCheckFeeds_Singular(t *testing.T) {
	reg := settings.NewRegistry(kvstore.NewMemory())
	addFeed(t, reg, "alpha")
	notes := &recordingNotifier{}
	w := NewWorker(openTestStore(t), reg, &mockEvaluator{fn: summaryOf(map[string]int{"alpha": 1})}, nil, notes, Options{})

	if _, err := w.CheckFeeds(context.Background(), nil); err != nil {
		t.Fatalf("CheckFeeds: %v", err)
	}
	if len(notes.sent) != 1 || notes.sent[0].Title != "1 new RSS item" {
		t.Errorf("notifications = %+v", notes.sent)
	}
}

func TestCheckFeeds_NothingNew(t *testing.T) {
	reg := settings.NewRegistry(kvstore.NewMemory())
	addFeed(t, reg, "alpha")
	notes := &recordingNotifier{}
	w := NewWorker(openTestStore(t), reg, &mockEvaluator{}, nil, notes, Options{})

	sum, err := w.CheckFeeds(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckFeeds: %v", err)
	}
	if sum == nil || sum.Total != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(notes.sent) != 0 {
		t.Errorf("unexpected notifications: %+v", notes.sent)
	}
}

func TestCheckFeeds_DisabledSkipsEvaluation(t *testing.T) {
	reg := settings.NewRegistry(kvstore.NewMemory())
	addFeed(t, reg, "alpha")
	if err := reg.SetRSSNotifications(false); err != nil {
		t.Fatalf("SetRSSNotifications: %v", err)
	}
	eval := &mockEvaluator{fn: summaryOf(map[string]int{"alpha": 5})}
	notes := &recordingNotifier{}
	w := NewWorker(openTestStore(t), reg, eval, nil, notes, Options{})

	sum, err := w.CheckFeeds(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckFeeds: %v", err)
	}
	if sum != nil {
		t.Errorf("summary = %+v, want nil", sum)
	}
	if len(eval.calls) != 0 || len(notes.sent) != 0 {
		t.Errorf("evaluator calls = %d, notifications = %d", len(eval.calls), len(notes.sent))
	}
}

func TestRunOnce_FeedCheckPayloadSelectsFeeds(t *testing.T) {
	store := openTestStore(t)
	reg := settings.NewRegistry(kvstore.NewMemory())
	addFeed(t, reg, "alpha")
	beta := addFeed(t, reg, "beta")

	eval := &mockEvaluator{}
	w := NewWorker(store, reg, eval, nil, &recordingNotifier{}, Options{})

	err := store.EnqueueJob(storage.Job{ID: "j-select", Type: JobFeedCheck, PayloadJSON: `{"orders":[1]}`})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(eval.calls) != 1 || len(eval.calls[0]) != 1 || eval.calls[0][0].Order != beta {
		t.Errorf("evaluated feeds = %+v, want only order %d", eval.calls, beta)
	}
	job, err := store.GetJob("j-select")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "completed" {
		t.Errorf("status = %q, want completed", job.Status)
	}
}

func TestRunOnce_BadPayloadFailsJob(t *testing.T) {
	store := openTestStore(t)
	reg := settings.NewRegistry(kvstore.NewMemory())
	w := NewWorker(store, reg, &mockEvaluator{}, nil, &recordingNotifier{}, Options{})

	if err := store.EnqueueJob(storage.Job{ID: "j-bad", Type: JobFeedCheck, PayloadJSON: `{not json`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a processed job")
	}

	job, err := store.GetJob("j-bad")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Attempts != 1 || job.LastError == "" {
		t.Errorf("job = %+v, want one failed attempt", job)
	}
	// The retry stands in for the next periodic run.
	pending, _ := store.PendingJobs(JobFeedCheck)
	if pending != 1 {
		t.Errorf("pending = %d, want 1", pending)
	}
}

func TestCheckUpdate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		disabled    bool
		lastChecked time.Time
		current     int
		latest      update.Release
		wantCalls   int
		wantNotify  bool
	}{
		{name: "newer release", current: 100, latest: update.Release{Code: 101, Name: "1.0.1"}, wantCalls: 1, wantNotify: true},
		{name: "same release", current: 101, latest: update.Release{Code: 101, Name: "1.0.1"}, wantCalls: 1},
		{name: "checked recently", lastChecked: now.Add(-time.Hour), current: 1, latest: update.Release{Code: 2}},
		{name: "checked a day ago", lastChecked: now.Add(-25 * time.Hour), current: 1, latest: update.Release{Code: 2, Name: "2"}, wantCalls: 1, wantNotify: true},
		{name: "disabled", disabled: true, current: 1, latest: update.Release{Code: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := kvstore.NewMemory()
			if !tt.lastChecked.IsZero() {
				mem.Set("system_lastcheckedupdates", kvstore.Int(tt.lastChecked.UnixMilli()))
			}
			reg := settings.NewRegistryWithClock(mem, fixedClock{now})
			if tt.disabled {
				if err := reg.SetCheckUpdates(false); err != nil {
					t.Fatalf("SetCheckUpdates: %v", err)
				}
			}

			rel := &mockReleases{rel: tt.latest}
			notes := &recordingNotifier{}
			w := NewWorker(openTestStore(t), reg, &mockEvaluator{}, rel, notes, Options{VersionCode: tt.current})
			w.clock = fixedClock{now}

			if err := w.CheckUpdate(context.Background()); err != nil {
				t.Fatalf("CheckUpdate: %v", err)
			}
			if rel.calls != tt.wantCalls {
				t.Errorf("Latest calls = %d, want %d", rel.calls, tt.wantCalls)
			}
			if got := len(notes.sent) == 1; got != tt.wantNotify {
				t.Errorf("notified = %v, want %v", got, tt.wantNotify)
			}
			if tt.wantNotify && notes.sent[0].Text != "Update to "+tt.latest.Name {
				t.Errorf("text = %q", notes.sent[0].Text)
			}

			sys, err := reg.System()
			if err != nil {
				t.Fatalf("System: %v", err)
			}
			if tt.wantCalls > 0 && !sys.LastCheckedUpdates.Equal(now) {
				t.Errorf("LastCheckedUpdates = %v, want %v", sys.LastCheckedUpdates, now)
			}
		})
	}
}

func TestCheckUpdate_SourceErrorFailsJob(t *testing.T) {
	store := openTestStore(t)
	reg := settings.NewRegistry(kvstore.NewMemory())
	rel := &mockReleases{err: errors.New("dns failure")}
	w := NewWorker(store, reg, &mockEvaluator{}, rel, &recordingNotifier{}, Options{})

	if err := store.EnqueueJob(storage.Job{ID: "j-up", Type: JobUpdateCheck}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	job, err := store.GetJob("j-up")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "pending" || job.Attempts != 1 {
		t.Errorf("job = %+v, want pending retry", job)
	}
	sys, _ := reg.System()
	if !sys.LastCheckedUpdates.IsZero() {
		t.Error("failed check must not record a check time")
	}
}

func TestSchedule_Dedupes(t *testing.T) {
	store := openTestStore(t)

	added, err := Schedule(store, JobUpdateCheck, time.Hour)
	if err != nil || !added {
		t.Fatalf("first Schedule = %v, %v", added, err)
	}
	added, err = Schedule(store, JobUpdateCheck, 0)
	if err != nil || added {
		t.Errorf("second Schedule = %v, %v; want false, nil", added, err)
	}
	added, err = Schedule(store, JobFeedCheck, 0)
	if err != nil || !added {
		t.Errorf("other type Schedule = %v, %v", added, err)
	}
}

func TestStart_SkipsUpdateWithoutSource(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, settings.NewRegistry(kvstore.NewMemory()), &mockEvaluator{}, nil, nil, Options{})

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n, _ := store.PendingJobs(JobFeedCheck); n != 1 {
		t.Errorf("feed checks = %d, want 1", n)
	}
	if n, _ := store.PendingJobs(JobUpdateCheck); n != 0 {
		t.Errorf("update checks = %d, want 0", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, settings.NewRegistry(kvstore.NewMemory()), &mockEvaluator{}, nil, &recordingNotifier{}, Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
