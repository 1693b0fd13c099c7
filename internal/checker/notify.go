package checker

import (
	"context"
	"log/slog"
)

// Notification is one user-facing message produced by a job.
type Notification struct {
	Kind  string `json:"kind"` // "rss" or "update"
	Title string `json:"title"`
	Text  string `json:"text"`
	Count int    `json:"count,omitempty"`
}

// Notifier delivers notifications. Presentation is up to the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.Default()}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info(n.Title, "kind", n.Kind, "text", n.Text, "count", n.Count)
	return nil
}
