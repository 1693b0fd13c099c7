package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/metrics"
	"github.com/kalambet/seedlink/internal/settings"
)

const maxRequestBodySize = 1 << 20 // 1MB

// FeedEvaluator runs an unread check over a set of feeds.
type FeedEvaluator interface {
	Evaluate(ctx context.Context, feeds []settings.FeedRecord) feed.Summary
}

type AppDeps struct {
	Registry *settings.Registry
	Feeds    FeedEvaluator
	Mounts   settings.MountResolver // optional; shared Xirvik boxes fall back to the default mount
	Token    string
}

// NewAppHandler builds the management API. Everything except /health and
// /metrics requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/servers", handleListServers(deps))
		r.Post("/servers", handleAddServer(deps))
		r.Get("/servers/{order}", handleGetServer(deps))
		r.Put("/servers/{order}", handleUpdateServer(deps))
		r.Delete("/servers/{order}", handleDeleteServer(deps))

		r.Get("/providers", handleListProviders(deps))
		r.Post("/seedboxes/scan", handleScanSeedbox(deps))
		r.Get("/seedboxes/{provider}", handleListSeedboxes(deps))
		r.Post("/seedboxes/{provider}", handleAddSeedbox(deps))
		r.Put("/seedboxes/{provider}/{offset}", handleUpdateSeedbox(deps))

		r.Get("/feeds", handleListFeeds(deps))
		r.Post("/feeds", handleAddFeed(deps))
		r.Post("/feeds/check", handleCheckFeeds(deps))
		r.Put("/feeds/{order}", handleUpdateFeed(deps))
		r.Delete("/feeds/{order}", handleDeleteFeed(deps))
		r.Post("/feeds/{order}/viewed", handleFeedViewed(deps))

		r.Get("/system", handleGetSystem(deps))
		r.Put("/system", handleUpdateSystem(deps))

		r.Get("/settings/export", handleExportSettings(deps))
		r.Post("/settings/import", handleImportSettings(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// orderParam reads the {order} path segment.
func orderParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "order")
	order, err := strconv.Atoi(raw)
	if err != nil || order < 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid order %q", raw)
		return 0, false
	}
	return order, true
}

// offsetParam reads the {offset} path segment.
func offsetParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "offset")
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid offset %q", raw)
		return 0, false
	}
	return offset, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// refreshRecordGauge recounts server records per provider after a mutation.
func refreshRecordGauge(reg *settings.Registry) {
	all, err := reg.ListAll()
	if err != nil {
		slog.Default().Warn("counting server records failed", "error", err)
		return
	}
	metrics.SetRecordsManaged(countByProvider(all))
}

func countByProvider(recs []settings.ServerRecord) map[string]int {
	counts := map[string]int{"manual": 0}
	for _, d := range settings.Catalog() {
		counts[string(d.Provider())] = 0
	}
	for _, rec := range recs {
		if rec.Provider == "" {
			counts["manual"]++
		} else {
			counts[string(rec.Provider)]++
		}
	}
	return counts
}
