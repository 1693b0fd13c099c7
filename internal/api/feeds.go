package api

import (
	"net/http"
	"time"

	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/settings"
)

func handleListFeeds(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feeds, err := deps.Registry.Feeds()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list feeds: %v", err)
			return
		}
		if feeds == nil {
			feeds = []settings.FeedRecord{}
		}
		writeJSON(w, http.StatusOK, feeds)
	}
}

func handleAddFeed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// New feeds alarm unless the caller says otherwise.
		f := settings.FeedRecord{AlarmOnNewItems: true}
		if !decodeBody(w, r, &f) {
			return
		}
		if f.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}
		order, err := deps.Registry.AddFeed(f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add feed: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"order": order})
	}
}

// handleUpdateFeed applies the body over the stored feed.
func handleUpdateFeed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := orderParam(w, r)
		if !ok {
			return
		}
		f, found, err := deps.Registry.Feed(order)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get feed: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "feed %d not found", order)
			return
		}
		if !decodeBody(w, r, &f) {
			return
		}
		if f.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}
		if _, err := feed.NewFilter(f.ExcludeFilter, f.IncludeFilter); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		found, err = deps.Registry.UpdateFeed(order, f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update feed: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "feed %d not found", order)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleDeleteFeed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := orderParam(w, r)
		if !ok {
			return
		}
		found, err := deps.Registry.RemoveFeed(order)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to remove feed: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "feed %d not found", order)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type viewedRequest struct {
	ViewedAt *time.Time `json:"viewed_at"`
	ItemURL  string     `json:"item_url"`
}

func handleFeedViewed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := orderParam(w, r)
		if !ok {
			return
		}
		var req viewedRequest
		if !decodeBody(w, r, &req) {
			return
		}
		viewed := time.Now().UTC()
		if req.ViewedAt != nil {
			viewed = req.ViewedAt.UTC()
		}
		found, err := deps.Registry.MarkFeedViewed(order, viewed, req.ItemURL)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update feed: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "feed %d not found", order)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleCheckFeeds(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feeds, err := deps.Registry.Feeds()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list feeds: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Feeds.Evaluate(r.Context(), feeds))
	}
}
