package api

import "net/http"

type systemRequest struct {
	RSSNotifications *bool `json:"rss_notifications"`
	CheckUpdates     *bool `json:"check_updates"`
}

func handleGetSystem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sys, err := deps.Registry.System()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read system settings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sys)
	}
}

// handleUpdateSystem sets the preferences present in the body and returns
// the result.
func handleUpdateSystem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req systemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.RSSNotifications != nil {
			if err := deps.Registry.SetRSSNotifications(*req.RSSNotifications); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to save rss notifications: %v", err)
				return
			}
		}
		if req.CheckUpdates != nil {
			if err := deps.Registry.SetCheckUpdates(*req.CheckUpdates); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to save update checks: %v", err)
				return
			}
		}
		sys, err := deps.Registry.System()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read system settings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sys)
	}
}
