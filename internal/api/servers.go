package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/seedlink/internal/settings"
)

// ProviderInfo describes one seedbox provider namespace.
type ProviderInfo struct {
	ID     settings.Provider `json:"id"`
	Name   string            `json:"name"`
	Prefix string            `json:"prefix"`
	Count  int               `json:"count"`
}

func handleListServers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Registry.ListAll()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list servers: %v", err)
			return
		}
		if all == nil {
			all = []settings.ServerRecord{}
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func handleGetServer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := orderParam(w, r)
		if !ok {
			return
		}
		rec, found, err := deps.Registry.Get(order)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get server: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "server %d not found", order)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func validServer(w http.ResponseWriter, rec settings.ServerRecord) bool {
	if strings.TrimSpace(rec.Host) == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "host is required")
		return false
	}
	return true
}

func handleAddServer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec settings.ServerRecord
		if !decodeBody(w, r, &rec) || !validServer(w, rec) {
			return
		}
		order, err := deps.Registry.AddManual(rec)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add server: %v", err)
			return
		}
		refreshRecordGauge(deps.Registry)
		writeJSON(w, http.StatusCreated, map[string]int{"order": order})
	}
}

func handleUpdateServer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := orderParam(w, r)
		if !ok {
			return
		}
		var rec settings.ServerRecord
		if !decodeBody(w, r, &rec) || !validServer(w, rec) {
			return
		}
		found, err := deps.Registry.Update(order, rec)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update server: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "server %d not found", order)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleDeleteServer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := orderParam(w, r)
		if !ok {
			return
		}
		found, err := deps.Registry.Remove(order)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to remove server: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "server %d not found", order)
			return
		}
		refreshRecordGauge(deps.Registry)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleListProviders(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Registry.ListAll()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list servers: %v", err)
			return
		}
		counts := countByProvider(all)

		var out []ProviderInfo
		for _, d := range settings.Catalog() {
			out = append(out, ProviderInfo{
				ID:     d.Provider(),
				Name:   d.Name(),
				Prefix: d.Prefix(),
				Count:  counts[string(d.Provider())],
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// providerParam reads the {provider} path segment and checks it against the
// catalog.
func providerParam(w http.ResponseWriter, r *http.Request) (settings.Provider, bool) {
	p := settings.Provider(chi.URLParam(r, "provider"))
	if _, err := settings.Lookup(p); err != nil {
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
		return "", false
	}
	return p, true
}

func handleListSeedboxes(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := providerParam(w, r)
		if !ok {
			return
		}
		boxes, err := deps.Registry.Seedboxes(p)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list seedboxes: %v", err)
			return
		}
		if boxes == nil {
			boxes = []settings.ServerRecord{}
		}
		writeJSON(w, http.StatusOK, boxes)
	}
}

func handleAddSeedbox(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := providerParam(w, r)
		if !ok {
			return
		}
		var rec settings.ServerRecord
		if !decodeBody(w, r, &rec) || !validServer(w, rec) {
			return
		}
		order, offset, err := deps.Registry.AddSeedbox(p, rec)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save seedbox: %v", err)
			return
		}
		refreshRecordGauge(deps.Registry)
		writeJSON(w, http.StatusCreated, map[string]int{"order": order, "offset": offset})
	}
}

// handleUpdateSeedbox applies the body over the stored account, so fields
// the caller leaves out keep their values.
func handleUpdateSeedbox(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := providerParam(w, r)
		if !ok {
			return
		}
		offset, ok := offsetParam(w, r)
		if !ok {
			return
		}
		boxes, err := deps.Registry.Seedboxes(p)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list seedboxes: %v", err)
			return
		}
		var rec settings.ServerRecord
		found := false
		for _, b := range boxes {
			if b.ProviderOffset == offset {
				rec, found = b, true
				break
			}
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "%s seedbox %d not found", p, offset)
			return
		}
		if !decodeBody(w, r, &rec) || !validServer(w, rec) {
			return
		}
		found, err = deps.Registry.UpdateSeedbox(p, offset, rec)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update seedbox: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "%s seedbox %d not found", p, offset)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

type scanRequest struct {
	Code string `json:"code"`
}

func handleScanSeedbox(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if !decodeBody(w, r, &req) {
			return
		}
		rec, err := deps.Registry.ProvisionXirvik(r.Context(), req.Code, deps.Mounts)
		if errors.Is(err, settings.ErrInvalidXirvikCode) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to provision seedbox: %v", err)
			return
		}
		refreshRecordGauge(deps.Registry)
		writeJSON(w, http.StatusCreated, rec)
	}
}
