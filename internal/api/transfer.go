package api

import (
	"errors"
	"net/http"

	"github.com/kalambet/seedlink/internal/backup"
	"github.com/kalambet/seedlink/internal/kvstore"
	"github.com/kalambet/seedlink/internal/metrics"
)

var contentTypes = map[backup.Format]string{
	backup.FormatJSON:    "application/json",
	backup.FormatYAML:    "application/yaml",
	backup.FormatCompact: "text/plain; charset=utf-8",
}

func formatParam(w http.ResponseWriter, r *http.Request) (backup.Format, bool) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		return backup.FormatJSON, true
	}
	f, err := backup.ParseFormat(raw)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return "", false
	}
	return f, true
}

func handleExportSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := formatParam(w, r)
		if !ok {
			return
		}
		var data []byte
		err := deps.Registry.Exclusive(func(s kvstore.Store) error {
			var err error
			data, err = backup.ExportBytes(s, f)
			return err
		})
		metrics.RecordSettingsTransfer("export", string(f), err)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to export settings: %v", err)
			return
		}
		w.Header().Set("Content-Type", contentTypes[f])
		w.Write(data)
	}
}

func handleImportSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := formatParam(w, r)
		if !ok {
			return
		}
		mode := backup.Merge
		if raw := r.URL.Query().Get("mode"); raw != "" {
			m, err := backup.ParseMode(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			mode = m
		}

		body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var n int
		err := deps.Registry.Exclusive(func(s kvstore.Store) error {
			var err error
			n, err = backup.Import(s, body, f, mode)
			return err
		})
		metrics.RecordSettingsTransfer("import", string(f), err)
		if errors.Is(err, backup.ErrMalformed) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to import settings: %v", err)
			return
		}
		refreshRecordGauge(deps.Registry)
		writeJSON(w, http.StatusOK, map[string]any{"status": "imported", "keys": n, "mode": mode.String()})
	}
}
