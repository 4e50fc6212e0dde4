package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
	"github.com/prepforge/mocktest-engine/internal/snapshot"
)

// GetConfigHandler serves the cached snapshot exactly as persisted.
func GetConfigHandler(store *mocktest.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := store.ConfigJSON(r.Context(), chi.URLParam(r, "mockID"))
		if err != nil {
			if errors.Is(err, mocktest.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		if cfg == "" {
			http.Error(w, "config not generated yet", 404)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, cfg)
	}
}

// GetLiveConfigHandler re-resolves the cached token lists against live pool
// data, bypassing the cached content. Deleted records come back found=false.
func GetLiveConfigHandler(store *mocktest.SQLStore, registry *pool.Registry) http.HandlerFunc {
	resolver := snapshot.Resolver{Registry: registry}
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := store.ConfigJSON(r.Context(), chi.URLParam(r, "mockID"))
		if err != nil {
			if errors.Is(err, mocktest.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		if cfg == "" {
			http.Error(w, "config not generated yet", 404)
			return
		}
		var doc snapshot.Document
		if err := json.Unmarshal([]byte(cfg), &doc); err != nil {
			http.Error(w, "cached config is not valid json", 500)
			return
		}
		live, err := resolver.Resolve(r.Context(), store.DB(), doc)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(live)
	}
}
