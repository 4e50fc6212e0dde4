package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepforge/mocktest-engine/internal/generate"
	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
)

func GenerateMockHandler(gen *generate.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := gen.GenerateMock(r.Context(), chi.URLParam(r, "mockID"))
		writeGenerateResult(w, rep, err)
	}
}

func RegenerateTabHandler(gen *generate.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := gen.RegenerateTab(r.Context(), chi.URLParam(r, "tabID"))
		writeGenerateResult(w, rep, err)
	}
}

func RefreshConfigHandler(gen *generate.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mockID := chi.URLParam(r, "mockID")
		if err := gen.UpdateConfigFromExisting(r.Context(), mockID); err != nil {
			if errors.Is(err, mocktest.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "refreshed", "mock_test_id": mockID})
	}
}

func ValidateHandler(store *mocktest.SQLStore, registry *pool.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.GetMockTest(r.Context(), store.DB(), chi.URLParam(r, "mockID"))
		if err != nil {
			if errors.Is(err, mocktest.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		issues := mocktest.Validate(m, registry)
		if issues == nil {
			issues = []string{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"issues": issues})
	}
}

func writeGenerateResult(w http.ResponseWriter, rep generate.Report, err error) {
	if err != nil {
		var sfe *generate.ShortfallError
		switch {
		case errors.As(err, &sfe):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(409)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":      sfe.Error(),
				"shortfalls": sfe.Shortfalls,
			})
		case errors.Is(err, mocktest.ErrNotFound):
			http.Error(w, err.Error(), 404)
		default:
			http.Error(w, err.Error(), 500)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(rep)
}
