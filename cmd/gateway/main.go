package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/prepforge/mocktest-engine/internal/api/http"
	"github.com/prepforge/mocktest-engine/internal/audit"
	"github.com/prepforge/mocktest-engine/internal/config"
	"github.com/prepforge/mocktest-engine/internal/db"
	"github.com/prepforge/mocktest-engine/internal/generate"
	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
)

func main() {
	_ = godotenv.Load() // optional .env for local runs
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	registry := pool.Default()
	store := mocktest.NewSQLStore(dbh, cfg.DBDriver)
	gen := generate.New(store, registry, audit.NewLog(), generate.QuotaPolicy(cfg.QuotaPolicy))

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if cfg.LogRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Authoring
	r.Post("/mocktests", api.CreateMockTestHandler(store))
	r.Post("/mocktests/{mockID}/tabs", api.CreateTabHandler(store))
	r.Post("/tabs/{tabID}/rules", api.CreateRuleHandler(store))
	r.Post("/tabs/{tabID}/questions", api.AddQuestionHandler(store))

	// Generation
	r.Post("/mocktests/{mockID}/generate", api.GenerateMockHandler(gen))
	r.Post("/tabs/{tabID}/generate", api.RegenerateTabHandler(gen))
	r.Post("/mocktests/{mockID}/config/refresh", api.RefreshConfigHandler(gen))
	r.Get("/mocktests/{mockID}/validate", api.ValidateHandler(store, registry))

	// Read paths: cached snapshot and live resolution
	r.Get("/mocktests/{mockID}/config", api.GetConfigHandler(store))
	r.Get("/mocktests/{mockID}/config/live", api.GetLiveConfigHandler(store, registry))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s, quota=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.QuotaPolicy)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
