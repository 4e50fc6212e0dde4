package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/prepforge/mocktest-engine/internal/mocktest"
)

var validate = validator.New()

func CreateMockTestHandler(store *mocktest.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title" validate:"required,max=255"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), 422)
			return
		}
		m := mocktest.MockTest{ID: uuid.NewString(), Title: req.Title}
		if err := store.CreateMockTest(r.Context(), &m); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(m)
	}
}

func CreateTabHandler(store *mocktest.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mockID := chi.URLParam(r, "mockID")
		var req struct {
			Name             string `json:"name" validate:"required,max=255"`
			SelectionMode    string `json:"selection_mode" validate:"omitempty,oneof=auto manual"`
			TotalQuestions   int    `json:"total_questions" validate:"gte=0"`
			TimeLimitMinutes int    `json:"time_limit_minutes" validate:"gte=0"`
			Order            int    `json:"order" validate:"gte=0"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), 422)
			return
		}
		t := mocktest.Tab{
			ID:               uuid.NewString(),
			MockTestID:       mockID,
			Name:             req.Name,
			SelectionMode:    req.SelectionMode,
			TotalQuestions:   req.TotalQuestions,
			TimeLimitMinutes: req.TimeLimitMinutes,
			Order:            req.Order,
		}
		if err := store.CreateTab(r.Context(), &t); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(t)
	}
}

func CreateRuleHandler(store *mocktest.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID := chi.URLParam(r, "tabID")
		var req struct {
			Pool         string   `json:"pool" validate:"required"`
			Subject      string   `json:"subject"`
			Chapter      string   `json:"chapter"`
			SubChapter   string   `json:"sub_chapter"`
			Section      string   `json:"section"`
			QuestionType string   `json:"question_type"`
			Difficulty   string   `json:"difficulty"`
			Count        *int     `json:"count" validate:"omitempty,gte=0"`
			Percentage   *float64 `json:"percentage" validate:"omitempty,gte=0,lte=100"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), 422)
			return
		}
		rule := mocktest.Rule{
			ID:           uuid.NewString(),
			TabID:        tabID,
			Pool:         req.Pool,
			Subject:      req.Subject,
			Chapter:      req.Chapter,
			SubChapter:   req.SubChapter,
			Section:      req.Section,
			QuestionType: req.QuestionType,
			Difficulty:   req.Difficulty,
			Count:        req.Count,
			Percentage:   req.Percentage,
		}
		if err := store.CreateRule(r.Context(), &rule); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(rule)
	}
}

// AddQuestionHandler links a hand-picked question to a tab. The resulting
// link is manual: generation never deletes it.
func AddQuestionHandler(store *mocktest.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID := chi.URLParam(r, "tabID")
		var req struct {
			Pool          string  `json:"pool" validate:"required"`
			QuestionID    int64   `json:"question_id" validate:"required,gt=0"`
			Marks         float64 `json:"marks" validate:"gte=0"`
			NegativeMarks float64 `json:"negative_marks" validate:"gte=0"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), 422)
			return
		}
		tab, err := store.GetTab(r.Context(), store.DB(), tabID)
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		if req.Marks == 0 {
			req.Marks = 1.0
		}
		link := mocktest.Question{
			ID:            uuid.NewString(),
			MockTestID:    tab.MockTestID,
			TabID:         tab.ID,
			Pool:          req.Pool,
			QuestionID:    req.QuestionID,
			Marks:         req.Marks,
			NegativeMarks: req.NegativeMarks,
			AddedManually: true,
		}
		if err := store.AddManualQuestion(r.Context(), &link); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		_ = json.NewEncoder(w).Encode(link)
	}
}
