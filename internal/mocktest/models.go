package mocktest

import "github.com/prepforge/mocktest-engine/internal/pool"

// Selection modes for a tab.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// MockTest is the aggregate root. TotalQuestions and TotalMarks are derived:
// they are recomputed from the link records after every generation run and
// must never be authored directly.
type MockTest struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	TotalQuestions int     `json:"total_questions"`
	TotalMarks     float64 `json:"total_marks"`
	ConfigJSON     string  `json:"-"`
	CreatedAt      int64   `json:"created_at,omitempty"`
	UpdatedAt      int64   `json:"updated_at,omitempty"`
	Tabs           []Tab   `json:"tabs,omitempty"`
}

// Tab is one timed section. TotalQuestions here is the authored cap, an
// input to percentage targets; generation never rewrites it.
type Tab struct {
	ID               string `json:"id"`
	MockTestID       string `json:"mock_test_id"`
	Name             string `json:"name"`
	SelectionMode    string `json:"selection_mode"`
	TotalQuestions   int    `json:"total_questions"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
	Order            int    `json:"order"`
	Rules            []Rule `json:"rules,omitempty"`
}

// Rule selects a quota of questions from one pool for one tab. Exactly one
// of Count and Percentage should be set; the validator reports violations,
// generation works with whatever is there. SelectedIDs is the audit trail of
// the most recent selection.
type Rule struct {
	ID           string   `json:"id"`
	TabID        string   `json:"tab_id"`
	Pool         string   `json:"pool"`
	Subject      string   `json:"subject,omitempty"`
	Chapter      string   `json:"chapter,omitempty"`
	SubChapter   string   `json:"sub_chapter,omitempty"`
	Section      string   `json:"section,omitempty"`
	QuestionType string   `json:"question_type,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Count        *int     `json:"count,omitempty"`
	Percentage   *float64 `json:"percentage,omitempty"`
	SelectedIDs  []int64  `json:"selected_ids,omitempty"`
}

// Specificity orders rules for generation: one point per narrow scope
// dimension. A section-scoped rule drains its small eligible pool before a
// subject-only rule can starve it. Subject alone scores zero.
func (r Rule) Specificity() int {
	n := 0
	if r.Chapter != "" {
		n++
	}
	if r.SubChapter != "" {
		n++
	}
	if r.Section != "" {
		n++
	}
	return n
}

// Filters returns the rule's scope as logical-field filters. Fields absent
// from the target pool are dropped later, at query-build time.
func (r Rule) Filters() map[pool.Field]string {
	return map[pool.Field]string{
		pool.FieldSubject:      r.Subject,
		pool.FieldChapter:      r.Chapter,
		pool.FieldSubChapter:   r.SubChapter,
		pool.FieldSection:      r.Section,
		pool.FieldQuestionType: r.QuestionType,
		pool.FieldDifficulty:   r.Difficulty,
	}
}

// Question is a link record binding one pool record to one tab. Pool may be
// empty on legacy rows; the snapshot builder probes the registry to recover
// it. Manually added links survive every regeneration.
type Question struct {
	ID            string  `json:"id"`
	MockTestID    string  `json:"mock_test_id"`
	TabID         string  `json:"tab_id"`
	Pool          string  `json:"pool"`
	QuestionID    int64   `json:"question_id"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
	Order         int     `json:"order"`
	AddedManually bool    `json:"added_manually"`
}
