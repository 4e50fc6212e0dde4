package snapshot

import (
	"context"
	"strconv"

	"github.com/prepforge/mocktest-engine/internal/db"
	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
)

// Document is the denormalized snapshot of an entire mock test, persisted as
// the test's cached configuration and served as the fast read path.
type Document struct {
	MockTest Meta        `json:"mocktest"`
	Tabs     []TabConfig `json:"tabs"`
}

type Meta struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	TotalQuestions int     `json:"total_questions"`
	TotalMarks     float64 `json:"total_marks"`
}

// Detail carries per-link scoring metadata, parallel to the mcqs list.
// Reordering or re-marking never requires re-resolving content.
type Detail struct {
	MCQModel      string  `json:"mcq_model"`
	MCQID         int64   `json:"mcq_id"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
	Order         int     `json:"order"`
}

type TabConfig struct {
	TabID            string         `json:"tab_id"`
	TabName          string         `json:"tab_name"`
	SelectionMode    string         `json:"selection_mode"`
	TotalQuestions   int            `json:"total_questions"`
	TimeLimitMinutes int            `json:"time_limit_minutes"`
	Order            int            `json:"order"`
	MCQs             []string       `json:"mcqs"`
	MCQDetails       []Detail       `json:"mcq_details"`
	Questions        []pool.Content `json:"questions"`
}

// Builder resolves every link of a mock test into a Document, one bulk
// lookup per pool.
type Builder struct {
	Registry *pool.Registry
}

// Build walks the links in presentation order (tab order, then link order —
// the order Links returns them in) and resolves content through the
// registry. Legacy links with no recorded pool are probed across every known
// pool: exactly one match resolves, anything else stays unresolved rather
// than guessed.
func (b *Builder) Build(ctx context.Context, q db.DBTX, m mocktest.MockTest, links []mocktest.Question) (Document, error) {
	legacyPool, err := b.probeLegacy(ctx, q, links)
	if err != nil {
		return Document{}, err
	}
	poolOf := func(l mocktest.Question) string {
		if l.Pool != "" {
			return l.Pool
		}
		return legacyPool[l.QuestionID]
	}

	// Distinct (pool, id) set, then one bulk fetch per pool.
	need := map[string][]int64{}
	needSeen := map[string]map[int64]bool{}
	for _, l := range links {
		name := poolOf(l)
		if name == "" {
			continue
		}
		if _, ok := b.Registry.Resolve(name); !ok {
			continue
		}
		if needSeen[name] == nil {
			needSeen[name] = map[int64]bool{}
		}
		if needSeen[name][l.QuestionID] {
			continue
		}
		needSeen[name][l.QuestionID] = true
		need[name] = append(need[name], l.QuestionID)
	}
	resolved := map[string]map[int64]pool.Content{}
	for name, ids := range need {
		d, _ := b.Registry.Resolve(name)
		byID, err := pool.FetchByIDs(ctx, q, d, ids)
		if err != nil {
			return Document{}, err
		}
		resolved[name] = byID
	}

	byTab := map[string][]mocktest.Question{}
	for _, l := range links {
		byTab[l.TabID] = append(byTab[l.TabID], l)
	}

	doc := Document{
		MockTest: Meta{ID: m.ID, Title: m.Title, TotalQuestions: m.TotalQuestions, TotalMarks: m.TotalMarks},
		Tabs:     make([]TabConfig, 0, len(m.Tabs)),
	}
	for _, tab := range m.Tabs {
		tc := TabConfig{
			TabID:            tab.ID,
			TabName:          tab.Name,
			SelectionMode:    tab.SelectionMode,
			TotalQuestions:   tab.TotalQuestions,
			TimeLimitMinutes: tab.TimeLimitMinutes,
			Order:            tab.Order,
			MCQs:             []string{},
			MCQDetails:       []Detail{},
			Questions:        []pool.Content{},
		}
		for _, l := range byTab[tab.ID] {
			name := poolOf(l)
			c, ok := pool.Content{}, false
			if byID := resolved[name]; byID != nil {
				c, ok = byID[l.QuestionID]
			}
			if !ok {
				c = pool.NotFound(name, l.QuestionID)
			}
			var tok string
			if name == "" {
				// Unresolvable legacy reference: keep the bare id so the
				// information survives the rebuild.
				tok = strconv.FormatInt(l.QuestionID, 10)
			} else {
				tok = Token{Pool: name, ID: l.QuestionID, ExternalKey: c.ExternalKey}.String()
			}
			tc.MCQs = append(tc.MCQs, tok)
			tc.MCQDetails = append(tc.MCQDetails, Detail{
				MCQModel:      name,
				MCQID:         l.QuestionID,
				Marks:         l.Marks,
				NegativeMarks: l.NegativeMarks,
				Order:         l.Order,
			})
			tc.Questions = append(tc.Questions, c)
		}
		doc.Tabs = append(doc.Tabs, tc)
	}
	return doc, nil
}

// probeLegacy maps poolless question ids to the single pool containing them.
// Ids matching more than one pool are ambiguous and omitted.
func (b *Builder) probeLegacy(ctx context.Context, q db.DBTX, links []mocktest.Question) (map[int64]string, error) {
	var ids []int64
	seen := map[int64]bool{}
	for _, l := range links {
		if l.Pool == "" && !seen[l.QuestionID] {
			seen[l.QuestionID] = true
			ids = append(ids, l.QuestionID)
		}
	}
	out := map[int64]string{}
	if len(ids) == 0 {
		return out, nil
	}
	matches := map[int64][]string{}
	for _, name := range b.Registry.Names() {
		d, _ := b.Registry.Resolve(name)
		found, err := pool.ProbeIDs(ctx, q, d, ids)
		if err != nil {
			return nil, err
		}
		for id := range found {
			matches[id] = append(matches[id], name)
		}
	}
	for id, names := range matches {
		if len(names) == 1 {
			out[id] = names[0]
		}
	}
	return out, nil
}
