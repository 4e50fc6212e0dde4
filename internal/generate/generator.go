package generate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/prepforge/mocktest-engine/internal/audit"
	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
	"github.com/prepforge/mocktest-engine/internal/snapshot"
)

// QuotaPolicy decides what a rule shortfall does to a generation run.
type QuotaPolicy string

const (
	// QuotaLenient tolerates under-fulfilled rules; the shortfall is
	// reported as data and the partial selection commits.
	QuotaLenient QuotaPolicy = "lenient"
	// QuotaStrict rolls the run back and returns a ShortfallError.
	QuotaStrict QuotaPolicy = "strict"
)

// Shortfall records one rule that wanted more records than were eligible.
type Shortfall struct {
	RuleID string `json:"rule_id"`
	Pool   string `json:"pool"`
	Want   int    `json:"want"`
	Got    int    `json:"got"`
}

type ShortfallError struct {
	Shortfalls []Shortfall
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("quota not met for %d rule(s)", len(e.Shortfalls))
}

// Report is the caller-visible outcome of a generation run. Shortfalls are a
// product-level condition, not an engine error, under the lenient policy.
type Report struct {
	MockTestID     string      `json:"mock_test_id"`
	TotalQuestions int         `json:"total_questions"`
	TotalMarks     float64     `json:"total_marks"`
	Shortfalls     []Shortfall `json:"shortfalls,omitempty"`
}

// Generator assembles mock tests: it deletes stale auto links, re-samples
// every auto tab rule by rule, rederives the aggregate totals and rebuilds
// the cached snapshot, all inside one transaction holding the write lock on
// the mock test row.
type Generator struct {
	store    *mocktest.SQLStore
	registry *pool.Registry
	events   *audit.Log
	eval     Evaluator
	policy   QuotaPolicy
}

func New(store *mocktest.SQLStore, registry *pool.Registry, events *audit.Log, policy QuotaPolicy) *Generator {
	if policy == "" {
		policy = QuotaLenient
	}
	return &Generator{
		store:    store,
		registry: registry,
		events:   events,
		eval:     Evaluator{Registry: registry},
		policy:   policy,
	}
}

// GenerateMock regenerates every auto tab of a mock test. Manual links
// survive untouched; each tab's exclusion set starts from them so the
// sampler can never duplicate a hand-picked question.
func (g *Generator) GenerateMock(ctx context.Context, mockID string) (Report, error) {
	tx, err := g.store.BeginTx(ctx)
	if err != nil {
		return Report{}, err
	}
	defer tx.Rollback()

	if err := g.store.LockMockTest(ctx, tx, mockID); err != nil {
		return Report{}, err
	}
	m, err := g.store.GetMockTest(ctx, tx, mockID)
	if err != nil {
		return Report{}, err
	}
	if err := g.store.DeleteAutoLinks(ctx, tx, mockID); err != nil {
		return Report{}, err
	}

	var shortfalls []Shortfall
	for _, tab := range m.Tabs {
		sf, err := g.generateTab(ctx, tx, tab)
		if err != nil {
			return Report{}, err
		}
		shortfalls = append(shortfalls, sf...)
	}

	count, marks, err := g.store.RecomputeTotals(ctx, tx, mockID)
	if err != nil {
		return Report{}, err
	}
	if err := g.refreshSnapshot(ctx, tx, mockID); err != nil {
		return Report{}, err
	}
	if g.policy == QuotaStrict && len(shortfalls) > 0 {
		return Report{}, &ShortfallError{Shortfalls: shortfalls}
	}

	rep := Report{MockTestID: mockID, TotalQuestions: count, TotalMarks: marks, Shortfalls: shortfalls}
	if err := g.events.Append(ctx, tx, audit.TypeMockGenerated, mockID, rep); err != nil {
		return Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return Report{}, err
	}
	return rep, nil
}

// RegenerateTab runs the same contract scoped to one tab. The parent test's
// snapshot is still rebuilt: one tab's links change what the whole-test
// document shows.
func (g *Generator) RegenerateTab(ctx context.Context, tabID string) (Report, error) {
	// Tab lookup first, to learn which aggregate row to lock.
	t, err := g.store.GetTab(ctx, g.store.DB(), tabID)
	if err != nil {
		return Report{}, err
	}

	tx, err := g.store.BeginTx(ctx)
	if err != nil {
		return Report{}, err
	}
	defer tx.Rollback()

	if err := g.store.LockMockTest(ctx, tx, t.MockTestID); err != nil {
		return Report{}, err
	}
	tab, err := g.store.GetTab(ctx, tx, tabID) // re-read under the lock
	if err != nil {
		return Report{}, err
	}
	if err := g.store.DeleteTabAutoLinks(ctx, tx, tab.ID); err != nil {
		return Report{}, err
	}
	shortfalls, err := g.generateTab(ctx, tx, tab)
	if err != nil {
		return Report{}, err
	}

	count, marks, err := g.store.RecomputeTotals(ctx, tx, tab.MockTestID)
	if err != nil {
		return Report{}, err
	}
	if err := g.refreshSnapshot(ctx, tx, tab.MockTestID); err != nil {
		return Report{}, err
	}
	if g.policy == QuotaStrict && len(shortfalls) > 0 {
		return Report{}, &ShortfallError{Shortfalls: shortfalls}
	}

	rep := Report{MockTestID: tab.MockTestID, TotalQuestions: count, TotalMarks: marks, Shortfalls: shortfalls}
	if err := g.events.Append(ctx, tx, audit.TypeTabGenerated, tabID, rep); err != nil {
		return Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return Report{}, err
	}
	return rep, nil
}

// UpdateConfigFromExisting rebuilds the snapshot from the current link set
// without re-sampling anything. Used after manual edits.
func (g *Generator) UpdateConfigFromExisting(ctx context.Context, mockID string) error {
	tx, err := g.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := g.store.LockMockTest(ctx, tx, mockID); err != nil {
		return err
	}
	count, marks, err := g.store.RecomputeTotals(ctx, tx, mockID)
	if err != nil {
		return err
	}
	if err := g.refreshSnapshot(ctx, tx, mockID); err != nil {
		return err
	}
	rep := Report{MockTestID: mockID, TotalQuestions: count, TotalMarks: marks}
	if err := g.events.Append(ctx, tx, audit.TypeConfigRefreshed, mockID, rep); err != nil {
		return err
	}
	return tx.Commit()
}

// generateTab fills one auto tab. The caller has already deleted the tab's
// auto links, so TabLinks returns only the manual survivors.
func (g *Generator) generateTab(ctx context.Context, tx *sql.Tx, tab mocktest.Tab) ([]Shortfall, error) {
	if tab.SelectionMode != mocktest.ModeAuto {
		return nil, nil
	}
	manual, err := g.store.TabLinks(ctx, tx, tab.ID)
	if err != nil {
		return nil, err
	}
	exclude := map[string][]int64{}
	next := 0
	for _, l := range manual {
		exclude[l.Pool] = append(exclude[l.Pool], l.QuestionID)
		if l.Order > next {
			next = l.Order
		}
	}
	next++

	// Narrow rules first: a section-scoped rule's eligible pool is the most
	// depletable, so it claims its quota before broader rules drain it.
	rules := make([]mocktest.Rule, len(tab.Rules))
	copy(rules, tab.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Specificity() > rules[j].Specificity()
	})

	var shortfalls []Shortfall
	for _, r := range rules {
		target := targetFor(r, tab.TotalQuestions)
		ids, err := g.eval.Select(ctx, tx, r, target, exclude[r.Pool])
		if err != nil {
			return nil, err
		}
		for _, qid := range ids {
			link := mocktest.Question{
				ID:            uuid.NewString(),
				MockTestID:    tab.MockTestID,
				TabID:         tab.ID,
				Pool:          r.Pool,
				QuestionID:    qid,
				Marks:         1.0,
				NegativeMarks: 0.0,
				Order:         next,
				AddedManually: false,
			}
			if err := g.store.InsertLink(ctx, tx, link); err != nil {
				return nil, err
			}
			next++
		}
		exclude[r.Pool] = append(exclude[r.Pool], ids...)
		if err := g.store.SaveRuleSelection(ctx, tx, r.ID, ids); err != nil {
			return nil, err
		}
		if len(ids) < target {
			shortfalls = append(shortfalls, Shortfall{RuleID: r.ID, Pool: r.Pool, Want: target, Got: len(ids)})
		}
	}
	return shortfalls, nil
}

func (g *Generator) refreshSnapshot(ctx context.Context, tx *sql.Tx, mockID string) error {
	m, err := g.store.GetMockTest(ctx, tx, mockID)
	if err != nil {
		return err
	}
	links, err := g.store.Links(ctx, tx, mockID)
	if err != nil {
		return err
	}
	b := snapshot.Builder{Registry: g.registry}
	doc, err := b.Build(ctx, tx, m, links)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return g.store.SaveConfig(ctx, tx, mockID, string(buf))
}

// targetFor computes a rule's quota. A percentage is taken against the tab's
// authored cap and rounded half away from zero; the validator's percentage
// arithmetic assumes the same rounding.
func targetFor(r mocktest.Rule, tabCap int) int {
	if r.Count != nil {
		if *r.Count < 0 {
			return 0
		}
		return *r.Count
	}
	if r.Percentage != nil {
		return int(math.Round(*r.Percentage / 100 * float64(tabCap)))
	}
	return 0
}
