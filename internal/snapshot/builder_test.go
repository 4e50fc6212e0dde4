package snapshot_test

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	"github.com/prepforge/mocktest-engine/internal/db"
	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
	"github.com/prepforge/mocktest-engine/internal/snapshot"
)

func openDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(),
		db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func insertPolity(t *testing.T, dbh *sql.DB, id int64, question, key string) {
	t.Helper()
	if _, err := dbh.Exec(
		`INSERT INTO polity (id, question, chapter, external_key) VALUES ($1,$2,$3,$4)`,
		id, question, "Fundamental Rights", key); err != nil {
		t.Fatalf("insert polity: %v", err)
	}
}

func insertCurrentAffairs(t *testing.T, dbh *sql.DB, id int64, question string) {
	t.Helper()
	if _, err := dbh.Exec(
		`INSERT INTO current_affairs (id, question, question_type) VALUES ($1,$2,$3)`,
		id, question, "daily"); err != nil {
		t.Fatalf("insert current_affairs: %v", err)
	}
}

func oneTabTest(links ...mocktest.Question) (mocktest.MockTest, []mocktest.Question) {
	m := mocktest.MockTest{
		ID:    "mt-1",
		Title: "Prelims Mock 7",
		Tabs: []mocktest.Tab{{
			ID: "tab-1", MockTestID: "mt-1", Name: "Paper I",
			SelectionMode: mocktest.ModeAuto, TotalQuestions: len(links),
			TimeLimitMinutes: 120, Order: 1,
		}},
	}
	for i := range links {
		links[i].MockTestID = "mt-1"
		links[i].TabID = "tab-1"
		if links[i].Order == 0 {
			links[i].Order = i + 1
		}
	}
	return m, links
}

func TestBuildTokensAndParallelLists(t *testing.T) {
	dbh := openDB(t, "snap_tokens")
	ctx := context.Background()

	insertPolity(t, dbh, 482, "Which article covers equality?", "Article-15-FAQ===12-05-2021")
	insertCurrentAffairs(t, dbh, 7, "Summit host country?")

	m, links := oneTabTest(
		mocktest.Question{ID: "l1", Pool: "polity", QuestionID: 482, Marks: 2, NegativeMarks: 0.66},
		mocktest.Question{ID: "l2", Pool: "current_affairs", QuestionID: 7, Marks: 1},
	)
	b := snapshot.Builder{Registry: pool.Default()}
	doc, err := b.Build(ctx, dbh, m, links)
	if err != nil {
		t.Fatal(err)
	}

	if doc.MockTest.ID != "mt-1" || doc.MockTest.Title != "Prelims Mock 7" {
		t.Fatalf("meta: %+v", doc.MockTest)
	}
	if len(doc.Tabs) != 1 {
		t.Fatalf("tabs: %d", len(doc.Tabs))
	}
	tab := doc.Tabs[0]
	if len(tab.MCQs) != 2 || len(tab.MCQDetails) != 2 || len(tab.Questions) != 2 {
		t.Fatalf("lists out of step: %d/%d/%d", len(tab.MCQs), len(tab.MCQDetails), len(tab.Questions))
	}

	if tab.MCQs[0] != "polity$$$482$$$Article-15-FAQ===12-05-2021" {
		t.Errorf("token with key: %q", tab.MCQs[0])
	}
	// current_affairs row has no key value, so the token stays two-part.
	if tab.MCQs[1] != "current_affairs$$$7" {
		t.Errorf("token without key: %q", tab.MCQs[1])
	}
	if d := tab.MCQDetails[0]; d.MCQModel != "polity" || d.MCQID != 482 || d.Marks != 2 || d.NegativeMarks != 0.66 {
		t.Errorf("detail: %+v", d)
	}
	if q := tab.Questions[0]; !q.Found || q.Question != "Which article covers equality?" || q.Chapter != "Fundamental Rights" {
		t.Errorf("content: %+v", q)
	}
	if q := tab.Questions[1]; !q.Found || q.QuestionType != "daily" {
		t.Errorf("content: %+v", q)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	dbh := openDB(t, "snap_determinism")
	ctx := context.Background()

	insertPolity(t, dbh, 1, "Q one", "k-1")
	insertPolity(t, dbh, 2, "Q two", "k-2")
	insertPolity(t, dbh, 3, "Q three", "")

	m, links := oneTabTest(
		mocktest.Question{ID: "l1", Pool: "polity", QuestionID: 2},
		mocktest.Question{ID: "l2", Pool: "polity", QuestionID: 3},
		mocktest.Question{ID: "l3", Pool: "polity", QuestionID: 1},
	)
	b := snapshot.Builder{Registry: pool.Default()}
	first, err := b.Build(ctx, dbh, m, links)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build(ctx, dbh, m, links)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two builds over the same state differ:\n%+v\n%+v", first, second)
	}
}

func TestBuildLegacyPoolProbe(t *testing.T) {
	dbh := openDB(t, "snap_legacy")
	ctx := context.Background()

	// 11 lives only in polity; 12 exists in two pools and stays ambiguous.
	insertPolity(t, dbh, 11, "Only in polity", "")
	insertPolity(t, dbh, 12, "Polity twin", "")
	insertCurrentAffairs(t, dbh, 12, "Current affairs twin")

	m, links := oneTabTest(
		mocktest.Question{ID: "l1", Pool: "", QuestionID: 11},
		mocktest.Question{ID: "l2", Pool: "", QuestionID: 12},
	)
	b := snapshot.Builder{Registry: pool.Default()}
	doc, err := b.Build(ctx, dbh, m, links)
	if err != nil {
		t.Fatal(err)
	}
	tab := doc.Tabs[0]

	if tab.MCQs[0] != "polity$$$11" {
		t.Errorf("unique probe should resolve the pool, got %q", tab.MCQs[0])
	}
	if !tab.Questions[0].Found || tab.Questions[0].Question != "Only in polity" {
		t.Errorf("resolved content: %+v", tab.Questions[0])
	}

	// Ambiguous id: keep the bare id, never guess a pool.
	if tab.MCQs[1] != "12" {
		t.Errorf("ambiguous probe token: %q", tab.MCQs[1])
	}
	if tab.Questions[1].Found {
		t.Errorf("ambiguous probe must stay unresolved: %+v", tab.Questions[1])
	}
}

func TestBuildMissingRecord(t *testing.T) {
	dbh := openDB(t, "snap_missing")
	ctx := context.Background()

	insertPolity(t, dbh, 1, "Still here", "")
	m, links := oneTabTest(
		mocktest.Question{ID: "l1", Pool: "polity", QuestionID: 1},
		mocktest.Question{ID: "l2", Pool: "polity", QuestionID: 999},
	)
	b := snapshot.Builder{Registry: pool.Default()}
	doc, err := b.Build(ctx, dbh, m, links)
	if err != nil {
		t.Fatal(err)
	}
	tab := doc.Tabs[0]
	if tab.Questions[0].Found == false {
		t.Fatalf("existing record not found")
	}
	q := tab.Questions[1]
	if q.Found || q.Pool != "polity" || q.ID != 999 {
		t.Fatalf("deleted record placeholder: %+v", q)
	}
	// The link itself survives in the document even with no content behind it.
	if tab.MCQs[1] != "polity$$$999" {
		t.Fatalf("token for missing record: %q", tab.MCQs[1])
	}
}
