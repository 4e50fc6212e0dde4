package snapshot_test

import (
	"context"
	"testing"

	"github.com/prepforge/mocktest-engine/internal/pool"
	"github.com/prepforge/mocktest-engine/internal/snapshot"
)

func docWithTokens(tokens ...string) snapshot.Document {
	return snapshot.Document{
		MockTest: snapshot.Meta{ID: "mt-1", Title: "Live"},
		Tabs: []snapshot.TabConfig{{
			TabID: "tab-1", TabName: "Paper I", MCQs: tokens,
		}},
	}
}

func TestResolveLive(t *testing.T) {
	dbh := openDB(t, "resolve_live")
	ctx := context.Background()

	insertPolity(t, dbh, 482, "Which article covers equality?", "Article-15-FAQ===12-05-2021")
	insertCurrentAffairs(t, dbh, 7, "Summit host country?")

	r := snapshot.Resolver{Registry: pool.Default()}
	out, err := r.Resolve(ctx, dbh, docWithTokens(
		"polity$$$482$$$Article-15-FAQ===12-05-2021",
		"current_affairs$$$7",
	))
	if err != nil {
		t.Fatal(err)
	}
	qs := out.Tabs[0].Questions
	if len(qs) != 2 {
		t.Fatalf("questions: %d", len(qs))
	}
	if !qs[0].Found || qs[0].ID != 482 || qs[0].Question != "Which article covers equality?" {
		t.Fatalf("keyed token: %+v", qs[0])
	}
	if !qs[1].Found || qs[1].QuestionType != "daily" {
		t.Fatalf("bare token: %+v", qs[1])
	}
}

func TestResolveKeyMatchWinsOverID(t *testing.T) {
	dbh := openDB(t, "resolve_keywins")
	ctx := context.Background()

	// The token names id 10, but its key now belongs to id 20: content was
	// re-imported under a new row. The stable key wins.
	insertPolity(t, dbh, 10, "Old row", "slug-a")
	insertPolity(t, dbh, 20, "New row", "slug-b")

	r := snapshot.Resolver{Registry: pool.Default()}
	out, err := r.Resolve(ctx, dbh, docWithTokens("polity$$$10$$$slug-b"))
	if err != nil {
		t.Fatal(err)
	}
	q := out.Tabs[0].Questions[0]
	if !q.Found || q.ID != 20 || q.Question != "New row" {
		t.Fatalf("key match should win: %+v", q)
	}
}

func TestResolveFallsBackToID(t *testing.T) {
	dbh := openDB(t, "resolve_idfallback")
	ctx := context.Background()

	// The stored key changed since the token was minted; the id still holds.
	insertPolity(t, dbh, 482, "Renamed article", "Article-15-FAQ-v2")

	r := snapshot.Resolver{Registry: pool.Default()}
	out, err := r.Resolve(ctx, dbh, docWithTokens("polity$$$482$$$Article-15-FAQ===12-05-2021"))
	if err != nil {
		t.Fatal(err)
	}
	q := out.Tabs[0].Questions[0]
	if !q.Found || q.ID != 482 {
		t.Fatalf("id fallback: %+v", q)
	}
	if q.ExternalKey != "Article-15-FAQ-v2" {
		t.Fatalf("resolved content should carry the stored key, got %q", q.ExternalKey)
	}
}

func TestResolveMissesAndMalformed(t *testing.T) {
	dbh := openDB(t, "resolve_misses")
	ctx := context.Background()

	insertPolity(t, dbh, 1, "Survivor", "")

	r := snapshot.Resolver{Registry: pool.Default()}
	out, err := r.Resolve(ctx, dbh, docWithTokens(
		"polity$$$1",
		"polity$$$999",    // deleted record
		"astrology$$$5",   // unknown pool
		"12",             // legacy bare id, unparseable
		"polity$$$notnum", // malformed id
	))
	if err != nil {
		t.Fatal(err)
	}
	qs := out.Tabs[0].Questions
	if !qs[0].Found {
		t.Fatalf("live record: %+v", qs[0])
	}
	if qs[1].Found || qs[1].Pool != "polity" || qs[1].ID != 999 {
		t.Fatalf("deleted record: %+v", qs[1])
	}
	for i := 2; i < 5; i++ {
		if qs[i].Found {
			t.Fatalf("token %d should be unresolved: %+v", i, qs[i])
		}
	}
}
