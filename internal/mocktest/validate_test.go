package mocktest_test

import (
	"strings"
	"testing"

	"github.com/prepforge/mocktest-engine/internal/mocktest"
	"github.com/prepforge/mocktest-engine/internal/pool"
)

func intp(n int) *int         { return &n }
func pctp(f float64) *float64 { return &f }

func autoTab(name string, cap int, rules ...mocktest.Rule) mocktest.Tab {
	return mocktest.Tab{
		ID: "tab-" + name, Name: name,
		SelectionMode: mocktest.ModeAuto, TotalQuestions: cap, Rules: rules,
	}
}

func TestValidateCleanTab(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 20,
			mocktest.Rule{ID: "r1", Pool: "polity", Count: intp(10)},
			mocktest.Rule{ID: "r2", Pool: "static_gk", Count: intp(10)},
		),
	}}
	if issues := mocktest.Validate(m, pool.Default()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidatePercentageOverflow(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 20,
			mocktest.Rule{ID: "r1", Pool: "polity", Percentage: pctp(60)},
			mocktest.Rule{ID: "r2", Pool: "polity", Percentage: pctp(50)},
		),
	}}
	issues := mocktest.Validate(m, pool.Default())
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %v", issues)
	}
	if !strings.Contains(issues[0], "exceeds 100") || !strings.Contains(issues[0], "110") {
		t.Fatalf("issue should mention overflow and the value: %q", issues[0])
	}
}

func TestValidateBothCountAndPercentage(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 20,
			mocktest.Rule{ID: "r-both", Pool: "polity", Count: intp(5), Percentage: pctp(25)},
		),
	}}
	issues := mocktest.Validate(m, pool.Default())
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %v", issues)
	}
	if !strings.Contains(issues[0], "r-both") {
		t.Fatalf("issue should name the rule: %q", issues[0])
	}
}

func TestValidateNeitherCountNorPercentage(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 20, mocktest.Rule{ID: "r-empty", Pool: "polity"}),
	}}
	issues := mocktest.Validate(m, pool.Default())
	if len(issues) != 1 || !strings.Contains(issues[0], "r-empty") {
		t.Fatalf("expected issue naming r-empty, got %v", issues)
	}
}

func TestValidateCountOverflowAgainstCap(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 10,
			mocktest.Rule{ID: "r1", Pool: "polity", Count: intp(8)},
			mocktest.Rule{ID: "r2", Pool: "static_gk", Count: intp(5)},
		),
	}}
	issues := mocktest.Validate(m, pool.Default())
	if len(issues) != 1 || !strings.Contains(issues[0], "13") {
		t.Fatalf("expected count overflow issue, got %v", issues)
	}
}

func TestValidateZeroCapSkipsCountCheck(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 0,
			mocktest.Rule{ID: "r1", Pool: "polity", Count: intp(50)},
		),
	}}
	if issues := mocktest.Validate(m, pool.Default()); len(issues) != 0 {
		t.Fatalf("zero cap must not trigger the count check: %v", issues)
	}
}

func TestValidateIgnoresManualTabs(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{{
		ID: "t1", Name: "Curated", SelectionMode: mocktest.ModeManual,
		Rules: []mocktest.Rule{{ID: "r1", Pool: "polity"}}, // would be an issue on an auto tab
	}}}
	if issues := mocktest.Validate(m, pool.Default()); len(issues) != 0 {
		t.Fatalf("manual tabs are not validated: %v", issues)
	}
}

func TestValidateUnknownPool(t *testing.T) {
	m := mocktest.MockTest{Tabs: []mocktest.Tab{
		autoTab("GS", 20,
			mocktest.Rule{ID: "r-ghost", Pool: "astrology", Count: intp(5)},
			mocktest.Rule{ID: "r-ok", Pool: "polity", Count: intp(5)},
		),
	}}
	issues := mocktest.Validate(m, pool.Default())
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %v", issues)
	}
	if !strings.Contains(issues[0], "r-ghost") || !strings.Contains(issues[0], "astrology") {
		t.Fatalf("issue should name the rule and the pool: %q", issues[0])
	}
}

func TestRuleSpecificity(t *testing.T) {
	cases := []struct {
		rule mocktest.Rule
		want int
	}{
		{mocktest.Rule{Subject: "Math"}, 0},
		{mocktest.Rule{Subject: "Math", Chapter: "Algebra"}, 1},
		{mocktest.Rule{Chapter: "Algebra", SubChapter: "Quadratics"}, 2},
		{mocktest.Rule{Chapter: "a", SubChapter: "b", Section: "c"}, 3},
	}
	for _, c := range cases {
		if got := c.rule.Specificity(); got != c.want {
			t.Errorf("specificity %+v = %d, want %d", c.rule, got, c.want)
		}
	}
}
