package mocktest

import (
	"fmt"

	"github.com/prepforge/mocktest-engine/internal/pool"
)

// Validate statically checks a mock test's rule sets and returns advisory
// issues. Generation never calls this and never fails on any condition
// reported here; the admin surface shows the list to the author. Percentage
// arithmetic uses the same plain sum the evaluator's rounding works from.
func Validate(m MockTest, pools *pool.Registry) []string {
	var issues []string
	for _, tab := range m.Tabs {
		if tab.SelectionMode != ModeAuto {
			continue
		}
		var pctSum float64
		var cntSum int
		for _, r := range tab.Rules {
			if _, ok := pools.Resolve(r.Pool); !ok {
				issues = append(issues, fmt.Sprintf(
					"tab %q: rule %s references unknown pool %q", tab.Name, r.ID, r.Pool))
			}
			switch {
			case r.Count == nil && r.Percentage == nil:
				issues = append(issues, fmt.Sprintf(
					"tab %q: rule %s has neither a count nor a percentage", tab.Name, r.ID))
			case r.Count != nil && r.Percentage != nil:
				issues = append(issues, fmt.Sprintf(
					"tab %q: rule %s has both a count and a percentage", tab.Name, r.ID))
			}
			if r.Percentage != nil {
				pctSum += *r.Percentage
			}
			if r.Count != nil {
				cntSum += *r.Count
			}
		}
		if pctSum > 100 {
			issues = append(issues, fmt.Sprintf(
				"tab %q: configured percentages add up to %g, exceeds 100", tab.Name, pctSum))
		}
		if tab.TotalQuestions > 0 && cntSum > tab.TotalQuestions {
			issues = append(issues, fmt.Sprintf(
				"tab %q: explicit counts add up to %d, exceeds the tab cap %d",
				tab.Name, cntSum, tab.TotalQuestions))
		}
	}
	return issues
}
