package extract

import (
	"sort"

	"github.com/sells-group/sales-intel/internal/model"
)

// Merge combines a fresh extraction into the accumulated fact set.
//
// Pain points are unioned and never shrink. Every other field is
// first-meaningful-value-wins: a new value is adopted only when it is
// meaningful and the existing slot is still empty. A visitor who states
// their email once must not have it clobbered by a later turn where
// extraction misfires.
func Merge(existing, incoming model.FactSet) model.FactSet {
	merged := existing

	merged.VisitorName = keepFirst(existing.VisitorName, incoming.VisitorName)
	merged.VisitorEmail = keepFirst(existing.VisitorEmail, incoming.VisitorEmail)
	merged.Company = keepFirst(existing.Company, incoming.Company)
	merged.Role = keepFirst(existing.Role, incoming.Role)
	merged.CurrentSolution = keepFirst(existing.CurrentSolution, incoming.CurrentSolution)
	merged.BudgetIndication = keepFirst(existing.BudgetIndication, incoming.BudgetIndication)
	merged.Urgency = keepFirst(existing.Urgency, incoming.Urgency)

	if existing.TeamSize <= 0 && incoming.TeamSize > 0 {
		merged.TeamSize = incoming.TeamSize
	}

	merged.PainPoints = unionPainPoints(existing.PainPoints, incoming.PainPoints)

	return merged
}

func keepFirst(existing, incoming string) string {
	if existing == "" && incoming != "" {
		return incoming
	}
	return existing
}

// unionPainPoints returns the set union, sorted for stable output. A nil
// result is only possible when both inputs are empty.
func unionPainPoints(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, p := range a {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range b {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
