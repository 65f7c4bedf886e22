package extract

import "github.com/sells-group/sales-intel/internal/model"

// Field weights for the completeness score. They intentionally sum past
// 1.0; the score is clamped. A field earns its full weight iff present,
// no partial credit.
const (
	weightTeamSize         = 0.30
	weightCurrentSolution  = 0.25
	weightPainPoints       = 0.20
	weightVisitorEmail     = 0.15
	weightCompany          = 0.10
	weightVisitorName      = 0.10
	weightRole             = 0.025
	weightBudgetIndication = 0.025
)

// Completeness computes the weighted [0,1] completeness of a fact set.
func Completeness(facts model.FactSet) float64 {
	score := 0.0
	if facts.TeamSize > 0 {
		score += weightTeamSize
	}
	if facts.CurrentSolution != "" {
		score += weightCurrentSolution
	}
	if len(facts.PainPoints) > 0 {
		score += weightPainPoints
	}
	if facts.VisitorEmail != "" {
		score += weightVisitorEmail
	}
	if facts.Company != "" {
		score += weightCompany
	}
	if facts.VisitorName != "" {
		score += weightVisitorName
	}
	if facts.Role != "" {
		score += weightRole
	}
	if facts.BudgetIndication != "" {
		score += weightBudgetIndication
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Critical field names, in the priority order the responder asks about
// them. Only these four ever appear in MissingCriticalFields.
const (
	FieldTeamSize        = "team_size"
	FieldCurrentSolution = "current_solution"
	FieldPainPoints      = "pain_points"
	FieldVisitorEmail    = "visitor_email"
	FieldCompany         = "company"
	FieldVisitorName     = "visitor_name"
)

// MissingCriticalFields lists the critical fields not yet gathered,
// preserving the fixed priority order for question selection.
func MissingCriticalFields(facts model.FactSet) []string {
	var missing []string
	if facts.TeamSize <= 0 {
		missing = append(missing, FieldTeamSize)
	}
	if facts.CurrentSolution == "" {
		missing = append(missing, FieldCurrentSolution)
	}
	if len(facts.PainPoints) == 0 {
		missing = append(missing, FieldPainPoints)
	}
	if facts.VisitorEmail == "" {
		missing = append(missing, FieldVisitorEmail)
	}
	return missing
}
