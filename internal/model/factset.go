package model

// FactSet is the accumulated structured data extracted from a visitor's
// messages. The schema is closed: every extractable field is declared here
// so the merge rules and completeness weights stay exhaustive at compile
// time. Scalar fields use the empty string / zero as "not yet known".
type FactSet struct {
	VisitorName      string   `json:"visitor_name,omitempty"`
	VisitorEmail     string   `json:"visitor_email,omitempty"`
	Company          string   `json:"company,omitempty"`
	Role             string   `json:"role,omitempty"`
	TeamSize         int      `json:"team_size,omitempty"`
	CurrentSolution  string   `json:"current_solution,omitempty"`
	PainPoints       []string `json:"pain_points,omitempty"`
	BudgetIndication string   `json:"budget_indication,omitempty"`
	Urgency          string   `json:"urgency,omitempty"`
}

// PopulatedFields returns how many fields carry a meaningful value.
func (f FactSet) PopulatedFields() int {
	n := 0
	for _, present := range []bool{
		f.VisitorName != "",
		f.VisitorEmail != "",
		f.Company != "",
		f.Role != "",
		f.TeamSize > 0,
		f.CurrentSolution != "",
		len(f.PainPoints) > 0,
		f.BudgetIndication != "",
		f.Urgency != "",
	} {
		if present {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no field has been extracted yet.
func (f FactSet) IsEmpty() bool {
	return f.PopulatedFields() == 0
}
