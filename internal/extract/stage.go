package extract

import "github.com/sells-group/sales-intel/internal/model"

// DetermineStage infers the conversational phase from message count,
// detected intent, and how much the fact set has filled in. The result
// steers response tone downstream; the readiness gate ignores it.
func DetermineStage(messageCount int, facts model.FactSet, intent model.Intent) model.Stage {
	if messageCount == 1 {
		return model.StageGreeting
	}

	switch intent {
	case model.IntentProductInquiry, model.IntentProblemStatement:
		if !facts.IsEmpty() && facts.PopulatedFields() >= 3 {
			return model.StageQualification
		}
		return model.StageDiscovery
	case model.IntentBrowsing:
		return model.StageEngagement
	case model.IntentPricing:
		return model.StageClosing
	}

	return model.StageDiscovery
}
