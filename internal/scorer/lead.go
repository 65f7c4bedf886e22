// Package scorer converts transcript analysis plus visit engagement into
// a 0-100 lead score, temperature category, and follow-up priority.
package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
)

var budgetPoints = map[model.BudgetSignal]int{
	model.BudgetHigh:   40,
	model.BudgetMedium: 25,
	model.BudgetLow:    10,
	model.BudgetNull:   0,
}

var intentPoints = map[model.BuyingIntent]int{
	model.BuyingIntentBuying:      30,
	model.BuyingIntentResearching: 20,
	model.BuyingIntentBrowsing:    10,
	model.BuyingIntentSupport:     5,
}

// Frustrated scores above Neutral: an unhappy visitor with budget is an
// opportunity, not a write-off.
var sentimentPoints = map[model.Sentiment]int{
	model.SentimentPositive:   20,
	model.SentimentFrustrated: 15,
	model.SentimentNeutral:    10,
	model.SentimentNegative:   5,
}

const (
	painPointUnit   = 5
	painPointCap    = 10
	visitBonusUnit  = 5
	visitBonusCap   = 15
	hotThreshold    = 80
	warmThreshold   = 50
	maxScore        = 100
)

// Score computes the lead score once per qualification event. It is a
// pure function of the analysis and visit count, so duplicate calls are
// idempotent in effect.
func Score(analysis model.AnalysisResult, visitCount int) model.LeadScore {
	score := budgetPoints[analysis.BudgetSignal] +
		intentPoints[analysis.Intent] +
		sentimentPoints[analysis.Sentiment]

	pain := len(analysis.PainPoints) * painPointUnit
	if pain > painPointCap {
		pain = painPointCap
	}
	score += pain

	// Repeat visits are a buying-intent proxy.
	bonus := (visitCount - 1) * visitBonusUnit
	if bonus < 0 {
		bonus = 0
	}
	if bonus > visitBonusCap {
		bonus = visitBonusCap
	}
	score += bonus

	if visitCount > 1 {
		zap.L().Info("visit engagement bonus applied",
			zap.Int("visit_count", visitCount),
			zap.Int("bonus", bonus),
		)
	}

	if score > maxScore {
		score = maxScore
	}

	var category model.Category
	var priority model.Priority
	switch {
	case score >= hotThreshold:
		category, priority = model.CategoryHot, model.PriorityHigh
	case score >= warmThreshold:
		category, priority = model.CategoryWarm, model.PriorityMedium
	default:
		category, priority = model.CategoryCold, model.PriorityLow
	}

	// A frustrated lead is never deprioritized, whatever the composite says.
	if analysis.Sentiment == model.SentimentFrustrated {
		priority = model.PriorityHigh
	}

	return model.LeadScore{Score: score, Category: category, Priority: priority}
}
