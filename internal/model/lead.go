package model

import "time"

// Sentiment is the analyzer's read of the visitor's mood.
type Sentiment string

const (
	SentimentPositive   Sentiment = "Positive"
	SentimentNeutral    Sentiment = "Neutral"
	SentimentFrustrated Sentiment = "Frustrated"
	SentimentNegative   Sentiment = "Negative"
)

// BuyingIntent is the analyzer's read of purchase intent over the whole
// transcript, distinct from per-message Intent.
type BuyingIntent string

const (
	BuyingIntentBuying      BuyingIntent = "Buying"
	BuyingIntentResearching BuyingIntent = "Researching"
	BuyingIntentBrowsing    BuyingIntent = "Browsing"
	BuyingIntentSupport     BuyingIntent = "Support"
)

// BudgetSignal is a coarse budget indicator.
type BudgetSignal string

const (
	BudgetHigh   BudgetSignal = "High"
	BudgetMedium BudgetSignal = "Medium"
	BudgetLow    BudgetSignal = "Low"
	BudgetNull   BudgetSignal = "Null"
)

// RecommendedAction is the analyzer's suggested next step for the agent.
type RecommendedAction string

const (
	ActionScheduleDemo  RecommendedAction = "Schedule Demo"
	ActionOfferDiscount RecommendedAction = "Offer Discount"
	ActionEscalate      RecommendedAction = "Escalate"
	ActionNurture       RecommendedAction = "Nurture"
)

// AnalysisResult is the structured output of full-transcript analysis.
type AnalysisResult struct {
	Sentiment           Sentiment         `json:"sentiment"`
	Intent              BuyingIntent      `json:"intent"`
	BudgetSignal        BudgetSignal      `json:"budget_signal"`
	PainPoints          []string          `json:"pain_points"`
	RecommendedAction   RecommendedAction `json:"recommended_action"`
	CompetitorMentioned string            `json:"competitor_mentioned,omitempty"`
}

// NeutralAnalysis is the fallback used when the analyzer returns malformed
// output: a lead we know nothing about gets nurtured, not escalated.
func NeutralAnalysis() AnalysisResult {
	return AnalysisResult{
		Sentiment:         SentimentNeutral,
		Intent:            BuyingIntentBrowsing,
		BudgetSignal:      BudgetNull,
		PainPoints:        []string{},
		RecommendedAction: ActionNurture,
	}
}

// Category buckets a lead score into temperature bands.
type Category string

const (
	CategoryHot  Category = "Hot"
	CategoryWarm Category = "Warm"
	CategoryCold Category = "Cold"
)

// Priority is the follow-up priority derived from category and sentiment.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// LeadScore is the outcome of the one-time qualification scoring.
type LeadScore struct {
	Score    int      `json:"score"`
	Category Category `json:"category"`
	Priority Priority `json:"priority"`
}

// Lead is the finalized record emitted once per qualification event.
type Lead struct {
	ID           string         `json:"id"`
	VisitorID    string         `json:"visitor_id"`
	VisitorEmail string         `json:"visitor_email,omitempty"`
	VisitorName  string         `json:"visitor_name,omitempty"`
	Company      string         `json:"company,omitempty"`
	Transcript   string         `json:"transcript"`
	Analysis     AnalysisResult `json:"analysis"`
	Score        LeadScore      `json:"score"`
	CreatedAt    time.Time      `json:"created_at"`
	CRMSynced    bool           `json:"crm_synced"`
	CRMLeadID    string         `json:"crm_lead_id,omitempty"`
}
