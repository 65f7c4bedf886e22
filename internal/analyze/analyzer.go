// Package analyze runs full-transcript lead analysis through the LLM.
package analyze

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/pkg/anthropic"
)

const analysisSystemPrompt = `You are a B2B Sales Analyst. Output STRICT JSON only with these EXACT fields:

{
  "sentiment": "Positive" | "Neutral" | "Frustrated",
  "intent": "Buying" | "Researching" | "Browsing" | "Support",
  "budget_signal": "High" | "Medium" | "Low" | "Null",
  "pain_points": ["specific problem 1", "problem 2"],
  "recommended_action": "Schedule Demo" | "Offer Discount" | "Escalate" | "Nurture",
  "competitor_mentioned": "CompanyName" | null
}

STRICT RULES:
- sentiment: "Positive" for satisfied, "Neutral" for informational, "Frustrated" for unhappy
- intent: "Buying" for ready to purchase, "Researching"/"Browsing" for exploring, "Support" for help/issues
- budget_signal: "High" if mentions enterprise/premium, "Low" if price-sensitive, "Null" if no budget mentioned
- recommended_action: "Schedule Demo" for engaged buyers, "Offer Discount" for price concerns, "Escalate" for frustrated/urgent, "Nurture" for early-stage
- Output ONLY valid JSON, no markdown, no extra text`

// Analyzer classifies a complete chat transcript into lead signals.
type Analyzer struct {
	llm       anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Analyzer using the given model.
func New(llm anthropic.Client, modelID string, maxTokens int64) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Analyzer{llm: llm, model: modelID, maxTokens: maxTokens}
}

// Transcript analyzes the full conversation. Malformed model output is
// recovered with the neutral default; a hard API failure is fatal to the
// qualification request and surfaced to the caller.
func (a *Analyzer) Transcript(ctx context.Context, transcript string) (model.AnalysisResult, error) {
	temp := 0.1
	resp, err := a.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      analysisSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: "Analyze this sales chat:\n\n" + transcript}},
		Temperature: &temp,
	})
	if err != nil {
		return model.AnalysisResult{}, eris.Wrap(err, "analyze: transcript")
	}

	raw := strings.TrimSpace(resp.Text)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		zap.L().Warn("analyze: malformed analysis json, using neutral default", zap.Error(err))
		return model.NeutralAnalysis(), nil
	}
	normalize(&result)

	zap.L().Info("analysis complete",
		zap.String("intent", string(result.Intent)),
		zap.String("sentiment", string(result.Sentiment)),
		zap.String("budget_signal", string(result.BudgetSignal)),
		zap.Int("pain_points", len(result.PainPoints)),
	)
	return result, nil
}

// normalize snaps out-of-vocabulary enum values back to the neutral ones
// so a creative model answer cannot skew scoring.
func normalize(r *model.AnalysisResult) {
	switch r.Sentiment {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentFrustrated, model.SentimentNegative:
	default:
		r.Sentiment = model.SentimentNeutral
	}
	switch r.Intent {
	case model.BuyingIntentBuying, model.BuyingIntentResearching, model.BuyingIntentBrowsing, model.BuyingIntentSupport:
	default:
		r.Intent = model.BuyingIntentBrowsing
	}
	switch r.BudgetSignal {
	case model.BudgetHigh, model.BudgetMedium, model.BudgetLow, model.BudgetNull:
	default:
		r.BudgetSignal = model.BudgetNull
	}
	switch r.RecommendedAction {
	case model.ActionScheduleDemo, model.ActionOfferDiscount, model.ActionEscalate, model.ActionNurture:
	default:
		r.RecommendedAction = model.ActionNurture
	}
	if r.PainPoints == nil {
		r.PainPoints = []string{}
	}
}
