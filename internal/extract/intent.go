package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/pkg/anthropic"
)

// IntentResult is the per-message classification used for stage inference
// and response selection.
type IntentResult struct {
	Intent            model.Intent `json:"intent"`
	ProductsMentioned []string     `json:"products_mentioned"`
	Confidence        float64      `json:"confidence"`
	IsOnTopic         bool         `json:"is_on_topic"`
}

const intentPromptTemplate = `Analyze this sales conversation and determine the user's intent.

CONVERSATION HISTORY:
%s

CURRENT MESSAGE: %q

OUR PRODUCTS: CRM, ERP, SalesIQ (AI chatbots)

CLASSIFY THE INTENT AS ONE OF:
- product_inquiry: Asking about our CRM/ERP/SalesIQ products
- browsing: Just looking, not committed yet
- pricing: Focused on cost/pricing
- problem_statement: Expressing pain points or challenges
- off_topic: Asking about products/services we don't offer

ALSO IDENTIFY which of our products they're interested in, and whether the message is on-topic for our business.

RESPOND IN JSON:
{"intent":"product_inquiry","products_mentioned":["CRM"],"confidence":0.9,"is_on_topic":true}`

// historyWindow bounds how much prior conversation is replayed into
// prompts; full history stays in storage.
const historyWindow = 5

// IntentDetector classifies a single message against the conversation so far.
type IntentDetector struct {
	llm       anthropic.Client
	model     string
	maxTokens int64
}

// NewIntentDetector creates an IntentDetector using the given model.
func NewIntentDetector(llm anthropic.Client, modelID string, maxTokens int64) *IntentDetector {
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &IntentDetector{llm: llm, model: modelID, maxTokens: maxTokens}
}

// Detect classifies the message. On any failure it falls back to an
// on-topic product inquiry at half confidence so the conversation keeps
// moving instead of stalling on a classifier hiccup.
func (d *IntentDetector) Detect(ctx context.Context, message string, history []string) IntentResult {
	historyText := "First message"
	if len(history) > 0 {
		start := 0
		if len(history) > historyWindow {
			start = len(history) - historyWindow
		}
		historyText = strings.Join(history[start:], "\n")
	}

	temp := 0.3
	resp, err := d.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       d.model,
		MaxTokens:   d.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: fmt.Sprintf(intentPromptTemplate, historyText, message)}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("intent: llm call failed", zap.Error(err))
		return fallbackIntent()
	}

	var result IntentResult
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &result); err != nil {
		zap.L().Warn("intent: malformed classification json", zap.Error(err))
		return fallbackIntent()
	}
	if !validIntent(result.Intent) {
		return fallbackIntent()
	}

	zap.L().Debug("intent detected",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
	)
	return result
}

func validIntent(i model.Intent) bool {
	switch i {
	case model.IntentProductInquiry, model.IntentBrowsing, model.IntentPricing,
		model.IntentProblemStatement, model.IntentOffTopic:
		return true
	}
	return false
}

func fallbackIntent() IntentResult {
	return IntentResult{
		Intent:     model.IntentProductInquiry,
		Confidence: 0.5,
		IsOnTopic:  true,
	}
}
