package extract

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/pkg/anthropic"
)

const extractionSystemPrompt = `You are a data extraction assistant. Extract the following information from the customer's message. Return ONLY valid JSON.

Extract these fields:
- visitor_name: Full name if mentioned (string or null)
- visitor_email: Email address if mentioned (string or null)
- company: Company/organization name (string or null)
- role: Job title or role (string or null)
- team_size: Number of people/employees (integer or null)
- current_solution: Current CRM/software they use (string or null)
- pain_points: List of problems/challenges mentioned (array of strings)
- budget_indication: Budget hints like "cheap", "expensive", "$500/month" (string or null)
- urgency: Time sensitivity like "ASAP", "next month", "exploring" (string or null)

EMAIL RULES: extract ANY address containing an @ symbol, even obviously fake ones. Do not validate authenticity.

Return format:
{"visitor_name":null,"visitor_email":null,"company":null,"role":null,"team_size":null,"current_solution":null,"pain_points":[],"budget_indication":null,"urgency":null}`

// Extractor turns one free-text message into a typed fact set by
// delegating classification to the Anthropic API.
type Extractor struct {
	llm       anthropic.Client
	model     string
	maxTokens int64
}

// NewExtractor creates an Extractor using the given model.
func NewExtractor(llm anthropic.Client, modelID string, maxTokens int64) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Extractor{llm: llm, model: modelID, maxTokens: maxTokens}
}

// extractionWire matches the JSON the model is instructed to emit.
// team_size is `any` because models occasionally return "12" or "12 people".
type extractionWire struct {
	VisitorName      string   `json:"visitor_name"`
	VisitorEmail     string   `json:"visitor_email"`
	Company          string   `json:"company"`
	Role             string   `json:"role"`
	TeamSize         any      `json:"team_size"`
	CurrentSolution  string   `json:"current_solution"`
	PainPoints       []string `json:"pain_points"`
	BudgetIndication string   `json:"budget_indication"`
	Urgency          string   `json:"urgency"`
}

// FromMessage extracts structured facts from a single message. Extraction
// failure must never break the conversation loop, so every error path
// returns the empty fact set.
func (e *Extractor) FromMessage(ctx context.Context, message string) model.FactSet {
	temp := 0.3
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      extractionSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: message}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("extract: llm call failed", zap.Error(err))
		return model.FactSet{}
	}

	var wire extractionWire
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &wire); err != nil {
		zap.L().Warn("extract: malformed extraction json",
			zap.String("raw", truncate(resp.Text, 200)),
			zap.Error(err),
		)
		return model.FactSet{}
	}

	return model.FactSet{
		VisitorName:      wire.VisitorName,
		VisitorEmail:     wire.VisitorEmail,
		Company:          wire.Company,
		Role:             wire.Role,
		TeamSize:         coerceTeamSize(wire.TeamSize),
		CurrentSolution:  wire.CurrentSolution,
		PainPoints:       wire.PainPoints,
		BudgetIndication: wire.BudgetIndication,
		Urgency:          wire.Urgency,
	}
}

func coerceTeamSize(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		digits := strings.TrimFunc(n, func(r rune) bool { return r < '0' || r > '9' })
		if size, err := strconv.Atoi(digits); err == nil {
			return size
		}
	}
	return 0
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
