// Package conversation selects and phrases the bot's next message: follow-up
// questions over the missing-field priority order, redirects for off-topic
// visitors, engagement lines for browsers, and post-qualification replies.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/extract"
	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/pkg/anthropic"
)

// disinterestSignals end questioning immediately when spotted in the last
// message.
var disinterestSignals = []string{
	"not interested", "just browsing", "just looking", "no thanks",
	"not buying", "don't want", "not now", "maybe later",
	"just checking", "just curious", "not ready",
}

const disinterestReply = "No problem at all! Feel free to explore at your own pace. If you have any questions or want to learn more, just let me know. We're here when you're ready!"

// fieldQuestions are the deterministic fallbacks when the LLM can't phrase
// a question naturally.
var fieldQuestions = map[string]string{
	extract.FieldTeamSize:        "How large is your team?",
	extract.FieldCurrentSolution: "What CRM system are you currently using?",
	extract.FieldPainPoints:      "What challenges are you trying to solve?",
	extract.FieldCompany:         "What company are you with?",
	extract.FieldVisitorName:     "What's your name?",
	extract.FieldVisitorEmail:    "What's your email address?",
}

var fieldDescriptions = map[string]string{
	extract.FieldTeamSize:        "the size of their team/organization",
	extract.FieldCurrentSolution: "what CRM or sales software they currently use",
	extract.FieldPainPoints:      "what problems or challenges they're facing",
	extract.FieldCompany:         "what company they work for",
	extract.FieldVisitorName:     "their name",
	extract.FieldVisitorEmail:    "their email address",
}

// Responder generates the bot side of the conversation.
type Responder struct {
	llm       anthropic.Client
	model     string
	maxTokens int64
}

// NewResponder creates a Responder using the given model.
func NewResponder(llm anthropic.Client, modelID string, maxTokens int64) *Responder {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Responder{llm: llm, model: modelID, maxTokens: maxTokens}
}

// NextQuestion picks the highest-priority missing field and phrases a
// natural question about it. Returns "" when nothing is missing, and a
// polite exit when the visitor has signaled disinterest.
func (r *Responder) NextQuestion(ctx context.Context, missing []string, facts model.FactSet, lastMessage string) string {
	if len(missing) == 0 {
		return ""
	}

	if Disinterested(lastMessage) {
		zap.L().Info("disinterest detected, polite exit")
		return disinterestReply
	}

	next := missing[0]
	question := r.phrase(ctx, next, facts, lastMessage)
	if question == "" {
		question = fieldQuestions[next]
	}
	return question
}

// Disinterested reports whether the message contains an explicit
// disinterest signal.
func Disinterested(message string) bool {
	lower := strings.ToLower(message)
	for _, signal := range disinterestSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

// phrase asks the LLM for a natural one-liner; "" on any failure.
func (r *Responder) phrase(ctx context.Context, field string, facts model.FactSet, lastMessage string) string {
	prompt := fmt.Sprintf(`You are a friendly, helpful sales assistant having a natural conversation.

Last customer message: %q

What you know: %s

What you need to find out: %s

Generate a natural, conversational response that briefly acknowledges their last message and smoothly asks about %s. Keep it SHORT (1-2 sentences max), friendly, and natural. Return ONLY the response text.`,
		lastMessage, knownContext(facts), fieldDescriptions[field], fieldDescriptions[field])

	temp := 0.7
	resp, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   100,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("responder: question generation failed", zap.Error(err))
		return ""
	}
	return strings.Trim(strings.TrimSpace(resp.Text), `"'`)
}

// Reply generates a context-aware conversational response for on-topic
// turns, with a deterministic fallback when the LLM fails or truncates.
func (r *Responder) Reply(ctx context.Context, message string, intent extract.IntentResult, history []string, facts model.FactSet, missing []string, stage model.Stage) string {
	historyText := ""
	if len(history) > 0 {
		start := 0
		if len(history) > 5 {
			start = len(history) - 5
		}
		historyText = strings.Join(history[start:], "\n")
	}

	needs := "We have enough info!"
	if len(missing) > 0 {
		needs = strings.Join(missing, ", ")
	}

	prompt := fmt.Sprintf(`You are a friendly, professional sales assistant for a company that provides CRM, ERP, and SalesIQ (AI-powered chatbots and sales intelligence).

CONVERSATION SO FAR:
%s

USER JUST SAID: %q

DETECTED INTENT: %s
CONVERSATION STAGE: %s

WHAT WE KNOW ABOUT THEM:
%s

WHAT WE STILL NEED:
%s

Generate a natural, warm response that acknowledges what they just said, shows understanding of their needs, and asks at most ONE natural follow-up question. Keep it conversational, not robotic. Respond with just the message.`,
		historyText, message, intent.Intent, stage, knownContext(facts), needs)

	temp := 0.7
	resp, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("responder: reply generation failed", zap.Error(err))
		return r.fallback(message, intent, missing)
	}

	reply := strings.TrimSpace(resp.Text)
	if len(reply) < 10 {
		return r.fallback(message, intent, missing)
	}
	return reply
}

// fallback builds a reasonable reply without the LLM.
func (r *Responder) fallback(message string, intent extract.IntentResult, missing []string) string {
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, "CRM"):
		return "Absolutely! Our CRM is built for speed and efficiency - way faster than traditional options and more affordable too. What's most important to you in a CRM?"
	case strings.Contains(upper, "ERP"):
		return "Great question! Our ERP system streamlines operations and cuts costs significantly. What's your biggest operational challenge right now?"
	case strings.Contains(upper, "SALESIQ"):
		return "Perfect! SalesIQ is our AI-powered chatbot platform. What kind of automation are you looking for?"
	}

	if !intent.IsOnTopic {
		return RedirectMessage()
	}

	if len(missing) > 0 {
		if q, ok := fieldQuestions[missing[0]]; ok {
			return q
		}
	}
	return "That's great! Tell me more about what you're looking for - I want to make sure we find the perfect solution for you."
}

// RedirectMessage politely steers an off-topic visitor back to the product
// line.
func RedirectMessage() string {
	return "We don't handle that directly, but we're experts in CRM, ERP, and SalesIQ! What's your biggest business challenge?"
}

// EngagementMessage pulls a browser toward a conversation, tailored to any
// product they've mentioned.
func EngagementMessage(productsMentioned []string) string {
	for _, p := range productsMentioned {
		switch strings.ToUpper(p) {
		case "CRM":
			return "Just browsing? No worries! Quick heads up - our CRM is faster and 40% cheaper than Salesforce. If you ever need help with sales automation, I'm here! What's your current setup?"
		case "ERP":
			return "Taking a look around? Cool! Our ERP system helps teams cut operational costs by 30%. What's your biggest operations challenge?"
		}
	}
	return "Just exploring? Perfect! We offer CRM, ERP, and SalesIQ bots - all designed to save you time and money. What kind of solution interests you most?"
}

func knownContext(facts model.FactSet) string {
	var known []string
	if facts.VisitorName != "" {
		known = append(known, "Name: "+facts.VisitorName)
	}
	if facts.Company != "" {
		known = append(known, "Company: "+facts.Company)
	}
	if facts.TeamSize > 0 {
		known = append(known, fmt.Sprintf("Team size: %d", facts.TeamSize))
	}
	if facts.CurrentSolution != "" {
		known = append(known, "Current solution: "+facts.CurrentSolution)
	}
	if len(facts.PainPoints) > 0 {
		known = append(known, "Pain points: "+strings.Join(facts.PainPoints, ", "))
	}
	if len(known) == 0 {
		return "Nothing yet"
	}
	return strings.Join(known, "\n")
}
