package model

import "time"

// SessionStatus represents the lifecycle state of a visitor session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionExpired   SessionStatus = "expired"
	SessionCompleted SessionStatus = "completed"
)

// Stage represents the coarse conversational phase of a session. It is
// advisory: the responder uses it to pick tone, the readiness gate does not.
type Stage string

const (
	StageGreeting      Stage = "greeting"
	StageDiscovery     Stage = "discovery"
	StageQualification Stage = "qualification"
	StageEngagement    Stage = "engagement"
	StageClosing       Stage = "closing"
)

// Intent classifies what a visitor is trying to do in a single message.
type Intent string

const (
	IntentProductInquiry   Intent = "product_inquiry"
	IntentBrowsing         Intent = "browsing"
	IntentPricing          Intent = "pricing"
	IntentProblemStatement Intent = "problem_statement"
	IntentOffTopic         Intent = "off_topic"
)

// Session tracks one visit worth of conversation for a visitor.
//
// Exactly one row exists per (visitor_id, session_id). The lifecycle
// manager owns all mutation; rows are archived by status, never deleted.
type Session struct {
	VisitorID   string `json:"visitor_id"`
	UserID      string `json:"user_id,omitempty"`
	SessionID   string `json:"session_id"`
	VisitNumber int    `json:"visit_number"`

	StartTime       time.Time `json:"start_time"`
	LastMessageTime time.Time `json:"last_message_time"`
	LastUpdated     time.Time `json:"last_updated"`

	Messages         []string `json:"messages"`
	ExtractedData    FactSet  `json:"extracted_data"`
	DataCompleteness float64  `json:"data_completeness"`

	// IsQualified is a one-way latch: once true it is never reset.
	IsQualified bool `json:"is_qualified"`
	LeadScore   *int `json:"lead_score,omitempty"`

	Status             SessionStatus `json:"status"`
	ConversationStage  Stage         `json:"conversation_stage"`
	DetectedIntent     Intent        `json:"detected_intent,omitempty"`
	ProductsInterested []string      `json:"products_interested,omitempty"`

	CRMLeadID    string     `json:"crm_lead_id,omitempty"`
	CRMSynced    bool       `json:"crm_synced"`
	CRMSyncError string     `json:"crm_sync_error,omitempty"`
	CRMSyncedAt  *time.Time `json:"crm_synced_at,omitempty"`
}

// NewSession creates an active session for the given visit number with an
// empty message history and fact set.
func NewSession(visitorID, userID, sessionID string, visitNumber int, now time.Time) *Session {
	return &Session{
		VisitorID:         visitorID,
		UserID:            userID,
		SessionID:         sessionID,
		VisitNumber:       visitNumber,
		StartTime:         now,
		LastMessageTime:   now,
		LastUpdated:       now,
		Messages:          []string{},
		ExtractedData:     FactSet{},
		Status:            SessionActive,
		ConversationStage: StageGreeting,
	}
}

// Transcript renders the message history the way the analyzer expects it.
func (s *Session) Transcript() string {
	out := ""
	for i, msg := range s.Messages {
		if i > 0 {
			out += "\n"
		}
		out += "Customer: " + msg
	}
	return out
}
