// Package engine orchestrates the qualification pipeline: per-message
// extraction and response selection, and the one-time qualification flow
// that turns a ready session into a scored, synced lead.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-intel/internal/alert"
	"github.com/sells-group/sales-intel/internal/analyze"
	"github.com/sells-group/sales-intel/internal/conversation"
	"github.com/sells-group/sales-intel/internal/crm"
	"github.com/sells-group/sales-intel/internal/extract"
	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/internal/scorer"
	"github.com/sells-group/sales-intel/internal/session"
	"github.com/sells-group/sales-intel/internal/store"
	"github.com/sells-group/sales-intel/pkg/notion"
)

// Config wires the engine's collaborators. CRM and Mirror are optional;
// nil disables that integration.
type Config struct {
	Sessions  *session.Manager
	Store     store.Store
	Extractor *extract.Extractor
	Intents   *extract.IntentDetector
	Responder *conversation.Responder
	Analyzer  *analyze.Analyzer
	Alerter   *alert.Alerter
	CRM       *crm.Syncer
	Mirror    *notion.LeadMirror

	ReadinessThreshold float64
}

// Engine drives the progressive qualification flow.
type Engine struct {
	sessions  *session.Manager
	store     store.Store
	extractor *extract.Extractor
	intents   *extract.IntentDetector
	responder *conversation.Responder
	analyzer  *analyze.Analyzer
	alerter   *alert.Alerter
	crm       *crm.Syncer
	mirror    *notion.LeadMirror
	threshold float64
}

// New creates an Engine from the given collaborators.
func New(cfg Config) *Engine {
	threshold := cfg.ReadinessThreshold
	if threshold <= 0 {
		threshold = extract.DefaultReadinessThreshold
	}
	return &Engine{
		sessions:  cfg.Sessions,
		store:     cfg.Store,
		extractor: cfg.Extractor,
		intents:   cfg.Intents,
		responder: cfg.Responder,
		analyzer:  cfg.Analyzer,
		alerter:   cfg.Alerter,
		crm:       cfg.CRM,
		mirror:    cfg.Mirror,
		threshold: threshold,
	}
}

// ExtractionResult is the per-message outcome returned to the chat widget.
type ExtractionResult struct {
	VisitorID    string `json:"visitor_id"`
	SessionID    string `json:"session_id"`
	VisitNumber  int    `json:"visit_number"`
	IsNewSession bool   `json:"is_new_session"`

	Reply string `json:"reply"`

	ExtractedData  model.FactSet `json:"extracted_data"`
	Completeness   float64       `json:"completeness"`
	MissingFields  []string      `json:"missing_fields"`
	ReadyToQualify bool          `json:"ready_to_qualify"`

	Stage       model.Stage  `json:"conversation_stage"`
	Intent      model.Intent `json:"detected_intent"`
	IsQualified bool         `json:"is_qualified"`
}

// ProcessMessage runs one conversational turn: session lifecycle, intent
// detection, fact extraction and merge, completeness, stage, the readiness
// gate, and response selection. The session is saved best-effort; a missed
// save is logged and the turn still returns its result.
func (e *Engine) ProcessMessage(ctx context.Context, visitorID, sessionID, userID, message string) (*ExtractionResult, error) {
	sess, isNew, err := e.sessions.GetOrCreate(ctx, visitorID, sessionID, userID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: session lookup")
	}

	history := append([]string(nil), sess.Messages...)
	sess.Messages = append(sess.Messages, message)

	intent := e.intents.Detect(ctx, message, history)
	sess.DetectedIntent = intent.Intent
	sess.ProductsInterested = unionProducts(sess.ProductsInterested, intent.ProductsMentioned)

	incoming := e.extractor.FromMessage(ctx, message)
	sess.ExtractedData = extract.Merge(sess.ExtractedData, incoming)
	sess.DataCompleteness = extract.Completeness(sess.ExtractedData)
	sess.ConversationStage = extract.DetermineStage(len(sess.Messages), sess.ExtractedData, intent.Intent)

	missing := extract.MissingCriticalFields(sess.ExtractedData)
	ready := extract.Ready(sess.DataCompleteness, sess.ExtractedData, len(sess.Messages), e.threshold)

	reply := e.selectReply(ctx, sess, intent, message, history, missing, ready)

	if !e.sessions.Update(ctx, sess) {
		zap.L().Warn("turn result not persisted",
			zap.String("visitor_id", visitorID),
			zap.String("session_id", sess.SessionID),
		)
	}

	return &ExtractionResult{
		VisitorID:      sess.VisitorID,
		SessionID:      sess.SessionID,
		VisitNumber:    sess.VisitNumber,
		IsNewSession:   isNew,
		Reply:          reply,
		ExtractedData:  sess.ExtractedData,
		Completeness:   sess.DataCompleteness,
		MissingFields:  missing,
		ReadyToQualify: ready,
		Stage:          sess.ConversationStage,
		Intent:         sess.DetectedIntent,
		IsQualified:    sess.IsQualified,
	}, nil
}

func (e *Engine) selectReply(ctx context.Context, sess *model.Session, intent extract.IntentResult, message string, history []string, missing []string, ready bool) string {
	// A qualified visitor is past data collection: no more follow-up
	// questions, redirects, or canned engagement lines.
	if sess.IsQualified {
		return e.responder.Reply(ctx, message, intent, history, sess.ExtractedData, nil, model.StageEngagement)
	}
	switch {
	case !intent.IsOnTopic || intent.Intent == model.IntentOffTopic:
		return conversation.RedirectMessage()
	case intent.Intent == model.IntentBrowsing:
		return conversation.EngagementMessage(intent.ProductsMentioned)
	case !ready && len(missing) > 0:
		return e.responder.NextQuestion(ctx, missing, sess.ExtractedData, message)
	default:
		return e.responder.Reply(ctx, message, intent, history, sess.ExtractedData, missing, sess.ConversationStage)
	}
}

// QualificationResult is the outcome of the one-time qualification flow.
type QualificationResult struct {
	Lead       *model.Lead     `json:"lead"`
	Score      model.LeadScore `json:"score"`
	VisitCount int             `json:"visit_count"`

	Summary    string `json:"summary"`
	ActionText string `json:"action_text"`
	BattleCard string `json:"battle_card,omitempty"`

	CRMSynced bool   `json:"crm_synced"`
	CRMLeadID string `json:"crm_lead_id,omitempty"`
}

// Qualify runs full-transcript analysis, visit-aware scoring, and lead
// persistence, then fans out the side effects (CRM sync, dashboard mirror,
// hot-lead alert). Side-effect failures are recorded, never propagated:
// the computed result stands once the lead row is written.
func (e *Engine) Qualify(ctx context.Context, visitorID, sessionID string) (*QualificationResult, error) {
	sess, err := e.sessions.Get(ctx, visitorID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Messages) == 0 {
		return nil, eris.New("engine: no messages to qualify")
	}

	analysis, err := e.analyzer.Transcript(ctx, sess.Transcript())
	if err != nil {
		return nil, err
	}

	visitCount, err := e.sessions.VisitCount(ctx, visitorID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if visitCount < 1 {
		visitCount = 1
	}

	score := scorer.Score(analysis, visitCount)

	lead := &model.Lead{
		ID:           uuid.NewString(),
		VisitorID:    visitorID,
		VisitorEmail: sess.ExtractedData.VisitorEmail,
		VisitorName:  sess.ExtractedData.VisitorName,
		Company:      sess.ExtractedData.Company,
		Transcript:   sess.Transcript(),
		Analysis:     analysis,
		Score:        score,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateLead(ctx, lead); err != nil {
		return nil, eris.Wrap(err, "engine: persist lead")
	}

	sess.IsQualified = true
	sess.LeadScore = &score.Score

	e.fanOut(ctx, sess, lead, visitCount)

	if !e.sessions.Update(ctx, sess) {
		zap.L().Warn("qualification bookkeeping not persisted",
			zap.String("visitor_id", visitorID),
			zap.String("session_id", sessionID),
		)
	}

	result := &QualificationResult{
		Lead:       lead,
		Score:      score,
		VisitCount: visitCount,
		Summary:    summarize(analysis, score, visitCount),
		ActionText: actionText(score, analysis),
		CRMSynced:  lead.CRMSynced,
		CRMLeadID:  lead.CRMLeadID,
	}
	if competitor := orFallback(analysis.CompetitorMentioned, sess.ExtractedData.CurrentSolution); competitor != "" {
		result.BattleCard = scorer.BattleCard(competitor)
	}

	zap.L().Info("lead qualified",
		zap.String("visitor_id", visitorID),
		zap.Int("score", score.Score),
		zap.String("category", string(score.Category)),
		zap.Int("visit_count", visitCount),
	)
	return result, nil
}

// fanOut runs the post-qualification side effects concurrently. Each
// records its own outcome; none can fail the qualification.
func (e *Engine) fanOut(ctx context.Context, sess *model.Session, lead *model.Lead, visitCount int) {
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	if e.crm != nil {
		// A session that already synced updates its CRM record instead of
		// inserting a duplicate.
		existingID := ""
		if sess.CRMSynced {
			existingID = sess.CRMLeadID
		}
		g.Go(func() error {
			crmID := existingID
			var err error
			if crmID != "" {
				err = e.crm.UpdateScore(ctx, crmID, lead.Score)
			} else {
				crmID, err = e.crm.CreateLead(ctx, lead)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sess.CRMSyncError = err.Error()
				zap.L().Error("crm sync failed",
					zap.String("visitor_id", lead.VisitorID),
					zap.Error(err),
				)
				return nil
			}
			sess.CRMSynced = true
			sess.CRMLeadID = crmID
			sess.CRMSyncedAt = crm.SyncedAt()
			lead.CRMSynced = true
			lead.CRMLeadID = crmID
			if err := e.store.UpdateLeadSync(ctx, lead.ID, crmID, true); err != nil {
				zap.L().Error("lead sync bookkeeping failed",
					zap.String("lead_id", lead.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	if e.mirror != nil {
		g.Go(func() error {
			if err := e.mirror.Mirror(ctx, lead); err != nil {
				zap.L().Error("dashboard mirror failed",
					zap.String("visitor_id", lead.VisitorID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	if e.alerter != nil && e.alerter.ShouldAlert(lead.Score) {
		g.Go(func() error {
			if err := e.alerter.Send(ctx, lead, visitCount); err != nil {
				zap.L().Error("hot lead alert failed",
					zap.String("visitor_id", lead.VisitorID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
}

// Analyze runs transcript analysis and scoring for a session without
// persisting a lead or firing side effects.
func (e *Engine) Analyze(ctx context.Context, visitorID, sessionID string) (model.AnalysisResult, model.LeadScore, error) {
	sess, err := e.sessions.Get(ctx, visitorID, sessionID)
	if err != nil {
		return model.AnalysisResult{}, model.LeadScore{}, err
	}
	if len(sess.Messages) == 0 {
		return model.AnalysisResult{}, model.LeadScore{}, eris.New("engine: no messages to analyze")
	}

	analysis, err := e.analyzer.Transcript(ctx, sess.Transcript())
	if err != nil {
		return model.AnalysisResult{}, model.LeadScore{}, err
	}

	visitCount, err := e.sessions.VisitCount(ctx, visitorID, sess.UserID)
	if err != nil {
		return model.AnalysisResult{}, model.LeadScore{}, err
	}
	if visitCount < 1 {
		visitCount = 1
	}
	return analysis, scorer.Score(analysis, visitCount), nil
}

func summarize(analysis model.AnalysisResult, score model.LeadScore, visitCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s lead scored %d/100.", score.Category, score.Score)
	fmt.Fprintf(&b, " Intent: %s, sentiment: %s.", analysis.Intent, analysis.Sentiment)
	if analysis.BudgetSignal != model.BudgetNull {
		fmt.Fprintf(&b, " Budget signal: %s.", analysis.BudgetSignal)
	}
	if n := len(analysis.PainPoints); n > 0 {
		fmt.Fprintf(&b, " %d pain point(s) identified.", n)
	}
	if visitCount > 1 {
		fmt.Fprintf(&b, " Returning visitor (%d visits).", visitCount)
	}
	return b.String()
}

func actionText(score model.LeadScore, analysis model.AnalysisResult) string {
	if analysis.Sentiment == model.SentimentFrustrated {
		return "Escalate to a senior agent now. The visitor is frustrated; a fast, personal response matters more than the pitch."
	}
	switch score.Category {
	case model.CategoryHot:
		return "Contact within 24 hours and schedule a demo. This lead is ready to move."
	case model.CategoryWarm:
		return "Follow up within 2-3 days with tailored material addressing their pain points."
	default:
		return "Add to the nurture track. Check back in after the next marketing touch."
	}
}

func orFallback(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func unionProducts(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := existing
	for _, p := range existing {
		seen[strings.ToUpper(p)] = true
	}
	for _, p := range incoming {
		if p == "" || seen[strings.ToUpper(p)] {
			continue
		}
		seen[strings.ToUpper(p)] = true
		out = append(out, p)
	}
	return out
}
