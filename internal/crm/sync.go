// Package crm maps finalized leads onto Salesforce Lead records and keeps
// sync bookkeeping. Sync failures never invalidate an already-computed
// qualification result.
package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/pkg/salesforce"
)

// Syncer pushes finalized leads to Salesforce.
type Syncer struct {
	client salesforce.Client
	source string
	titler cases.Caser
}

// NewSyncer creates a Syncer. source becomes the Lead_Source field value.
func NewSyncer(client salesforce.Client, source string) *Syncer {
	if source == "" {
		source = "Chat Widget - Intelligence AI"
	}
	return &Syncer{
		client: client,
		source: source,
		titler: cases.Title(language.English),
	}
}

// CreateLead upserts the lead as a Salesforce Lead and returns the CRM
// record ID. A lead already in Salesforce under the same email is updated
// rather than duplicated.
func (s *Syncer) CreateLead(ctx context.Context, lead *model.Lead) (string, error) {
	record := map[string]any{
		"LastName":               s.displayName(lead.VisitorName),
		"Email":                  lead.VisitorEmail,
		"Company":                orDefault(lead.Company, "Not Provided"),
		"LeadSource":             s.source,
		"Status":                 statusForCategory(lead.Score.Category),
		"Rating":                 string(lead.Score.Category),
		"Description":            s.description(lead),
		"Intelligence_Score__c":  lead.Score.Score,
		"AI_Intent__c":           string(lead.Analysis.Intent),
		"AI_Sentiment__c":        string(lead.Analysis.Sentiment),
		"Budget_Signal__c":       string(lead.Analysis.BudgetSignal),
		"Recommended_Action__c":  string(lead.Analysis.RecommendedAction),
		"Visitor_ID__c":          lead.VisitorID,
	}
	if lead.Analysis.CompetitorMentioned != "" {
		record["Competitor__c"] = lead.Analysis.CompetitorMentioned
	}

	if existing := s.existingLeadID(ctx, lead.VisitorEmail); existing != "" {
		if err := s.client.UpdateOne(ctx, "Lead", existing, record); err != nil {
			return "", eris.Wrapf(err, "crm: update existing lead %s", existing)
		}
		zap.L().Info("existing crm lead updated",
			zap.String("visitor_id", lead.VisitorID),
			zap.String("crm_lead_id", existing),
		)
		return existing, nil
	}

	id, err := s.client.InsertOne(ctx, "Lead", record)
	if err != nil {
		return "", eris.Wrap(err, "crm: create lead")
	}
	zap.L().Info("lead synced to crm",
		zap.String("visitor_id", lead.VisitorID),
		zap.String("crm_lead_id", id),
	)
	return id, nil
}

// existingLeadID looks up a Salesforce Lead by email. A failed lookup is
// treated as no match so the sync falls back to an insert.
func (s *Syncer) existingLeadID(ctx context.Context, email string) string {
	if email == "" {
		return ""
	}
	var rows []struct {
		Id string
	}
	soql := fmt.Sprintf("SELECT Id FROM Lead WHERE Email = '%s' LIMIT 1", soqlEscape(email))
	if err := s.client.Query(ctx, soql, &rows); err != nil {
		zap.L().Warn("crm: duplicate lookup failed", zap.Error(err))
		return ""
	}
	if len(rows) == 0 {
		return ""
	}
	return rows[0].Id
}

func soqlEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// UpdateScore refreshes score-derived fields on an already-synced lead.
func (s *Syncer) UpdateScore(ctx context.Context, crmLeadID string, score model.LeadScore) error {
	err := s.client.UpdateOne(ctx, "Lead", crmLeadID, map[string]any{
		"Intelligence_Score__c": score.Score,
		"Rating":                string(score.Category),
		"Status":                statusForCategory(score.Category),
	})
	if err != nil {
		return eris.Wrapf(err, "crm: update score %s", crmLeadID)
	}
	return nil
}

func (s *Syncer) displayName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return s.titler.String(strings.ToLower(name))
}

func statusForCategory(c model.Category) string {
	switch c {
	case model.CategoryHot:
		return "Contacted"
	case model.CategoryWarm:
		return "Open"
	default:
		return "Nurture"
	}
}

func (s *Syncer) description(lead *model.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AI-Analyzed Lead from Chat\nGenerated: %s\n\n", lead.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "INTELLIGENCE SUMMARY:\n")
	fmt.Fprintf(&b, "- Lead Score: %d/100\n", lead.Score.Score)
	fmt.Fprintf(&b, "- Intent: %s\n", lead.Analysis.Intent)
	fmt.Fprintf(&b, "- Sentiment: %s\n", lead.Analysis.Sentiment)
	fmt.Fprintf(&b, "- Budget Signal: %s\n", lead.Analysis.BudgetSignal)
	fmt.Fprintf(&b, "- Recommended Action: %s\n\n", lead.Analysis.RecommendedAction)

	b.WriteString("IDENTIFIED PAIN POINTS:\n")
	if len(lead.Analysis.PainPoints) == 0 {
		b.WriteString("- None identified\n")
	} else {
		for _, p := range lead.Analysis.PainPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	b.WriteString("\nCHAT TRANSCRIPT:\n")
	b.WriteString(excerpt(lead.Transcript, 500))
	return b.String()
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SyncedAt returns the timestamp to record on the session when a sync
// succeeds.
func SyncedAt() *time.Time {
	t := time.Now().UTC()
	return &t
}
