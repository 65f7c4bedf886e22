// Package alert delivers hot-lead notifications to a chat webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
)

// DefaultScoreThreshold is the minimum lead score that triggers an alert.
const DefaultScoreThreshold = 70

// Alerter posts formatted lead alerts to a webhook URL. Delivery failures
// are reported but never fatal to the qualification flow.
type Alerter struct {
	webhookURL string
	threshold  int
	client     *http.Client
}

// New creates an Alerter. An empty webhookURL disables delivery.
func New(webhookURL string, threshold int) *Alerter {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return &Alerter{
		webhookURL: webhookURL,
		threshold:  threshold,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// ShouldAlert reports whether a lead clears the alert threshold.
func (a *Alerter) ShouldAlert(score model.LeadScore) bool {
	return a.webhookURL != "" && score.Score >= a.threshold
}

// Send delivers a hot-lead alert. Returns an error only for logging; the
// caller records it and moves on.
func (a *Alerter) Send(ctx context.Context, lead *model.Lead, visitCount int) error {
	if a.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"text": a.format(lead, visitCount)})
	if err != nil {
		return eris.Wrap(err, "alert: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alert: send")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("alert: webhook returned %d", resp.StatusCode)
	}

	zap.L().Info("hot lead alert sent",
		zap.String("visitor_id", lead.VisitorID),
		zap.Int("score", lead.Score.Score),
	)
	return nil
}

func (a *Alerter) format(lead *model.Lead, visitCount int) string {
	badge := "[NEW LEAD]"
	if visitCount > 1 {
		badge = fmt.Sprintf("[RETURNING CUSTOMER - %d visits]", visitCount)
	}

	painPoints := "- None identified"
	if len(lead.Analysis.PainPoints) > 0 {
		lines := make([]string, len(lead.Analysis.PainPoints))
		for i, p := range lead.Analysis.PainPoints {
			lines[i] = "- " + p
		}
		painPoints = strings.Join(lines, "\n")
	}

	return strings.TrimSpace(fmt.Sprintf(`%s

HIGH PRIORITY LEAD ALERT

Lead Score: %d/100
Category: %s

CONTACT INFORMATION
Name: %s
Email: %s
Company: %s

QUALIFICATION DETAILS
Intent: %s
Sentiment: %s
Budget Signal: %s

PAIN POINTS
%s

RECOMMENDED ACTION
%s

ACTION REQUIRED: This lead requires immediate follow-up.`,
		badge,
		lead.Score.Score,
		lead.Score.Category,
		orNotProvided(lead.VisitorName),
		orNotProvided(lead.VisitorEmail),
		orNotProvided(lead.Company),
		lead.Analysis.Intent,
		lead.Analysis.Sentiment,
		lead.Analysis.BudgetSignal,
		painPoints,
		lead.Analysis.RecommendedAction,
	))
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}
