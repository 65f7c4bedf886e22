package scorer

import (
	"fmt"
	"strings"
)

// battleCards holds canned competitive positioning per known competitor.
var battleCards = map[string]string{
	"HubSpot":    "VS HubSpot: We are 40% cheaper with equivalent features. Superior AI-powered lead scoring. No feature gates on lower tiers.",
	"Salesforce": "VS Salesforce: 60% faster implementation. No complex admin training required. Transparent pricing, no hidden costs.",
	"Intercom":   "VS Intercom: Better AI context retention. Seamless CRM integration. 24/7 support included in all plans.",
	"Drift":      "VS Drift: More affordable for SMBs. Advanced analytics included. Better customization options.",
	"Zendesk":    "VS Zendesk: Purpose-built for sales, not just support. Integrated intelligence engine. Better conversion rates.",
	"Aptean":     "VS Aptean: Modern cloud-native architecture. Better mobile experience. More integrations available.",
}

// BattleCard returns the competitive positioning text for a detected
// competitor, with a generic fallback for unknown names. Competitor names
// arrive from model output, so matching is case-insensitive.
func BattleCard(competitor string) string {
	for name, card := range battleCards {
		if strings.EqualFold(name, competitor) {
			return card
		}
	}
	return fmt.Sprintf("VS %s: Contact our sales team for detailed competitive comparison.", competitor)
}
