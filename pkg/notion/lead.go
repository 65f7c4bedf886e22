package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-intel/internal/model"
)

// LeadMirror writes one dashboard row per qualified lead.
type LeadMirror struct {
	client Client
	dbID   string
}

// NewLeadMirror creates a mirror targeting the given Notion database.
func NewLeadMirror(client Client, dbID string) *LeadMirror {
	return &LeadMirror{client: client, dbID: dbID}
}

// Mirror creates the dashboard page for a finalized lead.
func (m *LeadMirror) Mirror(ctx context.Context, lead *model.Lead) error {
	title := lead.VisitorName
	if title == "" {
		title = lead.VisitorID
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(title),
		},
		"Email": notionapi.RichTextProperty{
			RichText: richText(lead.VisitorEmail),
		},
		"Company": notionapi.RichTextProperty{
			RichText: richText(lead.Company),
		},
		"Score": notionapi.NumberProperty{
			Number: float64(lead.Score.Score),
		},
		"Category": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(lead.Score.Category)},
		},
		"Priority": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(lead.Score.Priority)},
		},
		"Intent": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(lead.Analysis.Intent)},
		},
		"Pain Points": notionapi.RichTextProperty{
			RichText: richText(strings.Join(lead.Analysis.PainPoints, "; ")),
		},
	}

	_, err := m.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(m.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return eris.Wrapf(err, "notion: mirror lead %s", lead.VisitorID)
	}
	return nil
}

func richText(s string) []notionapi.RichText {
	if s == "" {
		return nil
	}
	return []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}
}
