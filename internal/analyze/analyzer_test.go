package analyze

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/pkg/anthropic"
)

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Text: f.text}, nil
}

func TestTranscriptParsesAnalysis(t *testing.T) {
	llm := &fakeLLM{text: `{"sentiment":"Positive","intent":"Buying","budget_signal":"High","pain_points":["manual data entry","lost deals"],"recommended_action":"Schedule Demo","competitor_mentioned":"HubSpot"}`}
	a := New(llm, "test-model", 0)

	result, err := a.Transcript(context.Background(), "Customer: we want to buy now")
	require.NoError(t, err)

	assert.Equal(t, model.SentimentPositive, result.Sentiment)
	assert.Equal(t, model.BuyingIntentBuying, result.Intent)
	assert.Equal(t, model.BudgetHigh, result.BudgetSignal)
	assert.Len(t, result.PainPoints, 2)
	assert.Equal(t, model.ActionScheduleDemo, result.RecommendedAction)
	assert.Equal(t, "HubSpot", result.CompetitorMentioned)
}

func TestTranscriptTrimsLeadingText(t *testing.T) {
	llm := &fakeLLM{text: `Here is the analysis: {"sentiment":"Neutral","intent":"Researching","budget_signal":"Null","pain_points":[],"recommended_action":"Nurture"}`}
	a := New(llm, "test-model", 0)

	result, err := a.Transcript(context.Background(), "Customer: hi")
	require.NoError(t, err)

	assert.Equal(t, model.BuyingIntentResearching, result.Intent)
}

func TestTranscriptMalformedFallsBackToNeutral(t *testing.T) {
	llm := &fakeLLM{text: "I could not analyze that conversation, sorry."}
	a := New(llm, "test-model", 0)

	result, err := a.Transcript(context.Background(), "Customer: hi")
	require.NoError(t, err)

	assert.Equal(t, model.NeutralAnalysis(), result)
}

func TestTranscriptAPIErrorIsFatal(t *testing.T) {
	llm := &fakeLLM{err: eris.New("overloaded")}
	a := New(llm, "test-model", 0)

	_, err := a.Transcript(context.Background(), "Customer: hi")
	assert.Error(t, err)
}

func TestTranscriptNormalizesBadEnums(t *testing.T) {
	llm := &fakeLLM{text: `{"sentiment":"Ecstatic","intent":"Window Shopping","budget_signal":"Enormous","pain_points":null,"recommended_action":"Call the CEO"}`}
	a := New(llm, "test-model", 0)

	result, err := a.Transcript(context.Background(), "Customer: hi")
	require.NoError(t, err)

	assert.Equal(t, model.SentimentNeutral, result.Sentiment)
	assert.Equal(t, model.BuyingIntentBrowsing, result.Intent)
	assert.Equal(t, model.BudgetNull, result.BudgetSignal)
	assert.Equal(t, model.ActionNurture, result.RecommendedAction)
	assert.NotNil(t, result.PainPoints)
}
