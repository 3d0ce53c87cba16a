package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterListAndExecute(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	RegisterBuiltins(reg)

	_, ok := reg.Get("summarize")
	assert.True(t, ok)

	list := reg.List()
	ids := make(map[string]bool, len(list))
	for _, m := range list {
		ids[m.ID] = true
	}
	assert.True(t, ids["sentiment_analysis"])
	assert.Len(t, list, 8)

	res := reg.Execute(context.Background(), ExecContext{}, "sentiment_analysis", map[string]any{"text": "good"})
	assert.True(t, res.Success)
	assert.Equal(t, "sentiment_analysis", res.Meta.SkillID)
}

func TestRegistry_ExecuteUnknownSkillReportsNotFound(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	res := reg.Execute(context.Background(), ExecContext{}, "no-such-skill", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "skill not found")
}

func TestSummarize_FallsBackToHeuristicWithoutLLMCollaborator(t *testing.T) {
	t.Parallel()
	s := summarizeSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{
		"text":          "First sentence here. Second sentence here. Third sentence here. Fourth sentence here.",
		"max_sentences": float64(2),
	})
	require.NoError(t, err)
	summary := out.(map[string]any)["summary"].(string)
	assert.Contains(t, summary, "First sentence here.")
	assert.Contains(t, summary, "Second sentence here.")
	assert.NotContains(t, summary, "Third sentence here.")
}

func TestSummarize_UsesInjectedLLMCollaboratorWhenPresent(t *testing.T) {
	t.Parallel()
	s := summarizeSkill{}
	ec := ExecContext{
		Summarize: func(_ context.Context, text string, maxSentences int) (string, error) {
			return "llm summary", nil
		},
	}
	out, err := s.Execute(context.Background(), ec, map[string]any{"text": "some long text."})
	require.NoError(t, err)
	assert.Equal(t, "llm summary", out.(map[string]any)["summary"])
}

func TestSummarize_RejectsEmptyText(t *testing.T) {
	t.Parallel()
	_, err := summarizeSkill{}.Execute(context.Background(), ExecContext{}, map[string]any{"text": "  "})
	assert.Error(t, err)
}

func TestSentiment_ClassifiesPositiveNegativeNeutral(t *testing.T) {
	t.Parallel()
	s := sentimentSkill{}

	pos, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "This is great and wonderful!"})
	require.NoError(t, err)
	assert.Equal(t, "positive", pos.(map[string]any)["label"])

	neg, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "This is terrible and awful."})
	require.NoError(t, err)
	assert.Equal(t, "negative", neg.(map[string]any)["label"])

	neu, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "The table is brown."})
	require.NoError(t, err)
	assert.Equal(t, "neutral", neu.(map[string]any)["label"])
}

func TestExtractEntities_FindsEmailsURLsAndNames(t *testing.T) {
	t.Parallel()
	s := extractEntitiesSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{
		"text": "please contact Jane Doe at jane.doe@example.com or visit https://example.com/docs for details",
	})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, []string{"jane.doe@example.com"}, m["emails"])
	assert.Equal(t, []string{"https://example.com/docs"}, m["urls"])
	assert.Contains(t, m["names"], "Jane Doe")
}

func TestKeywordExtraction_RanksByFrequencyThenAlphabetical(t *testing.T) {
	t.Parallel()
	s := keywordExtractionSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{
		"text":  "platform platform platform runtime runtime agent",
		"limit": float64(2),
	})
	require.NoError(t, err)
	keywords := out.(map[string]any)["keywords"].([]string)
	assert.Equal(t, []string{"platform", "runtime"}, keywords)
}

func TestKeywordExtraction_IgnoresStopwordsAndShortWords(t *testing.T) {
	t.Parallel()
	s := keywordExtractionSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "the and that with this platform"})
	require.NoError(t, err)
	keywords := out.(map[string]any)["keywords"].([]string)
	assert.Equal(t, []string{"platform"}, keywords)
}

func TestTextClassification_PicksHighestOverlapLabel(t *testing.T) {
	t.Parallel()
	s := textClassificationSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{
		"text":   "the billing invoice payment is overdue, please check the billing statement",
		"labels": []any{"billing", "shipping", "support"},
	})
	require.NoError(t, err)
	assert.Equal(t, "billing", out.(map[string]any)["label"])
}

func TestTextClassification_RequiresTextAndLabels(t *testing.T) {
	t.Parallel()
	_, err := textClassificationSkill{}.Execute(context.Background(), ExecContext{}, map[string]any{"text": "hi"})
	assert.Error(t, err)
}

func TestQuestionAnswering_ReturnsBestOverlappingSentence(t *testing.T) {
	t.Parallel()
	s := questionAnsweringSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{
		"question": "What color is the sky?",
		"context":  "The grass is green. The sky is blue. Water boils at 100 degrees.",
	})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Contains(t, m["answer"], "sky is blue")
	assert.Greater(t, m["confidence"], 0.0)
}

func TestContentModeration_FlagsDisallowedTerms(t *testing.T) {
	t.Parallel()
	s := contentModerationSkill{}

	clean, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "let's have lunch"})
	require.NoError(t, err)
	assert.False(t, clean.(map[string]any)["flagged"].(bool))

	flagged, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "here is the attack plan"})
	require.NoError(t, err)
	assert.True(t, flagged.(map[string]any)["flagged"].(bool))
}

func TestTranslate_IsPassthroughStub(t *testing.T) {
	t.Parallel()
	s := translateSkill{}
	out, err := s.Execute(context.Background(), ExecContext{}, map[string]any{"text": "hello", "target_language": "es"})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "hello", m["translated_text"])
	assert.Equal(t, "es", m["target_language"])
}
