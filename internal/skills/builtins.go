package skills

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RegisterBuiltins adds every required built-in skill to reg.
func RegisterBuiltins(reg Registry) {
	reg.Register(summarizeSkill{})
	reg.Register(translateSkill{})
	reg.Register(sentimentSkill{})
	reg.Register(extractEntitiesSkill{})
	reg.Register(keywordExtractionSkill{})
	reg.Register(textClassificationSkill{})
	reg.Register(questionAnsweringSkill{})
	reg.Register(contentModerationSkill{})
}

func strInput(input map[string]any, key string) string {
	if v, ok := input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// --- summarize ---------------------------------------------------------

type summarizeSkill struct{}

func (summarizeSkill) Metadata() Metadata {
	return Metadata{
		ID: "summarize", Name: "Summarize", Version: "1.0.0",
		Description: "Produce a short summary of the input text.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}, "max_sentences": map[string]any{"type": "integer"}},
			"required":   []string{"text"},
		},
		OutputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"summary": map[string]any{"type": "string"}},
		},
	}
}

func (summarizeSkill) Execute(ctx context.Context, ec ExecContext, input map[string]any) (any, error) {
	text := strInput(input, "text")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	maxSentences := 3
	if v, ok := input["max_sentences"].(float64); ok && v > 0 {
		maxSentences = int(v)
	}
	if ec.Summarize != nil {
		summary, err := ec.Summarize(ctx, text, maxSentences)
		if err == nil {
			return map[string]any{"summary": summary}, nil
		}
	}
	return map[string]any{"summary": heuristicSummary(text, maxSentences)}, nil
}

func heuristicSummary(text string, maxSentences int) string {
	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.Join(sentences[:maxSentences], " "))
}

var sentenceSplitter = regexp.MustCompile(`[^.!?]*[.!?]+`)

func splitSentences(text string) []string {
	matches := sentenceSplitter.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 && strings.TrimSpace(text) != "" {
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

// --- translate ---------------------------------------------------------

type translateSkill struct{}

func (translateSkill) Metadata() Metadata {
	return Metadata{
		ID: "translate", Name: "Translate", Version: "1.0.0",
		Description: "Translate text into a target language (pass-through stub; wire a translation provider for production use).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}, "target_language": map[string]any{"type": "string"}},
			"required":   []string{"text", "target_language"},
		},
	}
}

func (translateSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	text := strInput(input, "text")
	target := strInput(input, "target_language")
	if text == "" || target == "" {
		return nil, fmt.Errorf("text and target_language are required")
	}
	return map[string]any{"translated_text": text, "target_language": target, "provider": "passthrough"}, nil
}

// --- sentiment_analysis ------------------------------------------------

type sentimentSkill struct{}

func (sentimentSkill) Metadata() Metadata {
	return Metadata{ID: "sentiment_analysis", Name: "Sentiment Analysis", Version: "1.0.0",
		Description: "Classify text as positive, negative, or neutral.",
		InputSchema: map[string]any{
			"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}, "required": []string{"text"},
		},
	}
}

var positiveWords = map[string]bool{"good": true, "great": true, "excellent": true, "love": true, "happy": true, "amazing": true, "wonderful": true}
var negativeWords = map[string]bool{"bad": true, "terrible": true, "hate": true, "awful": true, "sad": true, "horrible": true, "poor": true}

func (sentimentSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	text := strInput(input, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	pos, neg := 0, 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:")
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	label := "neutral"
	score := 0.0
	total := pos + neg
	if total > 0 {
		score = float64(pos-neg) / float64(total)
	}
	switch {
	case score > 0.1:
		label = "positive"
	case score < -0.1:
		label = "negative"
	}
	return map[string]any{"label": label, "score": score}, nil
}

// --- extract_entities ------------------------------------------------

type extractEntitiesSkill struct{}

func (extractEntitiesSkill) Metadata() Metadata {
	return Metadata{ID: "extract_entities", Name: "Extract Entities", Version: "1.0.0",
		Description: "Extract emails, URLs, and capitalized-phrase entities from text.",
		InputSchema: map[string]any{
			"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}, "required": []string{"text"},
		},
	}
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
var urlRe = regexp.MustCompile(`https?://[^\s]+`)
var properNounRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)*)\b`)

func (extractEntitiesSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	text := strInput(input, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	return map[string]any{
		"emails": uniqueStrings(emailRe.FindAllString(text, -1)),
		"urls":   uniqueStrings(urlRe.FindAllString(text, -1)),
		"names":  uniqueStrings(properNounRe.FindAllString(text, -1)),
	}, nil
}

func uniqueStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// --- keyword_extraction ------------------------------------------------

type keywordExtractionSkill struct{}

func (keywordExtractionSkill) Metadata() Metadata {
	return Metadata{ID: "keyword_extraction", Name: "Keyword Extraction", Version: "1.0.0",
		Description: "Extract the most frequent non-trivial words from text.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}, "limit": map[string]any{"type": "integer"}},
			"required":   []string{"text"},
		},
	}
}

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "with": true, "this": true, "from": true,
	"have": true, "for": true, "are": true, "was": true, "were": true, "has": true,
	"been": true, "will": true, "would": true, "could": true, "should": true, "their": true,
}

func (keywordExtractionSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	text := strInput(input, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	limit := 5
	if v, ok := input["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	counts := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) < 5 || stopwords[w] {
			continue
		}
		counts[w]++
	}
	type kv struct {
		word  string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for w, c := range counts {
		kvs = append(kvs, kv{w, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].word < kvs[j].word
	})
	if len(kvs) > limit {
		kvs = kvs[:limit]
	}
	keywords := make([]string, len(kvs))
	for i, kv := range kvs {
		keywords[i] = kv.word
	}
	return map[string]any{"keywords": keywords}, nil
}

// --- text_classification ------------------------------------------------

type textClassificationSkill struct{}

func (textClassificationSkill) Metadata() Metadata {
	return Metadata{ID: "text_classification", Name: "Text Classification", Version: "1.0.0",
		Description: "Classify text against a caller-supplied label set by keyword overlap.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":   map[string]any{"type": "string"},
				"labels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"text", "labels"},
		},
	}
}

func (textClassificationSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	text := strings.ToLower(strInput(input, "text"))
	rawLabels, _ := input["labels"].([]any)
	if text == "" || len(rawLabels) == 0 {
		return nil, fmt.Errorf("text and labels are required")
	}
	best, bestScore := "", -1
	scores := map[string]int{}
	for _, rl := range rawLabels {
		label, _ := rl.(string)
		if label == "" {
			continue
		}
		score := strings.Count(text, strings.ToLower(label))
		scores[label] = score
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return map[string]any{"label": best, "scores": scores}, nil
}

// --- question_answering ------------------------------------------------

type questionAnsweringSkill struct{}

func (questionAnsweringSkill) Metadata() Metadata {
	return Metadata{ID: "question_answering", Name: "Question Answering", Version: "1.0.0",
		Description: "Answer a question from a supplied context passage by sentence overlap.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string"},
				"context":  map[string]any{"type": "string"},
			},
			"required": []string{"question", "context"},
		},
	}
}

func (questionAnsweringSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	question := strings.ToLower(strInput(input, "question"))
	passage := strInput(input, "context")
	if question == "" || passage == "" {
		return nil, fmt.Errorf("question and context are required")
	}
	qWords := map[string]bool{}
	for _, w := range strings.Fields(question) {
		qWords[strings.Trim(w, "?.,!")] = true
	}
	best, bestScore := "", -1
	for _, s := range splitSentences(passage) {
		score := 0
		for _, w := range strings.Fields(strings.ToLower(s)) {
			if qWords[strings.Trim(w, ".,!?;:")] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	return map[string]any{"answer": strings.TrimSpace(best), "confidence": confidenceFromScore(bestScore)}, nil
}

func confidenceFromScore(score int) float64 {
	if score <= 0 {
		return 0
	}
	c := float64(score) / 10.0
	if c > 1 {
		c = 1
	}
	return c
}

// --- content_moderation ------------------------------------------------

type contentModerationSkill struct{}

func (contentModerationSkill) Metadata() Metadata {
	return Metadata{ID: "content_moderation", Name: "Content Moderation", Version: "1.0.0",
		Description: "Flag text containing disallowed terms.",
		InputSchema: map[string]any{
			"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}, "required": []string{"text"},
		},
	}
}

var disallowedTerms = []string{"kill", "bomb", "attack plan"}

func (contentModerationSkill) Execute(_ context.Context, _ ExecContext, input map[string]any) (any, error) {
	text := strings.ToLower(strInput(input, "text"))
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	var flagged []string
	for _, term := range disallowedTerms {
		if strings.Contains(text, term) {
			flagged = append(flagged, term)
		}
	}
	return map[string]any{"flagged": len(flagged) > 0, "terms": flagged}, nil
}
