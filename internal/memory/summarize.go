package memory

import (
	"regexp"
	"sort"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`[^.!?]*[.!?]+`)

func heuristicSummarize(text string, maxSentences int) string {
	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.Join(sentences[:maxSentences], " "))
}

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

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
var urlRe = regexp.MustCompile(`https?://[^\s]+`)

// extractEntities is a regex-based minimum: emails and URLs.
func extractEntities(text string) []string {
	out := append([]string{}, emailRe.FindAllString(text, -1)...)
	out = append(out, urlRe.FindAllString(text, -1)...)
	return uniqueStrings(out)
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

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "with": true, "this": true, "from": true,
	"have": true, "for": true, "are": true, "was": true, "were": true, "has": true,
	"been": true, "will": true, "would": true, "could": true, "should": true, "their": true,
}

// extractTopics returns the top-5 most frequent non-stopword words of
// length >= 5.
func extractTopics(text string) []string {
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
	if len(kvs) > 5 {
		kvs = kvs[:5]
	}
	out := make([]string, len(kvs))
	for i, kv := range kvs {
		out[i] = kv.word
	}
	return out
}

// extractKeyPoints returns the first five sentences of text (all of them
// when there are fewer) as a minimal key-point heuristic.
func extractKeyPoints(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	limit := 5
	if len(sentences) < limit {
		limit = len(sentences)
	}
	return sentences[:limit]
}
