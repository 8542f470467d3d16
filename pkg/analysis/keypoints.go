// Package analysis implements the Analysis Pipeline (AP): the staged
// conversion of an accepted WorkTask into a TaskAnalysisResult plus a
// seeded todo DAG.
package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/taskforge/orchestrator/pkg/model"
)

var sentenceSplit = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

// actionVerbs are weighted higher in the fallback ranker: sentences that
// read as actionable instructions make better key points than
// descriptive ones.
var actionVerbs = []string{
	"implement", "build", "create", "design", "test", "review", "deploy",
	"migrate", "integrate", "fix", "investigate", "document", "configure",
	"update", "remove", "add", "refactor",
}

// rankedSentence pairs a sentence with its fallback-ranking score.
type rankedSentence struct {
	text  string
	score float64
}

// extractKeyPointsFallback is the rule-based sentence ranking used when
// the NLP backend degrades. It scores each sentence
// by length (favoring neither extreme) and the presence of an action
// verb, and returns the top sentences as KeyPoints.
func extractKeyPointsFallback(content string, maxPoints int) []model.KeyPoint {
	raw := sentenceSplit.Split(strings.TrimSpace(content), -1)

	var ranked []rankedSentence
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		ranked = append(ranked, rankedSentence{text: s, score: scoreSentence(s)})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if maxPoints <= 0 || maxPoints > len(ranked) {
		maxPoints = len(ranked)
	}

	out := make([]model.KeyPoint, 0, maxPoints)
	for _, r := range ranked[:maxPoints] {
		out = append(out, model.KeyPoint{
			Text:       r.text,
			Category:   categorize(r.text),
			Confidence: 0.4, // fallback results are deliberately marked lower-confidence
		})
	}
	return out
}

func scoreSentence(s string) float64 {
	words := strings.Fields(s)
	n := len(words)
	if n == 0 {
		return 0
	}

	// Favor sentences of moderate length (5-25 words); penalize extremes.
	lengthScore := 1.0
	switch {
	case n < 5:
		lengthScore = float64(n) / 5
	case n > 25:
		lengthScore = 25.0 / float64(n)
	}

	lower := strings.ToLower(s)
	verbScore := 0.0
	for _, v := range actionVerbs {
		if strings.Contains(lower, v) {
			verbScore = 1.0
			break
		}
	}

	return lengthScore + verbScore
}

// categoryKeywords orders categories per the documented stage 4's "category
// ordering": research < design < development < testing < review <
// approval.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"research", []string{"research", "investigate", "explore", "analyze", "evaluate options"}},
	{"design", []string{"design", "architect", "plan", "spec", "wireframe"}},
	{"development", []string{"implement", "build", "develop", "code", "integrate", "migrate", "create"}},
	{"testing", []string{"test", "qa", "verify", "validate"}},
	{"review", []string{"review", "audit", "inspect"}},
	{"approval", []string{"approve", "sign-off", "signoff", "authorize"}},
}

// categoryOrder maps a category name to its position in the canonical
// dependency-ordering sequence.
var categoryOrder = map[string]int{
	"research":    0,
	"design":      1,
	"development": 2,
	"testing":     3,
	"review":      4,
	"approval":    5,
}

func categorize(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return "development"
}
