package conversation

import "strings"

// actionMarkers flag a message as describing an open action item rather
// than ordinary discussion.
var actionMarkers = []string{
	"todo:", "action item:", "need to", "we should", "follow up", "will do",
	"i'll", "let's", "assign",
}

// stopWords are excluded from topic extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "and": true, "in": true, "on": true, "for": true, "with": true,
	"this": true, "that": true, "it": true, "was": true, "be": true, "as": true,
}

func isActionItem(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range actionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// keywordsIn returns the distinct content words (length > 4, not a stop
// word) in content, lowercased, as a lightweight topic signal.
func keywordsIn(content string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, ".,;:!?\"'")
		if len(w) <= 4 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}
