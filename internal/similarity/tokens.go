package similarity

import "strings"

// stopwords is the fixed 58-word stopword set dropped during word
// tokenization, per spec.md §4.4.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "had": true, "has": true,
	"have": true, "he": true, "her": true, "him": true, "his": true,
	"how": true, "i": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "our": true,
	"she": true, "so": true, "that": true, "the": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "which": true, "who": true, "will": true,
	"with": true, "would": true, "you": true, "your": true,
}

// tokenize lowercases, splits on non-alphanumeric runs, drops stopwords
// and empty tokens.
func tokenize(s string) map[string]bool {
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make(map[string]bool)
	for _, f := range fields {
		if f == "" || stopwords[f] {
			continue
		}
		out[f] = true
	}
	return out
}

// TokenSetJaccard is the Jaccard similarity of the word-token sets of a
// and b.
func TokenSetJaccard(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
