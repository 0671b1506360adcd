package generator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxSuggestions = 5

var stopWords = map[string]struct{}{
	"with": {}, "from": {}, "that": {}, "this": {}, "your": {}, "have": {},
	"into": {}, "about": {}, "they": {}, "their": {}, "will": {}, "what": {},
}

var platformKeywords = map[string][]string{
	"instagram": {"instagram", "social", "engagement", "hashtag"},
	"blog":      {"blog", "content", "article", "reading"},
	"website":   {"website", "web", "online", "digital"},
	"email":     {"email", "newsletter", "marketing", "promotion"},
	"product":   {"product", "sale", "quality", "benefit"},
	"ad":        {"advertising", "ads", "conversion", "cta"},
	"social":    {"social", "sharing", "viral", "trending"},
	"landing":   {"landing", "conversion", "lead", "sale"},
}

// SuggestKeywords proposes up to five keywords: three content words from the
// brief and two platform keywords.
func SuggestKeywords(prompt, platform string) []string {
	var suggestions []string
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		w = strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		suggestions = append(suggestions, w)
		if len(suggestions) == 3 {
			break
		}
	}
	if pk, ok := platformKeywords[platform]; ok {
		suggestions = append(suggestions, pk[:2]...)
	}
	out := NormalizeKeywords(suggestions)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
