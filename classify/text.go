package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// Stop words never start or join an entity mention.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "its": true, "their": true, "these": true,
	"those": true, "there": true, "i": true, "we": true, "me": true,
}

// Words that open a question or request rather than name something.
var questionWords = map[string]bool{
	"what": true, "how": true, "why": true, "who": true, "whom": true, "whose": true,
	"when": true, "where": true, "which": true, "does": true, "did": true, "do": true,
	"is": true, "are": true, "was": true, "were": true, "can": true, "could": true,
	"should": true, "would": true, "will": true, "has": true, "have": true,
	"explain": true, "describe": true, "compare": true, "list": true, "tell": true,
	"give": true, "show": true, "summarize": true, "summarise": true, "find": true,
}

var quotedSpan = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|(?:^|\s)'([^']+)'`)

// ExtractEntities returns the entities a query names: quoted spans first, then
// runs of capitalized tokens. Question words opening a sentence and stop words
// are skipped. Duplicates are removed case-insensitively, keeping the first.
func ExtractEntities(query string) []string {
	var entities []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.Join(strings.Fields(name), " ")
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, name)
	}

	for _, m := range quotedSpan.FindAllStringSubmatch(query, -1) {
		add(m[1] + m[2] + m[3])
	}
	rest := quotedSpan.ReplaceAllString(query, " . ")

	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = run[:0]
		}
	}

	sentenceStart := true
	for _, field := range strings.Fields(rest) {
		token, boundary := cleanToken(field)
		lower := strings.ToLower(token)

		switch {
		case token == "":
		case sentenceStart && questionWords[lower]:
			flush()
		case stopWords[lower] || !isCapitalized(token):
			flush()
		default:
			run = append(run, token)
		}

		if token != "" {
			sentenceStart = false
		}
		if boundary {
			flush()
		}
		if strings.ContainsRune(".?!", rune(field[len(field)-1])) {
			sentenceStart = true
		}
	}
	flush()

	return entities
}

// cleanToken trims surrounding punctuation and possessives. boundary reports
// whether trailing punctuation ends the current mention.
func cleanToken(field string) (string, bool) {
	token := strings.TrimRightFunc(field, isTrailingPunct)
	boundary := len(token) != len(field)
	token = strings.TrimLeftFunc(token, func(r rune) bool {
		return strings.ContainsRune("([{\"'“‘", r)
	})
	token = strings.TrimSuffix(strings.TrimSuffix(token, "'s"), "’s")
	return token, boundary
}

func isTrailingPunct(r rune) bool {
	return strings.ContainsRune(".,!?;:)]}\"'”’", r)
}

// isCapitalized reports whether a token starts with an upper-case letter or
// is an acronym-like mix such as "gRPC".
func isCapitalized(token string) bool {
	for i, r := range token {
		if unicode.IsUpper(r) {
			return true
		}
		if i == 0 && !unicode.IsLetter(r) {
			return false
		}
	}
	return false
}
