package textmatch

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/cases"
)

// tokenSplitPattern matches separator sequences for space-delimited languages.
// Apostrophes stay inside tokens so contractions survive ("don't").
var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}']+`)

// Matcher verifies that a scored word literally occurs in the transcript it
// was scored against. Matching is token-based and case-insensitive; Japanese
// transcripts are segmented morphologically since whitespace splitting yields
// nothing useful there.
type Matcher struct {
	language string

	jaOnce sync.Once
	jaTok  *tokenizer.Tokenizer
	jaErr  error
}

// NewMatcher builds a matcher for the given learning language (ISO 639-1).
func NewMatcher(language string) *Matcher {
	return &Matcher{language: strings.ToLower(strings.TrimSpace(language))}
}

// Contains reports whether word occurs in transcript as a token. Multi-word
// entries fall back to a folded substring check since token equality cannot
// represent them.
func (m *Matcher) Contains(transcript, word string) bool {
	word = strings.TrimSpace(word)
	if word == "" || strings.TrimSpace(transcript) == "" {
		return false
	}

	if strings.ContainsAny(word, " 　") {
		return strings.Contains(fold(transcript), fold(word))
	}

	folded := fold(word)
	for _, token := range m.Tokens(transcript) {
		if token == folded {
			return true
		}
	}
	return false
}

// Tokens segments text into folded tokens using the language-appropriate
// strategy.
func (m *Matcher) Tokens(text string) []string {
	if m.language == "ja" {
		if tokens, err := m.japaneseTokens(text); err == nil {
			return tokens
		}
		// Dictionary failed to load; degrade to the generic splitter rather
		// than rejecting every mapping.
	}
	return splitTokens(text)
}

func (m *Matcher) japaneseTokens(text string) ([]string, error) {
	m.jaOnce.Do(func() {
		m.jaTok, m.jaErr = tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	})
	if m.jaErr != nil {
		return nil, fmt.Errorf("load ja tokenizer: %w", m.jaErr)
	}

	raw := m.jaTok.Tokenize(text)
	tokens := make([]string, 0, len(raw)*2)
	for _, token := range raw {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		surface := strings.TrimSpace(token.Surface)
		if surface == "" {
			continue
		}
		tokens = append(tokens, fold(surface))
		// Conjugated forms also match on their dictionary form so a scored
		// base word like 行く matches 行っ in the transcript. IPA feature
		// index 6 carries the lemma.
		if features := token.Features(); len(features) > 6 && features[6] != "*" && features[6] != surface {
			tokens = append(tokens, fold(features[6]))
		}
	}
	return tokens, nil
}

func splitTokens(text string) []string {
	raw := tokenSplitPattern.Split(text, -1)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.Trim(token, "'")
		if token == "" {
			continue
		}
		tokens = append(tokens, fold(token))
	}
	return tokens
}

// fold builds a fresh Caser per call since Casers are not safe for
// concurrent use and matchers are shared across word workers.
func fold(s string) string {
	return cases.Fold().String(s)
}
