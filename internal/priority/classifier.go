// Package priority assigns urgency tiers to complaint descriptions.
//
// Two independent classifiers live here. Classifier maps a description to a
// display tier (High, Medium, Low) using a configurable lexicon.
// ClassifyUrgency maps it to a scheduling tier (High, Normal) using a fixed
// keyword set; only that result drives slot eligibility.
package priority

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/facility_triage/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lexicon lists the phrases for each display tier.
type Lexicon struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
	Low    []string `yaml:"low"`
}

// Classifier is a compiled Lexicon. It is safe for concurrent use.
type Classifier struct {
	tiers []tier
}

type tier struct {
	level   models.Priority
	phrases []string // entries containing whitespace: substring match
	tokens  []token  // single-word entries: word boundary or substring
}

type token struct {
	word     string
	boundary *regexp.Regexp
}

// NewClassifier compiles lex. Entries are lowercased; blank entries are dropped.
func NewClassifier(lex Lexicon) *Classifier {
	return &Classifier{tiers: []tier{
		compileTier(models.PriorityHigh, lex.High),
		compileTier(models.PriorityMedium, lex.Medium),
		compileTier(models.PriorityLow, lex.Low),
	}}
}

func compileTier(level models.Priority, entries []string) tier {
	t := tier{level: level}
	for _, raw := range entries {
		entry := lower(strings.TrimSpace(raw))
		if entry == "" {
			continue
		}
		if strings.ContainsFunc(entry, unicode.IsSpace) {
			t.phrases = append(t.phrases, entry)
			continue
		}
		t.tokens = append(t.tokens, token{
			word:     entry,
			boundary: regexp.MustCompile(`\b` + regexp.QuoteMeta(entry) + `\b`),
		})
	}
	return t
}

// Classify returns the first tier, in High, Medium, Low order, with a
// matching entry. Descriptions that match nothing, or are blank, are Low.
func (c *Classifier) Classify(description string) models.Priority {
	text := lower(description)
	if strings.TrimSpace(text) == "" {
		return models.PriorityLow
	}
	for _, t := range c.tiers {
		if t.matches(text) {
			return t.level
		}
	}
	return models.PriorityLow
}

func (t tier) matches(text string) bool {
	for _, p := range t.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, tok := range t.tokens {
		// Substring containment also fires for single tokens ("leak" matches
		// "leakage"); existing triage data was classified that way.
		if tok.boundary.MatchString(text) || strings.Contains(text, tok.word) {
			return true
		}
	}
	return false
}

// Classify is a one-shot helper over NewClassifier(lex).Classify.
func Classify(description string, lex Lexicon) models.Priority {
	return NewClassifier(lex).Classify(description)
}

// lower builds a fresh Caser per call; cases.Caser is not goroutine safe.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
