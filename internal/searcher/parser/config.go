package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
)

// Config carries everything Parse depends on. It replaces shared tables so
// concurrent parsers never touch global state.
type Config struct {
	Stopwords     map[string]struct{}
	MinWordLength int
	PhrasalSearch bool
	Wildcards     bool
	// TermLimit caps the number of terms one query may gain from wildcard
	// expansion. Zero means unlimited.
	TermLimit   int
	Punctuation string
	// WordList is the corpus word list joined by '|'. Only consulted when
	// Wildcards is set.
	WordList string
	// LoadWordList, when set and WordList is empty, is called at most once,
	// and only when a wildcard token survives the stopword and length checks.
	LoadWordList func() string
}

var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// DefaultStopwords returns a fresh copy of the built-in English stopword set.
func DefaultStopwords() map[string]struct{} {
	return StopwordSet(defaultStopwords)
}

// StopwordSet lowercases words into a lookup set.
func StopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// DefaultConfig mirrors the defaults of config.SearchConfig.
func DefaultConfig() Config {
	return FromSearchConfig(config.Default().Search)
}

// FromSearchConfig builds a parser Config from the application settings.
// Configured stopwords replace the built-in list when present.
func FromSearchConfig(sc config.SearchConfig) Config {
	stop := DefaultStopwords()
	if len(sc.Stopwords) > 0 {
		stop = StopwordSet(sc.Stopwords)
	}
	return Config{
		Stopwords:     stop,
		MinWordLength: sc.MinWordLength,
		PhrasalSearch: sc.PhrasalSearch,
		Wildcards:     sc.Wildcards,
		TermLimit:     sc.TermLimit,
		Punctuation:   sc.Punctuation,
	}
}

func (c Config) isStopword(token string) bool {
	_, ok := c.Stopwords[strings.ToLower(token)]
	return ok
}
