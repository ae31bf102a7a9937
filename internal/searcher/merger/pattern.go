package merger

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

const patternTimeout = 2 * time.Second

const (
	wordBefore = `(?<![\p{L}\p{N}_])`
	wordAfter  = `(?![\p{L}\p{N}_])`
)

// PhrasePattern compiles a case-insensitive matcher for phrase. Apostrophe
// and quote variants match each other, runs of whitespace match any
// whitespace, and word boundaries are enforced only at ends that are word
// characters.
func PhrasePattern(phrase string) (*regexp2.Regexp, error) {
	runes := []rune(strings.TrimSpace(phrase))
	if len(runes) == 0 {
		return nil, fmt.Errorf("%w: empty phrase", apperrors.ErrInvalidPattern)
	}

	var b strings.Builder
	if isWordRune(runes[0]) {
		b.WriteString(wordBefore)
	}
	inSpace := false
	for _, r := range runes {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteString(`\s+`)
			}
			inSpace = true
			continue
		}
		inSpace = false
		switch r {
		case '\'', '‘', '’', '‛':
			b.WriteString(`['‘’‛]`)
		case '"', '“', '”':
			b.WriteString(`["“”]`)
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	if isWordRune(runes[len(runes)-1]) {
		b.WriteString(wordAfter)
	}

	re, err := regexp2.Compile(b.String(), regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("%w: phrase %q: %v", apperrors.ErrInvalidPattern, phrase, err)
	}
	re.MatchTimeout = patternTimeout
	return re, nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
