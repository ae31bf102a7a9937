package parser

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/stemmer"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/logger"
)

type Kind int

// Terms are evaluated in Kind order: the most restrictive kinds first.
const (
	KindPhrase Kind = iota
	KindMustContain
	KindMustNotContain
	KindMayContain
)

func (k Kind) String() string {
	switch k {
	case KindPhrase:
		return "phrase"
	case KindMustContain:
		return "must"
	case KindMustNotContain:
		return "must_not"
	case KindMayContain:
		return "may"
	}
	return "unknown"
}

type Term struct {
	Text string `json:"text"`
	Stem string `json:"stem"`
	Kind Kind   `json:"kind"`
}

type QueryPlan struct {
	Terms           []Term
	Discarded       []string
	NormalizedQuery string
	RawQuery        string
}

// Stems returns every distinct index key the plan needs, in term order.
func (p *QueryPlan) Stems() []string {
	seen := make(map[string]struct{}, len(p.Terms))
	stems := make([]string, 0, len(p.Terms))
	for _, t := range p.Terms {
		if _, ok := seen[t.Stem]; ok {
			continue
		}
		seen[t.Stem] = struct{}{}
		stems = append(stems, t.Stem)
	}
	return stems
}

const (
	wildcardGlyphs = "*?[]"
	wordDelimiter  = '|'
	patternTimeout = 2 * time.Second
)

// HasWildcards reports whether raw would need the corpus word list to expand.
func HasWildcards(raw string) bool {
	return strings.ContainsAny(raw, wildcardGlyphs)
}

var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`,
)

type parseState struct {
	cfg        Config
	plan       *QueryPlan
	normalized []string
	expansions int
	words      *string
}

// Parse turns a raw query into typed terms. It never fails: tokens it cannot
// use are recorded in Discarded or dropped.
func Parse(raw string, cfg Config) *QueryPlan {
	plan := &QueryPlan{
		Terms:     make([]Term, 0),
		Discarded: make([]string, 0),
		RawQuery:  raw,
	}
	st := &parseState{cfg: cfg, plan: plan}

	query := prepare(raw, cfg.PhrasalSearch)
	var token strings.Builder
	inPhrase := false
	for _, r := range query {
		switch {
		case r == '"':
			st.addItem(token.String(), inPhrase)
			token.Reset()
			inPhrase = !inPhrase
		case inPhrase:
			token.WriteRune(r)
		case strings.ContainsRune(cfg.Punctuation, r):
		case r == ' ':
			st.addItem(token.String(), false)
			token.Reset()
		default:
			token.WriteRune(r)
		}
	}
	st.addItem(token.String(), inPhrase)

	sort.SliceStable(plan.Terms, func(i, j int) bool {
		return plan.Terms[i].Kind < plan.Terms[j].Kind
	})
	plan.NormalizedQuery = strings.Join(st.normalized, " ")
	return plan
}

func prepare(raw string, phrasal bool) string {
	query := strings.Join(strings.Fields(raw), " ")
	query = quoteReplacer.Replace(query)
	query = stripStrayApostrophes(query)
	if !phrasal {
		return strings.ReplaceAll(query, `"`, "")
	}
	query = strings.ReplaceAll(query, `""`, "")
	if strings.Count(query, `"`)%2 == 1 {
		i := strings.LastIndex(query, `"`)
		query = query[:i] + query[i+1:]
	}
	return query
}

// stripStrayApostrophes removes apostrophes that open or close a word.
func stripStrayApostrophes(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		words[i] = strings.Trim(w, "'")
	}
	return strings.Join(words, " ")
}

func (st *parseState) discard(token string) {
	st.normalized = append(st.normalized, token)
	st.plan.Discarded = append(st.plan.Discarded, token)
}

func (st *parseState) emit(t Term) {
	st.plan.Terms = append(st.plan.Terms, t)
}

func (st *parseState) addItem(token string, phrasal bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	bare := strings.TrimLeft(token, "+-")
	if !phrasal && significantLength(bare) < st.cfg.MinWordLength {
		st.discard(token)
		return
	}
	if st.cfg.isStopword(bare) {
		st.discard(token)
		return
	}

	if phrasal || strings.ContainsRune(token, ' ') {
		st.addPhrase(token)
		return
	}

	st.normalized = append(st.normalized, token)
	if HasWildcards(bare) {
		if st.cfg.Wildcards {
			st.expandWildcard(bare)
			return
		}
		token = stripGlyphs(token)
		bare = stripGlyphs(bare)
		if bare == "" {
			return
		}
	}

	kind := KindMayContain
	switch token[0] {
	case '+':
		kind = KindMustContain
	case '-':
		kind = KindMustNotContain
	}
	if bare == "" {
		return
	}
	st.emit(Term{Text: bare, Stem: stemmer.Stem(strings.ToLower(bare)), Kind: kind})
}

func (st *parseState) addPhrase(phrase string) {
	for _, word := range strings.Fields(phrase) {
		word = strings.ToLower(strings.TrimFunc(word, notWordRune))
		if word == "" || st.cfg.isStopword(word) {
			continue
		}
		st.normalized = append(st.normalized, `"`+phrase+`"`)
		st.emit(Term{Text: phrase, Stem: stemmer.Stem(word), Kind: KindPhrase})
		return
	}
	st.discard(`"` + phrase + `"`)
}

func (st *parseState) expandWildcard(token string) {
	re, err := compileWildcard(token)
	if err != nil {
		logger.WithComponent("query-parser").Debug("wildcard pattern rejected", "token", token, "error", err)
		return
	}
	kind := KindMayContain
	if st.cfg.PhrasalSearch {
		kind = KindPhrase
	}
	seen := make(map[string]struct{})
	m, err := re.FindStringMatch(st.wordList())
	for m != nil && err == nil {
		if st.cfg.TermLimit > 0 && st.expansions >= st.cfg.TermLimit {
			return
		}
		word := m.String()
		lower := strings.ToLower(word)
		if _, dup := seen[lower]; !dup {
			seen[lower] = struct{}{}
			st.expansions++
			st.emit(Term{Text: word, Stem: stemmer.Stem(lower), Kind: kind})
		}
		m, err = re.FindNextMatch(m)
	}
}

func (st *parseState) wordList() string {
	if st.words == nil {
		words := st.cfg.WordList
		if words == "" && st.cfg.LoadWordList != nil {
			words = st.cfg.LoadWordList()
		}
		st.words = &words
	}
	return *st.words
}

// compileWildcard builds a whole-word matcher over the delimiter-joined
// corpus word list.
func compileWildcard(token string) (*regexp2.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?<=^|\|)`)
	for _, r := range token {
		switch r {
		case '*':
			b.WriteString(`[^|]*`)
		case '?':
			b.WriteString(`[^|]`)
		case '[', ']':
			b.WriteRune(r)
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	b.WriteString(`(?=\||$)`)
	re, err := regexp2.Compile(b.String(), regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = patternTimeout
	return re, nil
}

func significantLength(token string) int {
	n := 0
	for _, r := range token {
		if !strings.ContainsRune(wildcardGlyphs, r) {
			n++
		}
	}
	return n
}

func stripGlyphs(token string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(wildcardGlyphs, r) {
			return -1
		}
		return r
	}, token)
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
