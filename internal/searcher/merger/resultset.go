package merger

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
)

// CapMode selects when an entry's contexts are truncated to MaxSnippets.
type CapMode int

const (
	// CapOnInsert truncates only when an entry is created; later merges may
	// grow it past the cap.
	CapOnInsert CapMode = iota
	// CapOnMerge truncates after every merge as well.
	CapOnMerge
)

func (m CapMode) String() string {
	if m == CapOnMerge {
		return "merge"
	}
	return "insert"
}

// ParseCapMode maps the configuration names "insert" and "merge".
func ParseCapMode(s string) CapMode {
	if s == "merge" {
		return CapOnMerge
	}
	return CapOnInsert
}

// MergeScoring selects how much score a merge adds to an existing entry.
type MergeScoring int

const (
	// ScorePerContext adds the incoming score once for every context the
	// merge admits. Duplicate contexts add nothing.
	ScorePerContext MergeScoring = iota
	// ScoreSum adds the incoming score once per merge, whatever the
	// contexts.
	ScoreSum
)

func (m MergeScoring) String() string {
	if m == ScoreSum {
		return "sum"
	}
	return "context"
}

// ParseMergeScoring maps the configuration names "context" and "sum".
func ParseMergeScoring(s string) MergeScoring {
	if s == "sum" {
		return ScoreSum
	}
	return ScorePerContext
}

// Entry is one matched document.
type Entry struct {
	DocID    string          `json:"docId"`
	DocTitle string          `json:"docTitle,omitempty"`
	Score    float64         `json:"score"`
	SortKey  string          `json:"sortKey,omitempty"`
	Contexts []shard.Context `json:"contexts"`
}

func (e *Entry) hasContext(text string) bool {
	for _, c := range e.Contexts {
		if c.Text == text {
			return true
		}
	}
	return false
}

// ResultSet accumulates scored entries keyed by document id. It is rebuilt
// from empty for every merge and is not safe for concurrent use.
type ResultSet struct {
	entries     map[string]*Entry
	maxSnippets int
	capMode     CapMode
	scoring     MergeScoring
	sortKey     func(docID string) string
}

func NewResultSet(maxSnippets int, mode CapMode, sortKey func(string) string) *ResultSet {
	if maxSnippets < 1 {
		maxSnippets = 1
	}
	return &ResultSet{
		entries:     make(map[string]*Entry),
		maxSnippets: maxSnippets,
		capMode:     mode,
		sortKey:     sortKey,
	}
}

// SetMergeScoring changes how later merges add score.
func (rs *ResultSet) SetMergeScoring(m MergeScoring) {
	rs.scoring = m
}

func (rs *ResultSet) Len() int {
	return len(rs.entries)
}

func (rs *ResultSet) Has(docID string) bool {
	_, ok := rs.entries[docID]
	return ok
}

func (rs *ResultSet) Get(docID string) (*Entry, bool) {
	e, ok := rs.entries[docID]
	return e, ok
}

func (rs *ResultSet) Delete(docID string) {
	delete(rs.entries, docID)
}

// Add inserts p as a new entry or merges it into the existing one.
//
// On insert the contexts are deduplicated, ordered by weight and capped. On
// merge, contexts whose text is already present are skipped and the score
// grows according to the set's MergeScoring.
func (rs *ResultSet) Add(p shard.Posting) {
	e, ok := rs.entries[p.DocID]
	if !ok {
		e = &Entry{
			DocID:    p.DocID,
			DocTitle: p.DocTitle,
			Score:    p.Score,
			Contexts: make([]shard.Context, 0, min(len(p.Contexts), rs.maxSnippets)),
		}
		if rs.sortKey != nil {
			e.SortKey = rs.sortKey(p.DocID)
		}
		incoming := append([]shard.Context(nil), p.Contexts...)
		sort.SliceStable(incoming, func(i, j int) bool {
			return incoming[i].Weight > incoming[j].Weight
		})
		for _, c := range incoming {
			if len(e.Contexts) == rs.maxSnippets {
				break
			}
			if !e.hasContext(c.Text) {
				e.Contexts = append(e.Contexts, c)
			}
		}
		rs.entries[p.DocID] = e
		return
	}

	if e.DocTitle == "" {
		e.DocTitle = p.DocTitle
	}
	admitted := 0
	for _, c := range p.Contexts {
		if e.hasContext(c.Text) {
			continue
		}
		e.Contexts = append(e.Contexts, c)
		admitted++
	}
	switch rs.scoring {
	case ScoreSum:
		e.Score += p.Score
	default:
		e.Score += p.Score * float64(admitted)
	}
	if rs.capMode == CapOnMerge && len(e.Contexts) > rs.maxSnippets {
		sort.SliceStable(e.Contexts, func(i, j int) bool {
			return e.Contexts[i].Weight > e.Contexts[j].Weight
		})
		e.Contexts = e.Contexts[:rs.maxSnippets]
	}
}

// seed inserts a bare listing entry for docID.
func (rs *ResultSet) seed(docID string) {
	if rs.Has(docID) {
		return
	}
	rs.Add(shard.Posting{DocID: docID})
}

// Entries returns the entries ordered by document id.
func (rs *ResultSet) Entries() []*Entry {
	out := make([]*Entry, 0, len(rs.entries))
	for _, e := range rs.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// ContextCount is the total number of contexts across all entries.
func (rs *ResultSet) ContextCount() int {
	n := 0
	for _, e := range rs.entries {
		n += len(e.Contexts)
	}
	return n
}

// ScoreTotal is the sum of all entry scores.
func (rs *ResultSet) ScoreTotal() float64 {
	var total float64
	for _, e := range rs.entries {
		total += e.Score
	}
	return total
}
