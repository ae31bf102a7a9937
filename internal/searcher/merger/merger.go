// Package merger evaluates a parsed query against the stem indexes and facet
// set, producing one scored ResultSet.
//
// Terms run in stages: phrases, then must-contain, then may-contain, with
// must-not deletions applied after every stage that can admit documents.
// Facet and scope filtering run last.
package merger

import (
	"log/slog"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/filterset"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
)

// StemLookup returns the decoded index for a stem. Missing stems yield the
// empty index.
type StemLookup func(stem string) shard.StemIndex

type Options struct {
	MaxSnippets  int
	CapMode      CapMode
	MergeScoring MergeScoring
	// Scopes restricts contexts to the selected context scopes. Empty means
	// no scope filtering.
	Scopes    map[string]struct{}
	ScopeMode ScopeMode
	SortKey   func(docID string) string
}

// phraseWeight is the weight given to every context produced by a phrase
// match.
const phraseWeight = 2

var markStripper = strings.NewReplacer("<mark>", "", "</mark>", "")

type engine struct {
	lookup StemLookup
	rs     *ResultSet
	logger *slog.Logger

	phrases  []parser.Term
	musts    []parser.Term
	mustNots []parser.Term
	mays     []parser.Term
}

// Merge builds the ResultSet for terms. A query with no terms and an active
// facet set yields a listing of the facet documents with zero score.
func Merge(terms []parser.Term, lookup StemLookup, facets filterset.Set, opts Options) *ResultSet {
	e := &engine{
		lookup: lookup,
		rs:     NewResultSet(opts.MaxSnippets, opts.CapMode, opts.SortKey),
		logger: slog.Default().With("component", "merger"),
	}
	e.rs.SetMergeScoring(opts.MergeScoring)
	for _, t := range terms {
		switch t.Kind {
		case parser.KindPhrase:
			e.phrases = append(e.phrases, t)
		case parser.KindMustContain:
			e.musts = append(e.musts, t)
		case parser.KindMustNotContain:
			e.mustNots = append(e.mustNots, t)
		case parser.KindMayContain:
			e.mays = append(e.mays, t)
		}
	}

	if len(e.phrases)+len(e.musts)+len(e.mays) == 0 {
		// Nothing can admit documents; only a facet selection produces a
		// listing, from which must-not terms still subtract.
		if facets.FiltersActive {
			for _, id := range facets.IDs() {
				e.rs.seed(id)
			}
			e.applyMustNots()
		}
	} else {
		e.run()
	}

	FilterBySet(e.rs, facets)
	FilterByScopes(e.rs, opts.Scopes, opts.ScopeMode)
	e.logger.Debug("merge complete",
		"phrases", len(e.phrases),
		"must", len(e.musts),
		"must_not", len(e.mustNots),
		"may", len(e.mays),
		"docs", e.rs.Len(),
	)
	return e.rs
}

func (e *engine) run() {
	if len(e.phrases) > 0 {
		for _, t := range e.phrases {
			e.matchPhrase(t)
		}
		e.applyMustNots()
	}

	if len(e.musts) > 0 {
		rest := e.musts
		if len(e.phrases) == 0 {
			for _, p := range e.lookup(rest[0].Stem).Instances {
				e.rs.Add(p)
			}
			rest = rest[1:]
		}
		for _, t := range rest {
			e.requireStem(t)
		}
		e.applyMustNots()
	}

	if len(e.mays) > 0 {
		enhanceOnly := len(e.phrases) > 0 || len(e.musts) > 0
		for _, t := range e.mays {
			for _, p := range e.lookup(t.Stem).Instances {
				if enhanceOnly && !e.rs.Has(p.DocID) {
					continue
				}
				e.rs.Add(p)
			}
		}
		e.applyMustNots()
	}
}

// requireStem merges t's postings into documents already present, then
// drops every document t's index does not list.
func (e *engine) requireStem(t parser.Term) {
	postings := e.lookup(t.Stem).Instances
	present := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		present[p.DocID] = struct{}{}
		if e.rs.Has(p.DocID) {
			e.rs.Add(p)
		}
	}
	for id := range e.rs.entries {
		if _, ok := present[id]; !ok {
			e.rs.Delete(id)
		}
	}
}

func (e *engine) applyMustNots() {
	for _, t := range e.mustNots {
		for _, p := range e.lookup(t.Stem).Instances {
			e.rs.Delete(p.DocID)
		}
	}
}

// matchPhrase admits every document with at least one context containing
// the phrase. Each matching context is re-marked around the phrase, and the
// document scores one point per match.
func (e *engine) matchPhrase(t parser.Term) {
	re, err := PhrasePattern(t.Text)
	if err != nil {
		e.logger.Debug("phrase pattern rejected", "phrase", t.Text, "error", err)
		return
	}
	for _, p := range e.lookup(t.Stem).Instances {
		var matched []shard.Context
		for _, c := range p.Contexts {
			marked, ok := markPhrase(re, markStripper.Replace(c.Text))
			if !ok {
				continue
			}
			matched = append(matched, shard.Context{
				Text:       marked,
				Weight:     phraseWeight,
				FragmentID: c.FragmentID,
				Properties: c.Properties,
				ScopeIDs:   c.ScopeIDs,
			})
		}
		if len(matched) == 0 {
			continue
		}
		score := float64(len(matched))
		if e.rs.Has(p.DocID) && e.rs.scoring == ScorePerContext {
			// each newly admitted match adds one point
			score = 1
		}
		e.rs.Add(shard.Posting{
			DocID:    p.DocID,
			DocTitle: p.DocTitle,
			Score:    score,
			Contexts: matched,
		})
	}
}

func markPhrase(re *regexp2.Regexp, text string) (string, bool) {
	n := 0
	out, err := re.ReplaceFunc(text, func(m regexp2.Match) string {
		n++
		return "<mark>" + m.String() + "</mark>"
	}, -1, -1)
	if err != nil || n == 0 {
		return "", false
	}
	return out, true
}
