package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/facet"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/filterset"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/stemmer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

func ctx(text string, weight float64, scopes ...string) shard.Context {
	return shard.Context{Text: text, Weight: weight, ScopeIDs: scopes}
}

func posting(doc string, score float64, contexts ...shard.Context) shard.Posting {
	return shard.Posting{DocID: doc, DocTitle: "Title " + doc, Score: score, Contexts: contexts}
}

type index map[string][]shard.Posting

func (ix index) lookup(stem string) shard.StemIndex {
	return shard.StemIndex{Stem: stem, Instances: ix[stem]}
}

func parse(t *testing.T, q string) []parser.Term {
	t.Helper()
	return parser.Parse(q, parser.DefaultConfig()).Terms
}

func opts() Options {
	return Options{MaxSnippets: 3}
}

func docIDs(rs *ResultSet) []string {
	var ids []string
	for _, e := range rs.Entries() {
		ids = append(ids, e.DocID)
	}
	return ids
}

// Corpus shared by the boolean tests. Both "elephant" and "elephants" stem
// to "eleph".
var corpus = index{
	"eleph": {
		posting("d1", 2, ctx("an <mark>elephant</mark> in the room", 1)),
		posting("d2", 2, ctx("two <mark>elephants</mark> at the circus", 1)),
	},
	"circus": {
		posting("d2", 1, ctx("two elephants at the <mark>circus</mark>", 1)),
	},
	"green": {
		posting("d1", 1, ctx("<mark>green</mark> hills", 1)),
		posting("d2", 1, ctx("<mark>green</mark> and gold", 1)),
		posting("d3", 1, ctx("a <mark>green</mark> field", 1)),
	},
	"golden": {
		posting("d2", 1, ctx("<mark>golden</mark> light", 1)),
		posting("d3", 1, ctx("<mark>golden</mark> hour", 1)),
	},
	"yellow": {
		posting("d2", 1, ctx("<mark>yellow</mark> sun", 1)),
		posting("d4", 1, ctx("<mark>yellow</mark> paint", 1)),
	},
}

func TestMerge_SingleWord(t *testing.T) {
	rs := Merge(parse(t, "elephant"), corpus.lookup, filterset.Inactive(), opts())

	assert.Equal(t, []string{"d1", "d2"}, docIDs(rs))
	assert.Equal(t, 4.0, rs.ScoreTotal())
	assert.Equal(t, 2, rs.ContextCount())
}

func TestMerge_TwoContextsPerDocument(t *testing.T) {
	ix := index{
		"eleph": {
			posting("d1", 2, ctx("an <mark>elephant</mark> in the room", 1), ctx("the <mark>elephant</mark> left", 1)),
			posting("d2", 2, ctx("two <mark>elephants</mark>", 1), ctx("<mark>elephants</mark> never forget", 1)),
		},
	}
	rs := Merge(parse(t, "elephant"), ix.lookup, filterset.Inactive(), opts())

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 4, rs.ContextCount())
	assert.Equal(t, 4.0, rs.ScoreTotal())
}

func TestMerge_MustNotRemoves(t *testing.T) {
	rs := Merge(parse(t, "elephant -circus"), corpus.lookup, filterset.Inactive(), opts())
	assert.Equal(t, []string{"d1"}, docIDs(rs))
}

func TestMerge_MustContainIntersects(t *testing.T) {
	rs := Merge(parse(t, "+green +golden"), corpus.lookup, filterset.Inactive(), opts())
	assert.Equal(t, []string{"d2", "d3"}, docIDs(rs))

	e, ok := rs.Get("d2")
	require.True(t, ok)
	assert.Equal(t, 2.0, e.Score)
	assert.Len(t, e.Contexts, 2)
}

func TestMerge_MustContainWithBooleanFacet(t *testing.T) {
	published := shard.FacetShard{
		FilterID:   "ssBoolPublished",
		FilterName: "Published",
		Values: map[string]shard.FacetValue{
			"ssBoolPublished_1": {Name: "true", Docs: []string{"d1", "d2"}},
			"ssBoolPublished_2": {Name: "false", Docs: []string{"d3"}},
		},
	}
	set := facet.Resolve([]facet.Selection{{
		FilterID: "ssBoolPublished",
		Kind:     facet.KindBool,
		Values:   []string{"false"},
	}}, func(string) shard.FacetShard { return published })

	rs := Merge(parse(t, "+green +golden"), corpus.lookup, set, opts())
	assert.Equal(t, []string{"d3"}, docIDs(rs))
}

func TestMerge_MayEnhancesOnlyAlongsideMust(t *testing.T) {
	rs := Merge(parse(t, "+golden yellow"), corpus.lookup, filterset.Inactive(), opts())
	assert.Equal(t, []string{"d2", "d3"}, docIDs(rs))

	e, _ := rs.Get("d2")
	assert.Equal(t, 2.0, e.Score, "yellow adds to a document already admitted")

	rs = Merge(parse(t, "golden yellow"), corpus.lookup, filterset.Inactive(), opts())
	assert.Equal(t, []string{"d2", "d3", "d4"}, docIDs(rs), "may terms alone admit")
}

func TestMerge_WildcardExpansionAsPhrases(t *testing.T) {
	cfg := parser.DefaultConfig()
	cfg.Wildcards = true
	cfg.WordList = "attempt|attached|elephant|battery"
	terms := parser.Parse("att*", cfg).Terms
	require.Len(t, terms, 2)
	for _, term := range terms {
		assert.Equal(t, parser.KindPhrase, term.Kind)
	}

	ix := index{
		"attempt": {posting("d1", 3, ctx("We <mark>attempt</mark> it again.", 1))},
		"attach":  {posting("d2", 1, ctx("Files attached here", 1))},
	}
	rs := Merge(terms, ix.lookup, filterset.Inactive(), opts())

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 2, rs.ContextCount())
	assert.Equal(t, 2.0, rs.ScoreTotal())

	e, _ := rs.Get("d1")
	require.Len(t, e.Contexts, 1)
	assert.Equal(t, "We <mark>attempt</mark> it again.", e.Contexts[0].Text)
	assert.Equal(t, 2.0, e.Contexts[0].Weight)
}

func TestMerge_Phrase(t *testing.T) {
	ix := index{
		"quick": {
			posting("d1", 5,
				ctx("The <mark>Quick</mark> brown fox", 1),
				ctx("quick thinking, brown shoes", 1),
			),
			posting("d2", 1, ctx("quickly brown", 1)),
		},
	}
	rs := Merge(parse(t, `"quick brown"`), ix.lookup, filterset.Inactive(), opts())

	assert.Equal(t, []string{"d1"}, docIDs(rs))
	e, _ := rs.Get("d1")
	assert.Equal(t, 1.0, e.Score)
	require.Len(t, e.Contexts, 1)
	assert.Equal(t, "The <mark>Quick brown</mark> fox", e.Contexts[0].Text)
}

func TestMerge_TwoPhrasesScoreOnePerMatch(t *testing.T) {
	d1 := posting("d1", 9, ctx("the quick brown fox", 1), ctx("a lazy dog sleeps", 1))
	ix := index{
		stemmer.Stem("quick"): {d1},
		stemmer.Stem("lazy"):  {d1},
	}
	rs := Merge(parse(t, `"quick brown" "lazy dog"`), ix.lookup, filterset.Inactive(), opts())

	e, ok := rs.Get("d1")
	require.True(t, ok)
	assert.Equal(t, 2.0, e.Score)
	assert.Len(t, e.Contexts, 2)
}

func TestMerge_PhraseApostropheVariants(t *testing.T) {
	ix := index{
		stemmer.Stem("don't"): {posting("d1", 1, ctx("please don’t stop now", 1))},
	}
	rs := Merge(parse(t, `"don't stop"`), ix.lookup, filterset.Inactive(), opts())
	assert.Equal(t, []string{"d1"}, docIDs(rs))
}

func TestMerge_FacetOnlyListing(t *testing.T) {
	rs := Merge(nil, corpus.lookup, filterset.New("d3", "d1"), opts())
	assert.Equal(t, []string{"d1", "d3"}, docIDs(rs))
	for _, e := range rs.Entries() {
		assert.Zero(t, e.Score)
		assert.Empty(t, e.Contexts)
	}

	rs = Merge(nil, corpus.lookup, filterset.Inactive(), opts())
	assert.Zero(t, rs.Len())
}

func TestMerge_MustNotOnly(t *testing.T) {
	rs := Merge(parse(t, "-circus"), corpus.lookup, filterset.Inactive(), opts())
	assert.Zero(t, rs.Len())

	rs = Merge(parse(t, "-circus"), corpus.lookup, filterset.New("d1", "d2"), opts())
	assert.Equal(t, []string{"d1"}, docIDs(rs))
}

func TestAdd_ScorePerAdmittedContext(t *testing.T) {
	rs := NewResultSet(5, CapOnInsert, nil)
	rs.Add(posting("d1", 2, ctx("a", 1), ctx("b", 1)))
	rs.Add(posting("d1", 4, ctx("a", 1), ctx("c", 1), ctx("d", 1)))

	e, _ := rs.Get("d1")
	assert.Len(t, e.Contexts, 4)
	assert.Equal(t, 10.0, e.Score, "two new contexts at 4 each")

	rs.Add(posting("d1", 1))
	assert.Equal(t, 10.0, e.Score, "nothing admitted, nothing added")

	rs.Add(posting("d1", 3, ctx("a", 1)))
	assert.Equal(t, 10.0, e.Score)
	assert.Len(t, e.Contexts, 4)
}

func TestAdd_SumScoring(t *testing.T) {
	rs := NewResultSet(3, CapOnInsert, nil)
	rs.SetMergeScoring(ScoreSum)
	rs.Add(posting("d1", 2, ctx("a", 1), ctx("b", 1)))
	rs.Add(posting("d1", 3, ctx("c", 1), ctx("d", 1)))

	e, _ := rs.Get("d1")
	assert.Len(t, e.Contexts, 4, "disjoint contexts double the count")
	assert.Equal(t, 5.0, e.Score, "and the scores add exactly")

	rs.Add(posting("d1", 1, ctx("a", 1)))
	assert.Len(t, e.Contexts, 4)
	assert.Equal(t, 6.0, e.Score)
}

func TestMerge_SumScoringOption(t *testing.T) {
	o := opts()
	o.MergeScoring = ScoreSum
	ix := index{
		"green":  {posting("d1", 1, ctx("<mark>green</mark> hills", 1), ctx("<mark>green</mark> fields", 1))},
		"golden": {posting("d1", 3, ctx("<mark>golden</mark> hour", 1), ctx("<mark>golden</mark> light", 1))},
	}
	rs := Merge(parse(t, "+green +golden"), ix.lookup, filterset.Inactive(), o)
	e, ok := rs.Get("d1")
	require.True(t, ok)
	assert.Equal(t, 4.0, e.Score)

	rs = Merge(parse(t, "+green +golden"), ix.lookup, filterset.Inactive(), opts())
	e, _ = rs.Get("d1")
	assert.Equal(t, 7.0, e.Score)
}

func TestAdd_CapModes(t *testing.T) {
	rs := NewResultSet(2, CapOnInsert, nil)
	rs.Add(posting("d1", 1, ctx("a", 1), ctx("b", 3), ctx("c", 2)))
	e, _ := rs.Get("d1")
	require.Len(t, e.Contexts, 2)
	assert.Equal(t, "b", e.Contexts[0].Text, "highest weight kept first")
	assert.Equal(t, "c", e.Contexts[1].Text)

	rs.Add(posting("d1", 1, ctx("d", 1)))
	assert.Len(t, e.Contexts, 3)

	rs = NewResultSet(2, CapOnMerge, nil)
	rs.Add(posting("d1", 1, ctx("a", 1), ctx("b", 1)))
	rs.Add(posting("d1", 1, ctx("c", 5)))
	e, _ = rs.Get("d1")
	require.Len(t, e.Contexts, 2)
	assert.Equal(t, "c", e.Contexts[0].Text)
}

func TestAdd_SortKey(t *testing.T) {
	rs := NewResultSet(3, CapOnInsert, func(id string) string { return "key-" + id })
	rs.Add(posting("d1", 1))
	e, _ := rs.Get("d1")
	assert.Equal(t, "key-d1", e.SortKey)
}

func TestFilterBySet(t *testing.T) {
	build := func() *ResultSet {
		rs := NewResultSet(3, CapOnInsert, nil)
		rs.Add(posting("d1", 1))
		rs.Add(posting("d2", 1))
		return rs
	}

	rs := build()
	FilterBySet(rs, filterset.Inactive())
	assert.Equal(t, []string{"d1", "d2"}, docIDs(rs))

	rs = build()
	FilterBySet(rs, filterset.New("d2", "d9"))
	assert.Equal(t, []string{"d2"}, docIDs(rs))

	rs = build()
	FilterBySet(rs, filterset.New())
	assert.Zero(t, rs.Len(), "an active empty set admits nothing")
}

func TestFilterByScopes(t *testing.T) {
	build := func() *ResultSet {
		rs := NewResultSet(5, CapOnInsert, nil)
		rs.Add(posting("d1", 7, ctx("a", 1, "body"), ctx("b", 2, "notes"), ctx("c", 3, "body", "notes")))
		rs.Add(posting("d2", 4, ctx("x", 1, "notes")))
		return rs
	}

	rs := build()
	FilterByScopes(rs, nil, ScopeKeepScore)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 4, rs.ContextCount())

	scopes := map[string]struct{}{"body": {}}
	rs = build()
	FilterByScopes(rs, scopes, ScopeKeepScore)
	assert.Equal(t, []string{"d1"}, docIDs(rs))
	e, _ := rs.Get("d1")
	assert.Len(t, e.Contexts, 2)
	assert.Equal(t, 7.0, e.Score)

	rs = build()
	FilterByScopes(rs, scopes, ScopeResumScore)
	e, _ = rs.Get("d1")
	assert.Equal(t, 4.0, e.Score)
}

func TestPhrasePattern(t *testing.T) {
	re, err := PhrasePattern("cat")
	require.NoError(t, err)
	ok, err := re.MatchString("concatenate")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = re.MatchString("the CAT sat")
	assert.True(t, ok)

	re, err = PhrasePattern(`say "hi"`)
	require.NoError(t, err)
	ok, _ = re.MatchString("they say “hi” loudly")
	assert.True(t, ok)

	re, err = PhrasePattern("C++")
	require.NoError(t, err)
	ok, _ = re.MatchString("written in c++.")
	assert.True(t, ok)

	_, err = PhrasePattern("  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPattern)
}

func TestModeNames(t *testing.T) {
	assert.Equal(t, ScopeResumScore, ParseScopeMode("resum"))
	assert.Equal(t, ScopeKeepScore, ParseScopeMode("anything"))
	assert.Equal(t, "keep", ScopeKeepScore.String())
	assert.Equal(t, CapOnMerge, ParseCapMode("merge"))
	assert.Equal(t, "insert", CapOnInsert.String())
	assert.Equal(t, ScoreSum, ParseMergeScoring("sum"))
	assert.Equal(t, ScorePerContext, ParseMergeScoring(""))
	assert.Equal(t, "context", ScorePerContext.String())
}
