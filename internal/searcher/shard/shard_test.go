package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

func TestParseRef(t *testing.T) {
	cases := map[string]Ref{
		"stem:eleph":            {Kind: KindStem, Key: "eleph"},
		"facet:ssBoolPublished": {Kind: KindFacet, Key: "ssBoolPublished"},
		"wordlist:":             {Kind: KindWordList},
		"zebra":                 {Kind: KindStem, Key: "zebra"},
	}
	for in, want := range cases {
		got, err := ParseRef(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	ref := Ref{Kind: KindFacet, Key: "ssDescGenre"}
	back, err := ParseRef(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, back)

	for _, bad := range []string{"", "stem:", "index:foo"} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, bad)
	}
}

func TestDecodeStemIndex(t *testing.T) {
	idx, err := DecodeStemIndex([]byte(`{"stem":"eleph","instances":[
		{"docId":"d1","docTitle":"Zoo","score":2,"contexts":[{"context":"an elephant","weight":1,"fid":"p1","in":["body"]}]},
		{"docId":"d2","score":1,"contexts":[]}]}`))
	require.NoError(t, err)

	assert.Equal(t, "eleph", idx.Stem)
	require.Len(t, idx.Instances, 2)
	assert.Equal(t, "p1", idx.Instances[0].Contexts[0].FragmentID)
	assert.Contains(t, idx.DocIDs(), "d2")
	assert.False(t, idx.Empty())
	assert.True(t, StemIndex{}.Empty())

	_, err = DecodeStemIndex([]byte(`{"instances":`))
	assert.ErrorIs(t, err, apperrors.ErrMalformedShard)
}

func TestContextInScope(t *testing.T) {
	c := Context{ScopeIDs: []string{"body", "notes"}}
	assert.True(t, c.InScope(map[string]struct{}{"notes": {}}))
	assert.False(t, c.InScope(map[string]struct{}{"title": {}}))
	assert.False(t, Context{}.InScope(map[string]struct{}{"body": {}}))
}

func TestDecodeFacetShard_Values(t *testing.T) {
	f, err := DecodeFacetShard([]byte(`{"filterId":"ssDescGenre","filterName":"Genre",
		"ssDescGenre_1":{"name":"Poetry","docs":["d1","d2"]},
		"ssDescGenre_2":{"name":"Prose","docs":["d3"]}}`))
	require.NoError(t, err)

	assert.Equal(t, "ssDescGenre", f.FilterID)
	assert.Equal(t, "Genre", f.FilterName)
	assert.Len(t, f.Values, 2)
	v, ok := f.ValueByName("Prose")
	require.True(t, ok)
	assert.Equal(t, []string{"d3"}, v.Docs)
	_, ok = f.ValueByName("Drama")
	assert.False(t, ok)
}

func TestDecodeFacetShard_RangesSorted(t *testing.T) {
	f, err := DecodeFacetShard([]byte(`{"filterId":"ssNumPages","filterName":"Pages",
		"docs":{"d1":[120,9,30],"d2":["2001-05-01","1999-12-31"],"d3":["10","9"]}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"9", "30", "120"}, f.Ranges["d1"])
	assert.Equal(t, []string{"9", "10"}, f.Ranges["d3"], "quoted numbers still sort numerically")
	assert.Equal(t, []string{"1999-12-31", "2001-05-01"}, f.Ranges["d2"])
	assert.Empty(t, f.Values)
	assert.False(t, f.Empty())

	_, err = DecodeFacetShard([]byte(`{"filterId":"x","v":{"docs":"nope"}}`))
	assert.ErrorIs(t, err, apperrors.ErrMalformedShard)
}
