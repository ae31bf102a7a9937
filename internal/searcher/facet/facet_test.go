package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

func shards() map[string]shard.FacetShard {
	return map[string]shard.FacetShard{
		"ssFacetColour": {
			FilterID: "ssFacetColour",
			Values: map[string]shard.FacetValue{
				"ssFacetColour_1": {Name: "Green", Docs: []string{"d1", "d2"}},
				"ssFacetColour_2": {Name: "Gold", Docs: []string{"d3"}},
			},
		},
		"ssBoolPublished": {
			FilterID: "ssBoolPublished",
			Values: map[string]shard.FacetValue{
				"ssBoolPublished_1": {Name: "true", Docs: []string{"d1", "d3"}},
				"ssBoolPublished_2": {Name: "false", Docs: []string{"d2"}},
			},
		},
		"ssDateWritten": {
			FilterID: "ssDateWritten",
			Ranges: map[string][]string{
				"d1": {"2019-06-01"},
				"d2": {"2020-02-10", "2020-03-01"},
				"d3": {"2021-01-01"},
			},
		},
		"ssNumPages": {
			FilterID: "ssNumPages",
			Ranges: map[string][]string{
				"d1": {"9"},
				"d2": {"10", "120"},
				"d3": {"300"},
			},
		},
	}
}

func lookup(t *testing.T) func(string) shard.FacetShard {
	all := shards()
	return func(id string) shard.FacetShard {
		return all[id]
	}
}

func TestResolve_NoSelectionsIsInactive(t *testing.T) {
	got := Resolve(nil, lookup(t))
	assert.False(t, got.FiltersActive)
	assert.True(t, got.Admits("anything"))
}

func TestResolve_OrWithinAndAcross(t *testing.T) {
	got := Resolve([]Selection{
		{FilterID: "ssFacetColour", Kind: KindDescription, Values: []string{"ssFacetColour_1", "ssFacetColour_2"}},
		{FilterID: "ssBoolPublished", Kind: KindBool, Values: []string{"true"}},
	}, lookup(t))
	assert.Equal(t, []string{"d1", "d3"}, got.IDs())
}

func TestResolve_EmptyButActive(t *testing.T) {
	got := Resolve([]Selection{
		{FilterID: "ssFacetColour", Kind: KindDescription, Values: []string{"ssFacetColour_2"}},
		{FilterID: "ssBoolPublished", Kind: KindBool, Values: []string{"false"}},
	}, lookup(t))
	assert.True(t, got.FiltersActive)
	assert.Zero(t, got.Len())
}

func TestResolve_UnknownShardYieldsNothing(t *testing.T) {
	got := Resolve([]Selection{{FilterID: "ssMissing", Kind: KindFeature, Values: []string{"x"}}}, lookup(t))
	assert.True(t, got.FiltersActive)
	assert.Zero(t, got.Len())
}

func TestResolve_DateRange(t *testing.T) {
	cases := []struct {
		name     string
		min, max string
		want     []string
	}{
		{"year upper completes to december", "", "2019", []string{"d1"}},
		{"leap february", "2020-02", "2020-02", []string{"d2"}},
		{"month before", "", "2020-01", []string{"d1"}},
		{"lower uses last value", "2020-03-01", "", []string{"d2", "d3"}},
		{"full dates", "2019-06-02", "2020-12-31", []string{"d2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve([]Selection{{FilterID: "ssDateWritten", Kind: KindDate, Min: tc.min, Max: tc.max}}, lookup(t))
			assert.Equal(t, tc.want, got.IDs())
		})
	}
}

func TestResolve_NumberRangeComparesNumerically(t *testing.T) {
	got := Resolve([]Selection{{FilterID: "ssNumPages", Kind: KindNumber, Min: "100"}}, lookup(t))
	assert.Equal(t, []string{"d2", "d3"}, got.IDs())

	got = Resolve([]Selection{{FilterID: "ssNumPages", Kind: KindNumber, Max: "9.5"}}, lookup(t))
	assert.Equal(t, []string{"d1"}, got.IDs())
}

func TestResolve_NumberRangeIgnoresStoredOrder(t *testing.T) {
	fs := shard.FacetShard{
		FilterID: "ssNumPrice",
		Ranges: map[string][]string{
			"d1": {"120", "9"},
			"d2": {"30", "40"},
		},
	}
	got := Resolve([]Selection{{FilterID: "ssNumPrice", Kind: KindNumber, Max: "10"}},
		func(string) shard.FacetShard { return fs })
	assert.Equal(t, []string{"d1"}, got.IDs())

	got = Resolve([]Selection{{FilterID: "ssNumPrice", Kind: KindNumber, Min: "100"}},
		func(string) shard.FacetShard { return fs })
	assert.Equal(t, []string{"d1"}, got.IDs())
}

func TestCompleteUpperDate(t *testing.T) {
	assert.Equal(t, "2020-12-31", completeUpperDate("2020"))
	assert.Equal(t, "2021-02-28", completeUpperDate("2021-02"))
	assert.Equal(t, "2024-02-29", completeUpperDate("2024-02"))
	assert.Equal(t, "2020-04-30", completeUpperDate("2020-04"))
	assert.Equal(t, "2020-04-11", completeUpperDate("2020-04-11"))
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection("desc:ssFacetColour=ssFacetColour_1|ssFacetColour_2")
	require.NoError(t, err)
	assert.Equal(t, Selection{FilterID: "ssFacetColour", Kind: KindDescription, Values: []string{"ssFacetColour_1", "ssFacetColour_2"}}, sel)

	sel, err = ParseSelection("date:ssDateWritten=2019..")
	require.NoError(t, err)
	assert.Equal(t, "2019", sel.Min)
	assert.Empty(t, sel.Max)

	_, err = ParseSelection("num:ssNumPages=ten..")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ParseSelection("colour=green")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFilterIDs(t *testing.T) {
	ids := FilterIDs([]Selection{
		{FilterID: "a", Kind: KindBool, Values: []string{"true"}},
		{FilterID: "b", Kind: KindBool},
		{FilterID: "a", Kind: KindBool, Values: []string{"false"}},
	})
	assert.Equal(t, []string{"a"}, ids)
}
