package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/merger"
)

func ids(entries []*merger.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.DocID
	}
	return out
}

func TestSort(t *testing.T) {
	entries := []*merger.Entry{
		{DocID: "d1", Score: 1, SortKey: "zebra"},
		{DocID: "d2", Score: 3},
		{DocID: "d3", Score: 1, SortKey: "Émile"},
		{DocID: "d4", Score: 1, SortKey: "apple"},
		{DocID: "d5", Score: 3},
	}
	New(language.Und).Sort(entries)
	assert.Equal(t, []string{"d2", "d5", "d4", "d3", "d1"}, ids(entries))
}

func TestSort_AccentsCollateWithBaseLetter(t *testing.T) {
	entries := []*merger.Entry{
		{DocID: "a", SortKey: "Zürich"},
		{DocID: "b", SortKey: "Émile"},
		{DocID: "c", SortKey: "fable"},
	}
	New(language.English).Sort(entries)
	assert.Equal(t, []string{"b", "c", "a"}, ids(entries))
}

func TestSort_CaseIsTertiary(t *testing.T) {
	entries := []*merger.Entry{
		{DocID: "d1", SortKey: "Apple"},
		{DocID: "d2", SortKey: "banana"},
		{DocID: "d3", SortKey: "apple"},
	}
	New(language.English).Sort(entries)
	assert.Equal(t, []string{"d3", "d1", "d2"}, ids(entries))
}

func TestPage(t *testing.T) {
	entries := []*merger.Entry{{DocID: "a"}, {DocID: "b"}, {DocID: "c"}}
	assert.Equal(t, []string{"b", "c"}, ids(Page(entries, 1, 0)))
	assert.Equal(t, []string{"a", "b"}, ids(Page(entries, 0, 2)))
	assert.Empty(t, Page(entries, 5, 2))
	assert.Equal(t, []string{"a"}, ids(Page(entries, -1, 1)))
}
