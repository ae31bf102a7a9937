// Package ranker orders merged results for display.
package ranker

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/merger"
)

// Ranker sorts entries by descending score, breaking ties with the
// locale-aware order of their sort keys and then by document id.
type Ranker struct {
	mu       sync.Mutex
	collator *collate.Collator
}

// New returns a Ranker collating sort keys for tag. Use language.Und for the
// root collation. Case is a tertiary difference, so "apple" and "Apple" do
// not tie.
func New(tag language.Tag) *Ranker {
	return &Ranker{collator: collate.New(tag)}
}

// Sort orders entries in place.
func (r *Ranker) Sort(entries []*merger.Entry) {
	// Collator keeps internal buffers.
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c := r.collator.CompareString(a.SortKey, b.SortKey); c != 0 {
			return c < 0
		}
		return a.DocID < b.DocID
	})
}

// Page returns the slice of entries starting at offset, at most limit long.
// A limit of zero means no limit.
func Page(entries []*merger.Entry, offset, limit int) []*merger.Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []*merger.Entry{}
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
