package merger

import (
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/filterset"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
)

// ScopeMode selects how FilterByScopes treats the score of a document whose
// contexts were narrowed.
type ScopeMode int

const (
	// ScopeKeepScore leaves the score as merged.
	ScopeKeepScore ScopeMode = iota
	// ScopeResumScore replaces the score with the sum of the surviving
	// context weights.
	ScopeResumScore
)

func (m ScopeMode) String() string {
	if m == ScopeResumScore {
		return "resum"
	}
	return "keep"
}

// ParseScopeMode maps the configuration names "keep" and "resum".
func ParseScopeMode(s string) ScopeMode {
	if s == "resum" {
		return ScopeResumScore
	}
	return ScopeKeepScore
}

// FilterBySet removes every document the facet set does not admit. An
// inactive set removes nothing.
func FilterBySet(rs *ResultSet, set filterset.Set) {
	if !set.FiltersActive {
		return
	}
	for id := range rs.entries {
		if !set.Has(id) {
			delete(rs.entries, id)
		}
	}
}

// FilterByScopes keeps only contexts tagged with one of scopes and drops
// documents left without contexts. No scopes means no filtering.
func FilterByScopes(rs *ResultSet, scopes map[string]struct{}, mode ScopeMode) {
	if len(scopes) == 0 {
		return
	}
	for id, e := range rs.entries {
		kept := make([]shard.Context, 0, len(e.Contexts))
		var weight float64
		for _, c := range e.Contexts {
			if c.InScope(scopes) {
				kept = append(kept, c)
				weight += c.Weight
			}
		}
		if len(kept) == 0 {
			delete(rs.entries, id)
			continue
		}
		e.Contexts = kept
		if mode == ScopeResumScore {
			e.Score = weight
		}
	}
}
