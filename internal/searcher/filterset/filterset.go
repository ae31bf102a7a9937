// Package filterset implements the document-ID set algebra used to combine
// facet selections. A Set carries an explicit FiltersActive marker so that
// "no facet chosen" (pass everything) can be told apart from "facets chosen,
// nothing matched" (pass nothing).
package filterset

import "sort"

type Set struct {
	ids map[string]struct{}
	// FiltersActive is true once any facet has contributed a constraint.
	FiltersActive bool
}

// New returns an active set holding ids.
func New(ids ...string) Set {
	s := Set{ids: make(map[string]struct{}, len(ids)), FiltersActive: true}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Inactive returns the pass-through set used when no facet is selected.
func Inactive() Set {
	return Set{}
}

func (s Set) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s Set) Len() int {
	return len(s.ids)
}

// Admits reports whether a document survives filtering by s.
func (s Set) Admits(id string) bool {
	return !s.FiltersActive || s.Has(id)
}

// IDs returns the members in ascending order.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s Set) clone() Set {
	out := Set{ids: make(map[string]struct{}, len(s.ids)), FiltersActive: s.FiltersActive}
	for id := range s.ids {
		out.ids[id] = struct{}{}
	}
	return out
}

// AddAll inserts ids into s and marks it active.
func AddAll(s *Set, ids ...string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.FiltersActive = true
}

// Union combines values within one facet.
func Union(a, b Set) Set {
	out := a.clone()
	for id := range b.ids {
		if out.ids == nil {
			out.ids = make(map[string]struct{})
		}
		out.ids[id] = struct{}{}
	}
	out.FiltersActive = a.FiltersActive || b.FiltersActive
	return out
}

// Intersect combines distinct facets. An inactive operand imposes no
// constraint and yields the other operand unchanged.
func Intersect(a, b Set) Set {
	if !a.FiltersActive {
		return b.clone()
	}
	if !b.FiltersActive {
		return a.clone()
	}
	small, large := a, b
	if len(large.ids) < len(small.ids) {
		small, large = large, small
	}
	out := Set{ids: make(map[string]struct{}), FiltersActive: true}
	for id := range small.ids {
		if _, ok := large.ids[id]; ok {
			out.ids[id] = struct{}{}
		}
	}
	return out
}

// Difference returns the members of a that are not in b.
func Difference(a, b Set) Set {
	out := Set{ids: make(map[string]struct{}, len(a.ids)), FiltersActive: a.FiltersActive}
	for id := range a.ids {
		if _, ok := b.ids[id]; !ok {
			out.ids[id] = struct{}{}
		}
	}
	return out
}
