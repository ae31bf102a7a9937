// Package shard defines the precomputed index shards consumed by the query
// engine: per-stem posting lists and per-filter facet data. The JSON shapes
// are produced by the external shard builder and treated as a fixed contract.
package shard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

// Kind identifies which family of shard a key belongs to.
type Kind string

const (
	KindStem     Kind = "stem"
	KindFacet    Kind = "facet"
	KindWordList Kind = "wordlist"
)

// Ref names one retrievable shard.
type Ref struct {
	Kind Kind
	Key  string
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.Key
}

// ParseRef is the inverse of Ref.String. A bare key is taken as a stem.
func ParseRef(s string) (Ref, error) {
	kind, key, ok := strings.Cut(s, ":")
	if !ok {
		if s == "" {
			return Ref{}, fmt.Errorf("%w: empty shard ref", apperrors.ErrInvalidInput)
		}
		return Ref{Kind: KindStem, Key: s}, nil
	}
	switch Kind(kind) {
	case KindStem, KindFacet:
		if key == "" {
			return Ref{}, fmt.Errorf("%w: shard ref %q has no key", apperrors.ErrInvalidInput, s)
		}
		return Ref{Kind: Kind(kind), Key: key}, nil
	case KindWordList:
		return Ref{Kind: KindWordList}, nil
	}
	return Ref{}, fmt.Errorf("%w: unknown shard kind in %q", apperrors.ErrInvalidInput, s)
}

// Context is one keyword-in-context snippet for a document.
type Context struct {
	Text       string            `json:"context"`
	Weight     float64           `json:"weight"`
	FragmentID string            `json:"fid,omitempty"`
	Properties map[string]string `json:"prop,omitempty"`
	ScopeIDs   []string          `json:"in,omitempty"`
}

// InScope reports whether the context is tagged with any of the given
// scope ids.
func (c Context) InScope(scopes map[string]struct{}) bool {
	for _, id := range c.ScopeIDs {
		if _, ok := scopes[id]; ok {
			return true
		}
	}
	return false
}

// Posting is one document's hit record under a stem.
type Posting struct {
	DocID    string    `json:"docId"`
	DocTitle string    `json:"docTitle"`
	Score    float64   `json:"score"`
	Contexts []Context `json:"contexts"`
}

// StemIndex is the decoded form of a stem shard. The zero value is the
// empty sentinel stored for stems that were fetched but not found.
type StemIndex struct {
	Stem      string    `json:"stem"`
	Instances []Posting `json:"instances"`
}

// Empty reports whether the index holds no postings.
func (s StemIndex) Empty() bool {
	return len(s.Instances) == 0
}

// DocIDs returns the set of documents the stem occurs in.
func (s StemIndex) DocIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Instances))
	for _, p := range s.Instances {
		ids[p.DocID] = struct{}{}
	}
	return ids
}

// DecodeStemIndex parses a stem shard payload.
func DecodeStemIndex(data []byte) (StemIndex, error) {
	var idx StemIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return StemIndex{}, fmt.Errorf("%w: stem shard: %v", apperrors.ErrMalformedShard, err)
	}
	return idx, nil
}

// FacetValue is one selectable value of a value-keyed facet.
type FacetValue struct {
	Name string   `json:"name"`
	Docs []string `json:"docs"`
}

// FacetShard is the decoded form of a facet shard. Description, boolean and
// feature facets populate Values; date and number facets populate Ranges,
// keyed by document, each holding that document's values in ascending order.
type FacetShard struct {
	FilterID   string
	FilterName string
	Values     map[string]FacetValue
	Ranges     map[string][]string
}

// Empty reports whether the shard carries no facet data.
func (f FacetShard) Empty() bool {
	return len(f.Values) == 0 && len(f.Ranges) == 0
}

// ValueByName returns the value whose display name matches name.
func (f FacetShard) ValueByName(name string) (FacetValue, bool) {
	for _, v := range f.Values {
		if v.Name == name {
			return v, true
		}
	}
	return FacetValue{}, false
}

// UnmarshalJSON decodes the open-keyed facet shard layout:
// {"filterId": ..., "filterName": ..., "<valueId>": {"name":..., "docs":[...]}}
// or, for range facets, {"filterId": ..., "filterName": ..., "docs": {"<docId>": [...]}}.
func (f *FacetShard) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := FacetShard{Values: make(map[string]FacetValue)}
	for key, msg := range raw {
		switch key {
		case "filterId":
			if err := json.Unmarshal(msg, &out.FilterID); err != nil {
				return fmt.Errorf("filterId: %w", err)
			}
		case "filterName":
			if err := json.Unmarshal(msg, &out.FilterName); err != nil {
				return fmt.Errorf("filterName: %w", err)
			}
		case "docs":
			ranges, err := decodeRanges(msg)
			if err != nil {
				return fmt.Errorf("docs: %w", err)
			}
			out.Ranges = ranges
		default:
			var v FacetValue
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("value %s: %w", key, err)
			}
			out.Values[key] = v
		}
	}
	*f = out
	return nil
}

// decodeRanges accepts string or numeric per-document values and returns
// them sorted ascending: numerically when every value parses as a number,
// quoted or not, and lexically otherwise.
func decodeRanges(msg json.RawMessage) (map[string][]string, error) {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}
	ranges := make(map[string][]string, len(raw))
	for docID, values := range raw {
		numeric := true
		vals := make([]string, 0, len(values))
		for _, v := range values {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				s = strings.TrimSpace(string(v))
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				numeric = false
			}
			vals = append(vals, s)
		}
		if numeric {
			sort.Slice(vals, func(i, j int) bool {
				a, _ := strconv.ParseFloat(vals[i], 64)
				b, _ := strconv.ParseFloat(vals[j], 64)
				return a < b
			})
		} else {
			sort.Strings(vals)
		}
		ranges[docID] = vals
	}
	return ranges, nil
}

// DecodeFacetShard parses a facet shard payload.
func DecodeFacetShard(data []byte) (FacetShard, error) {
	var f FacetShard
	if err := json.Unmarshal(data, &f); err != nil {
		return FacetShard{}, fmt.Errorf("%w: facet shard: %v", apperrors.ErrMalformedShard, err)
	}
	return f, nil
}
