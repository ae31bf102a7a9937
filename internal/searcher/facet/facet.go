// Package facet resolves facet selections against facet shards into a single
// document-ID set: OR across the checked values of one facet, AND across
// facets.
package facet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/filterset"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

type Kind string

const (
	KindDescription Kind = "desc"
	KindBool        Kind = "bool"
	KindFeature     Kind = "feat"
	KindDate        Kind = "date"
	KindNumber      Kind = "num"
)

// Selection is the state of one facet control.
type Selection struct {
	FilterID string
	Kind     Kind
	// Values lists checked value ids or display names.
	Values []string
	Min    string
	Max    string
}

// Active reports whether the selection constrains anything.
func (s Selection) Active() bool {
	if s.Kind == KindDate || s.Kind == KindNumber {
		return s.Min != "" || s.Max != ""
	}
	return len(s.Values) > 0
}

// ParseSelection decodes the query-string form of a selection:
//
//	desc:ssFacet1=v1|v2
//	bool:ssBool1=false
//	date:ssDate1=2019..2020-02
//	num:ssNum1=10..
func ParseSelection(raw string) (Selection, error) {
	kindStr, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return Selection{}, fmt.Errorf("%w: facet %q: missing kind", apperrors.ErrInvalidInput, raw)
	}
	id, value, ok := strings.Cut(rest, "=")
	if !ok || id == "" {
		return Selection{}, fmt.Errorf("%w: facet %q: missing filter id", apperrors.ErrInvalidInput, raw)
	}
	sel := Selection{FilterID: id, Kind: Kind(kindStr)}
	switch sel.Kind {
	case KindDescription, KindBool, KindFeature:
		for _, v := range strings.Split(value, "|") {
			if v != "" {
				sel.Values = append(sel.Values, v)
			}
		}
	case KindDate, KindNumber:
		min, max, _ := strings.Cut(value, "..")
		sel.Min, sel.Max = strings.TrimSpace(min), strings.TrimSpace(max)
		if sel.Kind == KindNumber {
			for _, b := range []string{sel.Min, sel.Max} {
				if b == "" {
					continue
				}
				if _, err := strconv.ParseFloat(b, 64); err != nil {
					return Selection{}, fmt.Errorf("%w: facet %q: bound %q is not a number", apperrors.ErrInvalidInput, raw, b)
				}
			}
		}
	default:
		return Selection{}, fmt.Errorf("%w: facet %q: unknown kind %q", apperrors.ErrInvalidInput, raw, kindStr)
	}
	return sel, nil
}

// FilterIDs returns the ids of the shards needed to resolve the active
// selections.
func FilterIDs(selections []Selection) []string {
	ids := make([]string, 0, len(selections))
	seen := make(map[string]struct{}, len(selections))
	for _, s := range selections {
		if !s.Active() {
			continue
		}
		if _, ok := seen[s.FilterID]; ok {
			continue
		}
		seen[s.FilterID] = struct{}{}
		ids = append(ids, s.FilterID)
	}
	return ids
}

// Resolve combines the selections into one set. The result is inactive when
// no selection constrains anything.
func Resolve(selections []Selection, lookup func(filterID string) shard.FacetShard) filterset.Set {
	result := filterset.Inactive()
	for _, sel := range selections {
		if !sel.Active() {
			continue
		}
		fs := lookup(sel.FilterID)
		var ids filterset.Set
		switch sel.Kind {
		case KindDate:
			ids = resolveRange(fs, sel, compareDates, completeUpperDate(sel.Max))
		case KindNumber:
			ids = resolveRange(fs, sel, compareNumbers, sel.Max)
		default:
			ids = resolveValues(fs, sel)
		}
		result = filterset.Intersect(result, ids)
	}
	return result
}

func resolveValues(fs shard.FacetShard, sel Selection) filterset.Set {
	ids := filterset.New()
	for _, v := range sel.Values {
		value, ok := fs.Values[v]
		if !ok {
			value, ok = fs.ValueByName(v)
		}
		if ok {
			filterset.AddAll(&ids, value.Docs...)
		}
	}
	return ids
}

// resolveRange keeps documents whose last value reaches the lower bound and
// whose first value does not pass the upper one. First and last are taken
// under cmp, the facet kind's own order.
func resolveRange(fs shard.FacetShard, sel Selection, cmp func(a, b string) int, upper string) filterset.Set {
	ids := filterset.New()
	for docID, values := range fs.Ranges {
		if len(values) == 0 {
			continue
		}
		first, last := values[0], values[0]
		for _, v := range values[1:] {
			if cmp(v, first) < 0 {
				first = v
			}
			if cmp(v, last) > 0 {
				last = v
			}
		}
		if sel.Min != "" && cmp(last, sel.Min) < 0 {
			continue
		}
		if upper != "" && cmp(first, upper) > 0 {
			continue
		}
		filterset.AddAll(&ids, docID)
	}
	return ids
}

func compareDates(a, b string) int {
	return strings.Compare(a, b)
}

func compareNumbers(a, b string) int {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// completeUpperDate widens a partial upper bound to the last day it covers.
func completeUpperDate(bound string) string {
	switch len(bound) {
	case 4:
		return bound + "-12-31"
	case 7:
		t, err := time.Parse("2006-01", bound)
		if err != nil {
			return bound
		}
		last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		return last.Format("2006-01-02")
	}
	return bound
}
