package backend

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"estate-dashboard/internal/model"
)

// Filter keeps records where any string or number field contains q, case-insensitively.
func Filter(recs []model.Record, q string) []model.Record {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return recs
	}
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(v any, q string) bool {
	switch x := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(x), q)
	case float64:
		return strings.Contains(fmt.Sprint(x), q)
	case model.Record:
		for _, f := range x {
			if matches(f, q) {
				return true
			}
		}
	case map[string]any:
		return matches(model.Record(x), q)
	case []any:
		for _, f := range x {
			if matches(f, q) {
				return true
			}
		}
	}
	return false
}

// Sort orders records by field in place. Numbers compare numerically,
// strings case-insensitively, and records missing the field go last.
func Sort(recs []model.Record, field string, desc bool) {
	if field == "" {
		return
	}
	slices.SortStableFunc(recs, func(a, b model.Record) int {
		av, aok := a[field]
		bv, bok := b[field]
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := compare(av, bv)
		if desc {
			c = -c
		}
		return c
	})
}

func compare(a, b any) int {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		return cmp.Compare(af, bf)
	}
	return strings.Compare(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b)))
}
