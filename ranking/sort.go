/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ranking

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// Ranked is an entry together with its 1-based position in the sorted view.
type Ranked struct {
	Position int `json:"position"`
	Entry
}

// Sorted returns a new slice ordered by descending score. Entries with equal
// scores keep their relative input order.
func Sorted(entries []Entry) []Entry {
	out := slices.Clone(entries)

	slices.SortStableFunc(out, func(a, b Entry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return out
}

func Rank(entries []Entry) []Ranked {
	return lo.Map(Sorted(entries), func(e Entry, i int) Ranked {
		return Ranked{Position: i + 1, Entry: e}
	})
}
