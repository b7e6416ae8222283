package durablestate

import (
	"sort"

	"github.com/appic-solutions/ledger-suite-manager/common"
)

// SortedTokens returns the aggregate's managed TokenIds in BTree key order
// (spec.md §5: "the install pass iterates in BTree key order (stable)").
func (a *Aggregate) SortedTokens() []common.TokenId {
	out := make([]common.TokenId, 0, len(a.Suites))
	for t := range a.Suites {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
