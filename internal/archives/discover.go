// Package archives implements the archive-discovery sweep (spec.md
// §4.6): for every selected TokenId, ask its ledger for the archive
// canisters it has spun off and persist the (non-shrinking) union into
// DurableState. Ledgers are queried in parallel via golang.org/x/sync's
// errgroup, the same fan-out idiom the teacher's rpc.BatchElem path uses
// for batched JSON-RPC calls.
package archives

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/log"
)

// Selector chooses which managed tokens to discover archives for this
// tick. The default (spec.md §4.6) selects all managed tokens.
type Selector func(token common.TokenId) bool

// SelectAll is the default Selector.
func SelectAll(common.TokenId) bool { return true }

// Discoverer runs the discovery sweep.
type Discoverer struct {
	Store    *durablestate.Store
	Runtime  runtime.ExternalRuntime
	Selector Selector
}

type icrc3GetArchivesArg struct {
	From *common.Principal
}

type icrc3ArchiveInfo struct {
	CanisterId common.Principal
}

// RunOnce queries icrc3_get_archives for every selected token's ledger in
// parallel, commits every successful result (even if others failed), and
// returns the first error encountered so the scheduler can classify
// recoverability (spec.md §4.6).
func (d *Discoverer) RunOnce(ctx context.Context) error {
	selector := d.Selector
	if selector == nil {
		selector = SelectAll
	}

	type job struct {
		token  common.TokenId
		ledger common.Principal
	}
	var jobs []job
	d.Store.Read(func(a *durablestate.Aggregate) {
		for _, token := range a.SortedTokens() {
			if !selector(token) {
				continue
			}
			s := a.Suites[token]
			if s.Ledger == nil {
				continue
			}
			jobs = append(jobs, job{token: token, ledger: *s.Ledger})
		}
	})

	results := make([][]common.Principal, len(jobs))
	errs := make([]*runtime.CallError, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			var resp []icrc3ArchiveInfo
			if callErr := d.Runtime.Call(gctx, j.ledger, "icrc3_get_archives", icrc3GetArchivesArg{}, &resp); callErr != nil {
				errs[i] = callErr
				return nil // partial failure: do not abort the group, commit the rest
			}
			principals := make([]common.Principal, 0, len(resp))
			for _, r := range resp {
				principals = append(principals, r.CanisterId)
			}
			results[i] = principals
			return nil
		})
	}
	_ = g.Wait() // jobs never return a hard error themselves; see errs above

	var firstErr *runtime.CallError
	err := d.Store.Mutate(func(a *durablestate.Aggregate) error {
		for i, j := range jobs {
			if errs[i] != nil {
				if firstErr == nil {
					firstErr = errs[i]
				}
				log.Info("archives: discovery failed for token", "token", j.token, "err", errs[i])
				continue
			}
			s := a.Suites[j.token]
			merged := mergeArchiveSet(s.Archives, results[i])
			s.Archives = merged
		}
		return nil
	})
	if err != nil {
		return err
	}
	if firstErr != nil {
		return firstErr
	}
	return nil
}

// mergeArchiveSet unions existing with discovered, sorted for a stable
// BTree-like iteration order, and never shrinks (spec.md §8: "archives is
// a set... does not shrink across successive discovery calls").
func mergeArchiveSet(existing, discovered []common.Principal) []common.Principal {
	set := mapset.NewThreadUnsafeSet[common.Principal]()
	for _, p := range existing {
		set.Add(p)
	}
	for _, p := range discovered {
		set.Add(p)
	}
	out := set.ToSlice()
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Bytes()) < string(out[j].Bytes())
	})
	return out
}
