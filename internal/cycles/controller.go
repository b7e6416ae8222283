// Package cycles implements the fleet cycles top-up sweep (spec.md §4.7):
// check the orchestrator's own balance, fan out parallel balance queries
// across every managed canister, then serially top up whichever ones fell
// below the monitored-canister floor, aborting the remaining sends once
// the orchestrator's own running balance is below its floor. The check
// runs before each send, so the last send may itself take the running
// balance below the floor.
package cycles

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/log"
	"github.com/appic-solutions/ledger-suite-manager/metrics"
)

// ErrInsufficientCyclesToTopUp is returned when the orchestrator's own
// balance is already below its floor at the start of a tick.
var ErrInsufficientCyclesToTopUp = errors.New("cycles: insufficient cycles to top up fleet")

var metricTopUpsSent = metrics.NewRegisteredCounter("cycles/topups_sent", nil)

// Controller runs the top-up sweep.
type Controller struct {
	Store   *durablestate.Store
	Runtime runtime.ExternalRuntime
}

// RunOnce executes one sweep (spec.md §4.7).
func (c *Controller) RunOnce(ctx context.Context) error {
	var management durablestateCyclesManagement
	var managed []common.Principal
	c.Store.Read(func(a *durablestate.Aggregate) {
		management.min = a.CyclesManagement.MinimumManagerCycles()
		management.monitoredFloor = a.CyclesManagement.MinimumMonitoredCycles()
		management.increment = a.CyclesManagement.CyclesTopUpIncrement
		managed = managedPrincipals(a)
	})

	selfBalance, callErr := c.Runtime.CanisterCycles(ctx, c.Runtime.OwnId())
	if callErr != nil {
		return fmt.Errorf("cycles: read own balance: %w", callErr)
	}
	if selfBalance.LessThan(management.min) {
		log.Warn("cycles: own balance below floor, skipping top-up sweep", "balance", selfBalance, "floor", management.min)
		return ErrInsufficientCyclesToTopUp
	}

	balances := make([]common.Cycles, len(managed))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range managed {
		i, id := i, id
		g.Go(func() error {
			b, callErr := c.Runtime.CanisterCycles(gctx, id)
			if callErr != nil {
				log.Info("cycles: balance query failed, skipping this canister this tick", "canister", id, "err", callErr)
				balances[i] = management.monitoredFloor // treat as at-floor: do not trigger a send this tick
				return nil
			}
			balances[i] = b
			return nil
		})
	}
	_ = g.Wait()

	running := selfBalance
	for i, id := range managed {
		if balances[i].GreaterOrEqual(management.monitoredFloor) {
			continue
		}
		if running.LessThan(management.min) {
			log.Info("cycles: aborting remaining top-ups, own balance is below floor", "canister", id)
			break
		}
		if callErr := c.Runtime.SendCycles(ctx, id, management.increment); callErr != nil {
			log.Info("cycles: top-up send failed", "canister", id, "err", callErr)
			continue
		}
		var err error
		running, err = running.Sub(management.increment)
		if err != nil {
			log.Warn("cycles: running balance underflow, aborting sweep", "err", err)
			break
		}
		metricTopUpsSent.Inc(1)
	}
	return nil
}

type durablestateCyclesManagement struct {
	min            common.Cycles
	monitoredFloor common.Cycles
	increment      common.Cycles
}

// managedPrincipals enumerates every fleet-managed canister: each suite's
// ledger, index, and archives (spec.md §4.7 step 2).
func managedPrincipals(a *durablestate.Aggregate) []common.Principal {
	var out []common.Principal
	for _, token := range a.SortedTokens() {
		s := a.Suites[token]
		if s.Ledger != nil {
			out = append(out, *s.Ledger)
		}
		if s.Index != nil {
			out = append(out, *s.Index)
		}
		out = append(out, s.Archives...)
	}
	return out
}
