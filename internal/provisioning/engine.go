// Package provisioning implements the per-TokenId state machine that
// turns a queued InstallArgs into an operational ledger+index suite
// (spec.md §4.5): Requested -> LedgerCreated -> LedgerInstalled ->
// IndexCreated -> IndexInstalled -> MinterNotified. Every transition is
// idempotent and crash-safe: it consults DurableState first and skips
// work already recorded, the same "check state, then act" shape the
// teacher's miner.worker commitWork path follows around its pending-block
// guard.
package provisioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/internal/wasmstore"
	"github.com/appic-solutions/ledger-suite-manager/log"
	"github.com/appic-solutions/ledger-suite-manager/metrics"
)

var (
	metricInstallsCompleted = metrics.NewRegisteredCounter("provisioning/installs_completed", nil)
	metricInstallsFailed    = metrics.NewRegisteredCounter("provisioning/installs_failed", nil)
)

// Engine drives the provisioning pipeline.
type Engine struct {
	Store   *durablestate.Store
	Wasms   *wasmstore.Store
	Runtime runtime.ExternalRuntime
}

// RunOnce drains the install queue once: every still-pending InstallArgs
// is advanced as far as it will go this tick. Called by the scheduler
// under the TaskInstallLedgerSuites guard.
func (e *Engine) RunOnce(ctx context.Context) error {
	var pending []durablestate.InstallArgs
	e.Store.Read(func(a *durablestate.Aggregate) {
		pending = append(pending, a.InstallQueue...)
	})

	for _, args := range pending {
		if err := e.advance(ctx, args); err != nil {
			log.Info("provisioning: step did not complete this tick", "token", args.Token, "err", err)
		}
	}
	return nil
}

// advance walks args.Token's suite through as many transitions as succeed
// in this call, stopping at the first error. attemptId correlates every
// log line this call emits with a single install attempt, the same
// correlation-id idiom the teacher attaches to txpool reorg logs.
func (e *Engine) advance(ctx context.Context, args durablestate.InstallArgs) error {
	attemptId := uuid.NewString()
	log.Debug("provisioning: advancing install", "token", args.Token, "attempt", attemptId)

	pinned, err := e.pinnedVersion()
	if err != nil {
		return err
	}

	for {
		var state durablestate.InstallState
		var found bool
		e.Store.Read(func(a *durablestate.Aggregate) {
			s, ok := a.Suites[args.Token]
			if ok {
				state = s.State
				found = true
			}
		})
		if !found {
			return fmt.Errorf("provisioning: %s not found in install queue state", args.Token)
		}

		var stepErr error
		switch state {
		case durablestate.StateRequested:
			stepErr = e.createLedger(ctx, args)
		case durablestate.StateLedgerCreated:
			stepErr = e.installLedger(ctx, args, pinned)
		case durablestate.StateLedgerInstalled:
			stepErr = e.createIndex(ctx, args)
		case durablestate.StateIndexCreated:
			stepErr = e.installIndex(ctx, args, pinned)
		case durablestate.StateIndexInstalled:
			stepErr = e.notifyMinter(ctx, args)
		case durablestate.StateMinterNotified:
			e.dequeue(args.Token)
			metricInstallsCompleted.Inc(1)
			return nil
		}

		if stepErr != nil {
			if se, ok := stepErr.(*StepError); ok && !se.Recoverable() {
				e.graveyard(args, se.Error())
				metricInstallsFailed.Inc(1)
				log.Warn("provisioning: install moved to graveyard", "token", args.Token, "reason", se.Error())
			}
			return stepErr
		}
	}
}

func (e *Engine) pinnedVersion() (durablestate.LedgerSuiteVersion, error) {
	var pinned *durablestate.LedgerSuiteVersion
	e.Store.Read(func(a *durablestate.Aggregate) { pinned = a.PinnedVersion })
	if pinned == nil {
		return durablestate.LedgerSuiteVersion{}, wasmStoreError(fmt.Errorf("no ledger suite version pinned"))
	}
	return *pinned, nil
}

func (e *Engine) createLedger(ctx context.Context, args durablestate.InstallArgs) error {
	var already *common.Principal
	e.Store.Read(func(a *durablestate.Aggregate) {
		if s, ok := a.Suites[args.Token]; ok {
			already = s.Ledger
		}
	})
	if already != nil {
		return e.commitLedgerCreated(args.Token, *already)
	}

	var moreControllers []common.Principal
	var ledgerCycles common.Cycles
	e.Store.Read(func(a *durablestate.Aggregate) {
		moreControllers = a.MoreControllerIds
		ledgerCycles = a.CyclesManagement.CyclesForLedgerCreation
	})

	controllers := append([]common.Principal{e.Runtime.OwnId()}, moreControllers...)
	id, callErr := e.Runtime.CreateCanister(ctx, controllers, ledgerCycles)
	if callErr != nil {
		return canisterCreationError(callErr, callErr.Recoverable())
	}
	return e.commitLedgerCreated(args.Token, id)
}

func (e *Engine) commitLedgerCreated(token common.TokenId, ledger common.Principal) error {
	return e.Store.Mutate(func(a *durablestate.Aggregate) error {
		s := a.Suites[token]
		if s.State != durablestate.StateRequested {
			return nil // already advanced by a concurrent tick
		}
		s.Ledger = &ledger
		s.State = durablestate.StateLedgerCreated
		return nil
	})
}

func (e *Engine) installLedger(ctx context.Context, args durablestate.InstallArgs, pinned durablestate.LedgerSuiteVersion) error {
	var ledger common.Principal
	var minter common.Principal
	var moreControllers []common.Principal
	var archiveCycles common.Cycles
	e.Store.Read(func(a *durablestate.Aggregate) {
		s := a.Suites[args.Token]
		ledger = *s.Ledger
		minter = args.Minter
		moreControllers = a.MoreControllerIds
		archiveCycles = a.CyclesManagement.CyclesForArchiveCreation
	})

	wasm, err := e.Wasms.Get(wasmstore.RoleLedger, pinned.LedgerWasmHash)
	if err != nil {
		return wasmHashNotFound("ledger")
	}

	initArg := BuildLedgerInitArg(minter, e.Runtime.OwnId(), moreControllers, args.LedgerInit, archiveCycles)
	if callErr := e.Runtime.InstallCode(ctx, ledger, wasm, encodeArg(initArg)); callErr != nil {
		return installCodeError(callErr, callErr.Recoverable())
	}

	hash := pinned.LedgerWasmHash
	return e.Store.Mutate(func(a *durablestate.Aggregate) error {
		s := a.Suites[args.Token]
		if s.State != durablestate.StateLedgerCreated {
			return nil
		}
		s.LedgerHash = &hash
		s.State = durablestate.StateLedgerInstalled
		return nil
	})
}

func (e *Engine) createIndex(ctx context.Context, args durablestate.InstallArgs) error {
	var already *common.Principal
	e.Store.Read(func(a *durablestate.Aggregate) {
		already = a.Suites[args.Token].Index
	})
	if already != nil {
		return e.commitIndexCreated(args.Token, *already)
	}

	var moreControllers []common.Principal
	var indexCycles common.Cycles
	e.Store.Read(func(a *durablestate.Aggregate) {
		moreControllers = a.MoreControllerIds
		indexCycles = a.CyclesManagement.CyclesForIndexCreation
	})
	controllers := append([]common.Principal{e.Runtime.OwnId()}, moreControllers...)
	id, callErr := e.Runtime.CreateCanister(ctx, controllers, indexCycles)
	if callErr != nil {
		return canisterCreationError(callErr, callErr.Recoverable())
	}
	return e.commitIndexCreated(args.Token, id)
}

func (e *Engine) commitIndexCreated(token common.TokenId, index common.Principal) error {
	return e.Store.Mutate(func(a *durablestate.Aggregate) error {
		s := a.Suites[token]
		if s.State != durablestate.StateLedgerInstalled {
			return nil
		}
		s.Index = &index
		s.State = durablestate.StateIndexCreated
		return nil
	})
}

func (e *Engine) installIndex(ctx context.Context, args durablestate.InstallArgs, pinned durablestate.LedgerSuiteVersion) error {
	var index, ledger common.Principal
	e.Store.Read(func(a *durablestate.Aggregate) {
		s := a.Suites[args.Token]
		index = *s.Index
		ledger = *s.Ledger
	})

	wasm, err := e.Wasms.Get(wasmstore.RoleIndex, pinned.IndexWasmHash)
	if err != nil {
		return wasmHashNotFound("index")
	}

	initArg := BuildIndexInitArg(ledger)
	if callErr := e.Runtime.InstallCode(ctx, index, wasm, encodeArg(initArg)); callErr != nil {
		return installCodeError(callErr, callErr.Recoverable())
	}

	hash := pinned.IndexWasmHash
	return e.Store.Mutate(func(a *durablestate.Aggregate) error {
		s := a.Suites[args.Token]
		if s.State != durablestate.StateIndexCreated {
			return nil
		}
		s.IndexHash = &hash
		s.State = durablestate.StateIndexInstalled
		return nil
	})
}

func (e *Engine) notifyMinter(ctx context.Context, args durablestate.InstallArgs) error {
	var ledger common.Principal
	var symbol string
	e.Store.Read(func(a *durablestate.Aggregate) {
		s := a.Suites[args.Token]
		ledger = *s.Ledger
		symbol = s.InitArg.Symbol
	})

	type addErc20Token struct {
		ChainId       uint64
		Address       common.EVMAddress
		Symbol        string
		Erc20LedgerId common.Principal
	}
	req := addErc20Token{ChainId: args.Token.ChainId, Address: args.Token.Address, Symbol: symbol, Erc20LedgerId: ledger}
	if callErr := e.Runtime.Call(ctx, args.Minter, "add_erc20_token", req, nil); callErr != nil {
		return interCanisterCallError(callErr, callErr.Recoverable())
	}

	now := e.Runtime.NowNs()
	return e.Store.Mutate(func(a *durablestate.Aggregate) error {
		s := a.Suites[args.Token]
		if s.State != durablestate.StateIndexInstalled {
			return nil
		}
		s.State = durablestate.StateMinterNotified
		s.MinterNotifiedAt = now
		a.MinterNotifyQueue = append(a.MinterNotifyQueue, args.Token)
		return nil
	})
}

func (e *Engine) dequeue(token common.TokenId) {
	_ = e.Store.Mutate(func(a *durablestate.Aggregate) error {
		out := a.InstallQueue[:0]
		for _, q := range a.InstallQueue {
			if q.Token != token {
				out = append(out, q)
			}
		}
		a.InstallQueue = out
		return nil
	})
}

func (e *Engine) graveyard(args durablestate.InstallArgs, reason string) {
	e.dequeue(args.Token)
	_ = e.Store.Mutate(func(a *durablestate.Aggregate) error {
		a.FailedInstalls = append(a.FailedInstalls, durablestate.FailedInstall{Args: args, Reason: reason})
		return nil
	})
}

// encodeArg renders v as its fmt "%+v" text and hands those bytes to
// InstallCode; it does not candid-encode the value for the fabric's IDL.
func encodeArg(v interface{}) []byte {
	return []byte(fmt.Sprintf("%+v", v))
}
