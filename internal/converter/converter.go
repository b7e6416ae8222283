// Package converter implements the three-step ICP->cycles conversion
// protocol (spec.md §4.8): check the orchestrator's ICP balance, transfer
// it (minus the ledger fee) to the cycles minter's subaccount, then
// notify the minter to credit the cycles. Each step retries up to 10
// times on a CallError; a typed ledger-level error (TransferError,
// NotifyError) fails the run immediately.
package converter

import (
	"context"
	"errors"
	"fmt"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/log"
)

// MaxRetriesPerStep bounds retries of a single protocol step on CallError
// (spec.md §4.8).
const MaxRetriesPerStep = 10

// TopUpMemo is the fixed memo value attached to the transfer step
// (spec.md §6: "memo 0x50555054 ('TPUP')").
const TopUpMemo uint32 = 0x50555054

// ErrZeroIcpBalance is returned (not an error condition, a skip signal)
// when there is nothing to convert this tick.
var ErrZeroIcpBalance = errors.New("converter: zero icp balance, nothing to convert")

// TransferError and NotifyError are the typed (non-CallError) failures
// the fungible ledger / minter can report; unlike CallError these are not
// retried, they fail the run outright (spec.md §4.8).
type TransferError struct{ Reason string }

func (e *TransferError) Error() string { return "converter: transfer error: " + e.Reason }

type NotifyError struct{ Reason string }

func (e *NotifyError) Error() string { return "converter: notify error: " + e.Reason }

// Ledger is the fungible-ledger capability the converter needs.
type Ledger interface {
	BalanceOf(ctx context.Context, account common.Principal) (common.Cycles, *runtime.CallError)
	Transfer(ctx context.Context, toSubaccount [32]byte, amount common.Cycles, memo uint32) (uint64 /* block index */, error)
}

// Minter is the cycles-minter capability the converter needs.
type Minter interface {
	NotifyTopUp(ctx context.Context, canisterId common.Principal, blockIndex uint64) (common.Cycles, error)
}

// Converter runs the conversion protocol.
type Converter struct {
	Self        common.Principal
	Ledger      Ledger
	Minter      Minter
	TransferFee common.Cycles
}

// RunOnce executes one conversion cycle (spec.md §4.8).
func (c *Converter) RunOnce(ctx context.Context) (common.Cycles, error) {
	balance, err := retryOnCallError(ctx, func() (common.Cycles, *runtime.CallError) {
		return c.Ledger.BalanceOf(ctx, c.Self)
	})
	if err != nil {
		return common.Cycles{}, err
	}
	if !c.TransferFee.LessThan(balance) {
		return common.Cycles{}, ErrZeroIcpBalance
	}

	amount, err := balance.Sub(c.TransferFee)
	if err != nil {
		return common.Cycles{}, err
	}

	var blockIndex uint64
	var subaccount [32]byte
	for attempt := 0; attempt <= MaxRetriesPerStep; attempt++ {
		bi, terr := c.Ledger.Transfer(ctx, subaccount, amount, TopUpMemo)
		if terr == nil {
			blockIndex = bi
			break
		}
		var callErr *runtime.CallError
		if errors.As(terr, &callErr) {
			log.Info("converter: transfer step retrying", "attempt", attempt, "err", callErr)
			if attempt == MaxRetriesPerStep {
				return common.Cycles{}, fmt.Errorf("converter: transfer exhausted retries: %w", callErr)
			}
			continue
		}
		return common.Cycles{}, terr // typed TransferError: fail immediately
	}

	var credited common.Cycles
	for attempt := 0; attempt <= MaxRetriesPerStep; attempt++ {
		cr, nerr := c.Minter.NotifyTopUp(ctx, c.Self, blockIndex)
		if nerr == nil {
			credited = cr
			break
		}
		var callErr *runtime.CallError
		if errors.As(nerr, &callErr) {
			log.Info("converter: notify step retrying", "attempt", attempt, "err", callErr)
			if attempt == MaxRetriesPerStep {
				return common.Cycles{}, fmt.Errorf("converter: notify exhausted retries: %w", callErr)
			}
			continue
		}
		return common.Cycles{}, nerr // typed NotifyError: fail immediately
	}

	return credited, nil
}

func retryOnCallError(ctx context.Context, f func() (common.Cycles, *runtime.CallError)) (common.Cycles, error) {
	var lastErr *runtime.CallError
	for attempt := 0; attempt <= MaxRetriesPerStep; attempt++ {
		v, callErr := f()
		if callErr == nil {
			return v, nil
		}
		lastErr = callErr
		log.Info("converter: balance_of retrying", "attempt", attempt, "err", callErr)
	}
	return common.Cycles{}, fmt.Errorf("converter: balance_of exhausted retries: %w", lastErr)
}
