package orchestrator

import (
	"context"
	"errors"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/converter"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
)

// fungibleLedgerAdapter implements both fees.FungibleLedger and
// converter.Ledger on top of ExternalRuntime.Call, since the fabric's
// fungible-ledger canister is just another inter-canister call target
// (spec.md §6's "outbound RPCs" list) and no dedicated client library
// exists in the dependency pack this module draws from.
type fungibleLedgerAdapter struct {
	rt     runtime.ExternalRuntime
	ledger common.Principal
}

func (a *fungibleLedgerAdapter) TransferFrom(ctx context.Context, from, to common.Principal, amount uint64) error {
	type transferFromArg struct {
		From   common.Principal
		To     common.Principal
		Amount uint64
	}
	var resp struct{ Ok *uint64 }
	if callErr := a.rt.Call(ctx, a.ledger, "icrc2_transfer_from", transferFromArg{From: from, To: to, Amount: amount}, &resp); callErr != nil {
		return callErr
	}
	if resp.Ok == nil {
		return errors.New("icrc2_transfer_from: ledger returned no block index")
	}
	return nil
}

func (a *fungibleLedgerAdapter) BalanceOf(ctx context.Context, account common.Principal) (common.Cycles, *runtime.CallError) {
	var balance []byte
	if callErr := a.rt.Call(ctx, a.ledger, "icrc1_balance_of", account, &balance); callErr != nil {
		return common.Cycles{}, callErr
	}
	v, err := common.CyclesFromBigEndian(balance)
	if err != nil {
		return common.Cycles{}, runtime.NewInternalError(err.Error())
	}
	return v, nil
}

func (a *fungibleLedgerAdapter) Transfer(ctx context.Context, toSubaccount [32]byte, amount common.Cycles, memo uint32) (uint64, error) {
	type transferArg struct {
		ToSubaccount [32]byte
		Amount       common.Cycles
		Memo         uint32
	}
	var resp struct {
		BlockIndex uint64
	}
	if callErr := a.rt.Call(ctx, a.ledger, "transfer", transferArg{ToSubaccount: toSubaccount, Amount: amount, Memo: memo}, &resp); callErr != nil {
		return 0, callErr
	}
	return resp.BlockIndex, nil
}

// cyclesMinterAdapter implements converter.Minter on top of
// ExternalRuntime.Call.
type cyclesMinterAdapter struct {
	rt     runtime.ExternalRuntime
	minter common.Principal
}

func (a *cyclesMinterAdapter) NotifyTopUp(ctx context.Context, canisterId common.Principal, blockIndex uint64) (common.Cycles, error) {
	type notifyTopUpArg struct {
		CanisterId common.Principal
		BlockIndex uint64
	}
	var resp struct {
		Cycles []byte
	}
	if callErr := a.rt.Call(ctx, a.minter, "notify_top_up", notifyTopUpArg{CanisterId: canisterId, BlockIndex: blockIndex}, &resp); callErr != nil {
		return common.Cycles{}, callErr
	}
	return common.CyclesFromBigEndian(resp.Cycles)
}

var _ converter.Ledger = (*fungibleLedgerAdapter)(nil)
var _ converter.Minter = (*cyclesMinterAdapter)(nil)
