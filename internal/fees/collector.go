// Package fees implements add_erc20_ls's fee-collection path (spec.md
// §4.9): validate the request, pull the required ICP fee from the caller
// via icrc2_transfer_from, record the deposit, enqueue the install work,
// and best-effort notify a peer helper service.
package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/provisioning"
	"github.com/appic-solutions/ledger-suite-manager/log"
)

// ErrTransferIcpError is surfaced to the caller when the fee pull fails
// (spec.md §6: AddErc20Error::TransferIcpError).
var ErrTransferIcpError = errors.New("fees: transfer icp from caller failed")

// FungibleLedger is the capability needed to pull the creation fee from
// the caller's account.
type FungibleLedger interface {
	TransferFrom(ctx context.Context, from common.Principal, to common.Principal, amount uint64) error
}

// PeerHelper is the best-effort notification target described in
// spec.md §6 ("Peer helper: add_icp_token, new_twin_ls_request,
// update_twin_ls_request, request_update_bridge_pairs"). A failure here
// never fails add_erc20_ls.
type PeerHelper interface {
	NewTwinLsRequest(ctx context.Context, token common.TokenId) error
}

// Collector runs the fee-collection path.
type Collector struct {
	Store      *durablestate.Store
	Ledger     FungibleLedger
	Peer       PeerHelper
	Self       common.Principal
	NowNs      func() uint64
}

// AddErc20 validates arg, pulls the creation fee from caller, and on
// success enqueues the install work (spec.md §4.9).
func (c *Collector) AddErc20(ctx context.Context, caller common.Principal, arg provisioning.AddErc20Arg) error {
	var token common.TokenId
	var minter common.Principal
	var feeIcp uint64
	var validationErr error
	c.Store.Read(func(a *durablestate.Aggregate) {
		token, minter, validationErr = provisioning.ValidateAddErc20Arg(a, arg)
		feeIcp = a.Fees.IcpE8s
	})
	if validationErr != nil {
		return validationErr
	}

	if err := c.Ledger.TransferFrom(ctx, caller, c.Self, feeIcp); err != nil {
		return fmt.Errorf("%w: %s", ErrTransferIcpError, err)
	}

	now := c.now()
	err := c.Store.Mutate(func(a *durablestate.Aggregate) error {
		if _, exists := a.Suites[token]; exists {
			return nil // raced with a concurrent request for the same token; no-op
		}
		init := durablestate.LedgerInitArgs{
			Fee: arg.LedgerInit.Fee, Decimals: arg.LedgerInit.Decimals,
			Name: arg.LedgerInit.Name, Symbol: arg.LedgerInit.Symbol, Logo: arg.LedgerInit.Logo,
		}
		a.Suites[token] = &durablestate.Suite{Token: token, State: durablestate.StateRequested, InitArg: init}
		a.InstallQueue = append(a.InstallQueue, durablestate.InstallArgs{Token: token, LedgerInit: init, Minter: minter})
		a.CollectedFees = append(a.CollectedFees, durablestate.ReceivedDeposit{
			Token: token, Depositor: caller, AmountIcp: feeIcp, ReceivedAtNs: now,
		})
		return nil
	})
	if err != nil {
		return err
	}

	if c.Peer != nil {
		if err := c.Peer.NewTwinLsRequest(ctx, token); err != nil {
			log.Info("fees: peer helper notification failed (best-effort)", "token", token, "err", err)
		}
	}
	return nil
}

func (c *Collector) now() uint64 {
	if c.NowNs != nil {
		return c.NowNs()
	}
	return 0
}
