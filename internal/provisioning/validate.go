package provisioning

import (
	"fmt"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
)

// AddErc20Arg is the public add_erc20_ls request payload (spec.md §6).
type AddErc20Arg struct {
	ChainId    uint64
	Address    string
	LedgerInit LedgerInitArgs
}

// ValidateAddErc20Arg runs the pre-queue validation spec.md §4.5 requires:
// a parseable address, a registered minter for the chain, and no existing
// suite for the resulting TokenId. The returned TokenId/minter pair is
// what the caller enqueues as an InstallArgs.
func ValidateAddErc20Arg(agg *durablestate.Aggregate, arg AddErc20Arg) (common.TokenId, common.Principal, error) {
	addr, err := common.ParseEVMAddress(arg.Address)
	if err != nil {
		return common.TokenId{}, common.Principal{}, fmt.Errorf("%w: %s", ErrInvalidErc20Contract, err)
	}
	if addr.IsNative() {
		return common.TokenId{}, common.Principal{}, fmt.Errorf("%w: native address 0x0 is only accepted via add_native_ls", ErrInvalidErc20Contract)
	}

	minter, supported := agg.MinterIds[arg.ChainId]
	if !supported {
		return common.TokenId{}, common.Principal{}, fmt.Errorf("%w: chain %d", ErrChainIdNotSupported, arg.ChainId)
	}

	token := common.NewTokenId(arg.ChainId, addr)
	if _, exists := agg.Suites[token]; exists {
		return common.TokenId{}, common.Principal{}, fmt.Errorf("%w: %s", ErrErc20TwinTokenAlreadyExists, token)
	}

	if agg.PinnedVersion == nil {
		return common.TokenId{}, common.Principal{}, ErrLedgerSuiteVersionNotPinned
	}

	return token, minter, nil
}
