package provisioning

import (
	"errors"
	"fmt"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
)

// InstalledNativeLedgerSuite is the admin-supplied record of a ledger
// suite that already exists off-fleet (a chain's native-asset twin,
// installed by hand rather than through the provisioning pipeline) and is
// being registered into the fleet for monitoring/top-up purposes
// (spec.md §6, SPEC_FULL §C.1).
type InstalledNativeLedgerSuite struct {
	ChainId        uint64
	Symbol         string
	Fee            uint64
	Decimals       uint8
	Logo           string
	Name           string
	Ledger         common.Principal
	LedgerWasmHash common.WasmHash
	Index          common.Principal
	IndexWasmHash  common.WasmHash
	Archives       []common.Principal
}

// Error taxonomy for add_native_ls (spec.md §6).
var (
	ErrWasmHashEqual              = errors.New("provisioning: ledger and index wasm hash must differ")
	ErrTokenAlreadyManaged        = errors.New("provisioning: token already managed")
	ErrAlreadyManagedPrincipals   = errors.New("provisioning: one or more principals already managed")
	ErrNotAllowed                 = errors.New("provisioning: caller not allowed to register this native suite")
)

// AddNativeLedgerSuite registers an already-installed native ledger suite
// directly as MinterNotified, skipping every provisioning step (the
// canisters are not created by this orchestrator). caller must equal the
// minter registered for suite.ChainId — admin-gated per spec.md §6.
//
// Validation, in order: caller authorization, ledger-hash != index-hash
// (a crude but spec-mandated proxy for "these are not the same wasm
// installed twice" — see DESIGN.md Open Question on this check), no
// principal overlap with the existing fleet, and the token not already
// managed.
func AddNativeLedgerSuite(agg *durablestate.Aggregate, caller common.Principal, suite InstalledNativeLedgerSuite) error {
	minter, ok := agg.MinterIds[suite.ChainId]
	if !ok || minter != caller {
		return fmt.Errorf("%w: caller %s is not the registered minter for chain %d", ErrNotAllowed, caller, suite.ChainId)
	}

	if suite.LedgerWasmHash == suite.IndexWasmHash {
		return fmt.Errorf("%w: both hashes are %s", ErrWasmHashEqual, suite.LedgerWasmHash)
	}

	candidates := append([]common.Principal{suite.Ledger, suite.Index}, suite.Archives...)
	for _, existing := range agg.Suites {
		for _, c := range candidates {
			if existing.Ledger != nil && *existing.Ledger == c {
				return fmt.Errorf("%w: %s", ErrAlreadyManagedPrincipals, c)
			}
			if existing.Index != nil && *existing.Index == c {
				return fmt.Errorf("%w: %s", ErrAlreadyManagedPrincipals, c)
			}
			for _, a := range existing.Archives {
				if a == c {
					return fmt.Errorf("%w: %s", ErrAlreadyManagedPrincipals, c)
				}
			}
		}
	}

	token := common.NewTokenId(suite.ChainId, common.NativeEVMAddress)
	if _, exists := agg.Suites[token]; exists {
		return fmt.Errorf("%w: %s", ErrTokenAlreadyManaged, token)
	}

	ledger, index := suite.Ledger, suite.Index
	ledgerHash, indexHash := suite.LedgerWasmHash, suite.IndexWasmHash
	agg.Suites[token] = &durablestate.Suite{
		Token: token,
		State: durablestate.StateMinterNotified,
		InitArg: durablestate.LedgerInitArgs{
			Fee: suite.Fee, Decimals: suite.Decimals, Name: suite.Name, Symbol: suite.Symbol, Logo: suite.Logo,
		},
		Ledger:     &ledger,
		LedgerHash: &ledgerHash,
		Index:      &index,
		IndexHash:  &indexHash,
		Archives:   append([]common.Principal(nil), suite.Archives...),
	}
	return nil
}
