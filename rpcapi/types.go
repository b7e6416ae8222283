// Package rpcapi exposes the orchestrator's public operations (spec.md
// §6) over HTTP/JSON, plus a WebSocket stream of install-pipeline
// progress events for admin tooling. Wire types mirror the spec's typed
// records directly; candid-to-JSON translation, if ever needed at the
// fabric boundary, is the caller's concern.
package rpcapi

import "github.com/appic-solutions/ledger-suite-manager/common"

// Erc20Contract identifies the ERC-20 contract an operation targets.
type Erc20Contract struct {
	ChainId uint64 `json:"chain_id"`
	Address string `json:"address"`
}

// LedgerInit is the caller-supplied portion of a new ledger's init args.
type LedgerInit struct {
	Fee      uint64 `json:"fee"`
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Logo     string `json:"logo"`
}

// AddErc20Arg is the add_erc20_ls request payload.
type AddErc20Arg struct {
	Contract   Erc20Contract `json:"contract"`
	LedgerInit LedgerInit    `json:"ledger_init"`
}

// AddErc20Error is the wire error taxonomy for add_erc20_ls (spec.md §6).
type AddErc20Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *AddErc20Error) Error() string { return e.Kind + ": " + e.Message }

// InvalidNativeInstalledCanistersError is the wire error taxonomy for
// add_native_ls (spec.md §6).
type InvalidNativeInstalledCanistersError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *InvalidNativeInstalledCanistersError) Error() string { return e.Kind + ": " + e.Message }

// ManagedCanisterIds is the caller-visible view of a suite's allocated
// canisters.
type ManagedCanisterIds struct {
	Ledger   *common.Principal  `json:"ledger,omitempty"`
	Index    *common.Principal  `json:"index,omitempty"`
	Archives []common.Principal `json:"archives"`
}

// ManagedCanisters pairs a contract with its canister ids, returned from
// all_twins_canister_ids.
type ManagedCanisters struct {
	Contract Erc20Contract      `json:"contract"`
	Ids      ManagedCanisterIds `json:"ids"`
}

// LedgerManagerInfo is the summary returned by get_lsm_info.
type LedgerManagerInfo struct {
	ManagedSuites   int    `json:"managed_suites"`
	PendingInstalls int    `json:"pending_installs"`
	FailedInstalls  int    `json:"failed_installs"`
	PinnedVersion   string `json:"pinned_version,omitempty"`
}

// CanisterStatus is the fabric status record returned by
// get_canister_status (spec.md §6): the orchestrator's own principal and
// cycles balance, queried from the management canister through
// ExternalRuntime.CanisterCycles.
type CanisterStatus struct {
	Principal string `json:"principal"`
	Cycles    string `json:"cycles"`
}
