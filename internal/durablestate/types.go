// Package durablestate implements the single authoritative, snapshot-
// persisted aggregate described in spec.md §4.2: managed suites, cycles
// config, the controller/minter registries, the install queue and its
// graveyard, the pinned wasm version, and the fee ledger. All mutation
// goes through one writer closure (Mutate); readers take an immutable
// snapshot (Read), the same read/mutate split go-ethereum's core.BlockChain
// draws around its own chain state with an RWMutex, except here the lock
// additionally yields a deep-copied view so a long-running task never
// observes a torn write.
package durablestate

import (
	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
)

// InstallState is the ProvisioningEngine step a suite has reached
// (spec.md §4.5).
type InstallState uint8

const (
	StateRequested InstallState = iota
	StateLedgerCreated
	StateLedgerInstalled
	StateIndexCreated
	StateIndexInstalled
	StateMinterNotified
)

func (s InstallState) String() string {
	switch s {
	case StateRequested:
		return "Requested"
	case StateLedgerCreated:
		return "LedgerCreated"
	case StateLedgerInstalled:
		return "LedgerInstalled"
	case StateIndexCreated:
		return "IndexCreated"
	case StateIndexInstalled:
		return "IndexInstalled"
	case StateMinterNotified:
		return "MinterNotified"
	default:
		return "Unknown"
	}
}

// LedgerInitArgs carries the caller-supplied portion of an ICRC ledger's
// init arguments (spec.md §4.5).
type LedgerInitArgs struct {
	Fee      uint64
	Decimals uint8
	Name     string
	Symbol   string
	Logo     string
}

// Suite is the per-TokenId record tracked from Requested through
// MinterNotified.
type Suite struct {
	Token   common.TokenId
	State   InstallState
	InitArg LedgerInitArgs

	Ledger      *common.Principal
	LedgerHash  *common.WasmHash
	Index       *common.Principal
	IndexHash   *common.WasmHash
	Archives    []common.Principal // sorted, deduplicated
	MinterNotifiedAt uint64
}

// Clone deep-copies a Suite so snapshot readers never alias mutable state.
func (s *Suite) Clone() *Suite {
	if s == nil {
		return nil
	}
	out := *s
	if s.Ledger != nil {
		v := *s.Ledger
		out.Ledger = &v
	}
	if s.LedgerHash != nil {
		v := *s.LedgerHash
		out.LedgerHash = &v
	}
	if s.Index != nil {
		v := *s.Index
		out.Index = &v
	}
	if s.IndexHash != nil {
		v := *s.IndexHash
		out.IndexHash = &v
	}
	out.Archives = append([]common.Principal(nil), s.Archives...)
	return &out
}

// InstallArgs is one item of the pending-installation queue: validated
// parameters waiting for the provisioning pipeline to pick them up.
type InstallArgs struct {
	Token      common.TokenId
	LedgerInit LedgerInitArgs
	Minter     common.Principal
}

// FailedInstall is a graveyard entry: an InstallArgs that hit a
// non-recoverable error, kept for operator inspection.
type FailedInstall struct {
	Args   InstallArgs
	Reason string
}

// ReceivedDeposit records a successful fee pull (spec.md §4.9).
type ReceivedDeposit struct {
	Token      common.TokenId
	Depositor  common.Principal
	AmountIcp  uint64
	ReceivedAtNs uint64
}

// Fees holds the ICP (and optional Appic-token) cost of provisioning a
// new ledger suite.
type Fees struct {
	IcpE8s    uint64
	AppicE8s  *uint64
}

// LedgerSuiteVersion mirrors wasmstore.LedgerSuiteVersion without
// importing that package, keeping durablestate's dependency surface
// narrow (it only needs the three hashes, never the store itself).
type LedgerSuiteVersion struct {
	LedgerWasmHash  common.WasmHash
	IndexWasmHash   common.WasmHash
	ArchiveWasmHash common.WasmHash
}

// Aggregate is the entire durable, persisted state of the orchestrator.
type Aggregate struct {
	MoreControllerIds []common.Principal
	MinterIds         map[uint64]common.Principal // chain_id -> minter principal
	CyclesManagement  runtime.CyclesManagement
	Fees              Fees

	PinnedVersion *LedgerSuiteVersion

	Suites         map[common.TokenId]*Suite
	InstallQueue   []InstallArgs
	FailedInstalls []FailedInstall

	CollectedFees []ReceivedDeposit

	// MinterNotifyQueue holds tokens whose suite reached IndexInstalled
	// and is waiting for the (optional) minter-notify sweep.
	MinterNotifyQueue []common.TokenId
}

func newAggregate() *Aggregate {
	return &Aggregate{
		MinterIds: make(map[uint64]common.Principal),
		Suites:    make(map[common.TokenId]*Suite),
	}
}

// Clone deep-copies the aggregate for snapshot-isolated reads.
func (a *Aggregate) Clone() *Aggregate {
	out := &Aggregate{
		MoreControllerIds: append([]common.Principal(nil), a.MoreControllerIds...),
		MinterIds:         make(map[uint64]common.Principal, len(a.MinterIds)),
		CyclesManagement:  a.CyclesManagement,
		Fees:              a.Fees,
		Suites:            make(map[common.TokenId]*Suite, len(a.Suites)),
		InstallQueue:      append([]InstallArgs(nil), a.InstallQueue...),
		FailedInstalls:    append([]FailedInstall(nil), a.FailedInstalls...),
		CollectedFees:     append([]ReceivedDeposit(nil), a.CollectedFees...),
		MinterNotifyQueue: append([]common.TokenId(nil), a.MinterNotifyQueue...),
	}
	if a.PinnedVersion != nil {
		v := *a.PinnedVersion
		out.PinnedVersion = &v
	}
	for k, v := range a.MinterIds {
		out.MinterIds[k] = v
	}
	for k, v := range a.Suites {
		out.Suites[k] = v.Clone()
	}
	return out
}
