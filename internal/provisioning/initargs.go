package provisioning

import "github.com/appic-solutions/ledger-suite-manager/common"

// Default ledger/index/archive init-arg constants (spec.md §4.5/§6,
// bit-exact).
const (
	ArchiveTriggerThreshold  = 2000
	ArchiveNumBlocksToArchive = 1000
	ArchiveNodeMaxMemoryBytes = 3_221_225_472 // 3 GiB
	MaxMemoLength             = 80
)

// FeeCollectorSubaccount is the fixed 32-byte subaccount every ledger's
// fee_collector_account uses: all-zero except the last two bytes, 0x0f
// and 0xee (spec.md §6).
var FeeCollectorSubaccount = func() [32]byte {
	var s [32]byte
	s[30] = 0x0f
	s[31] = 0xee
	return s
}()

// Account mirrors an ICRC account: an owning principal plus an optional
// 32-byte subaccount.
type Account struct {
	Owner      common.Principal
	Subaccount *[32]byte
}

// ArchiveOptions is the archive_options record embedded in a ledger's init
// args (spec.md §4.5).
type ArchiveOptions struct {
	TriggerThreshold       uint64
	NumBlocksToArchive     uint64
	NodeMaxMemorySizeBytes uint64
	ControllerId           common.Principal
	MoreControllerIds      []common.Principal
	CyclesForArchiveCreation common.Cycles
}

// FeatureFlags toggles optional ICRC ledger behavior.
type FeatureFlags struct {
	ICRC2 bool
}

// LedgerInitArg is the exact init-argument shape the provisioning engine
// installs a freshly created ledger canister with.
type LedgerInitArg struct {
	MintingAccount       Account
	FeeCollectorAccount  Account
	InitialBalances      []struct{} // always empty; typed for wire-shape fidelity
	TransferFee          uint64
	Decimals             uint8
	TokenName            string
	TokenSymbol          string
	Metadata             [][2]string
	ArchiveOptions       ArchiveOptions
	MaxMemoLength        uint16
	FeatureFlags         FeatureFlags
}

// IndexInitArg is the init-argument shape for the index canister
// (spec.md §4.5).
type IndexInitArg struct {
	LedgerId                            common.Principal
	RetrieveBlocksFromLedgerIntervalSeconds *uint64
}

// BuildLedgerInitArg assembles the ledger init args for a newly allocated
// ledger canister, reproducing the bit-exact semantics spec.md §4.5
// requires: minting account with no subaccount, fee collector account
// under the minter with the fixed 0x...0fee subaccount, empty initial
// balances, and the fixed archive/memo/feature-flag constants.
func BuildLedgerInitArg(minter common.Principal, orchestrator common.Principal, moreControllers []common.Principal, init LedgerInitArgs, archiveCycles common.Cycles) LedgerInitArg {
	fc := FeeCollectorSubaccount
	return LedgerInitArg{
		MintingAccount:      Account{Owner: minter},
		FeeCollectorAccount: Account{Owner: minter, Subaccount: &fc},
		TransferFee:         init.Fee,
		Decimals:            init.Decimals,
		TokenName:           init.Name,
		TokenSymbol:         init.Symbol,
		Metadata:            [][2]string{{"icrc1:logo", init.Logo}},
		ArchiveOptions: ArchiveOptions{
			TriggerThreshold:         ArchiveTriggerThreshold,
			NumBlocksToArchive:       ArchiveNumBlocksToArchive,
			NodeMaxMemorySizeBytes:   ArchiveNodeMaxMemoryBytes,
			ControllerId:             orchestrator,
			MoreControllerIds:        append([]common.Principal(nil), moreControllers...),
			CyclesForArchiveCreation: archiveCycles,
		},
		MaxMemoLength: MaxMemoLength,
		FeatureFlags:  FeatureFlags{ICRC2: true},
	}
}

// BuildIndexInitArg assembles the index canister's init args.
func BuildIndexInitArg(ledger common.Principal) IndexInitArg {
	return IndexInitArg{LedgerId: ledger}
}

// LedgerInitArgs is re-exported here to avoid a dependency cycle between
// durablestate and provisioning; durablestate.LedgerInitArgs has the same
// shape and callers convert at the boundary (see internal/fees/collector.go).
type LedgerInitArgs struct {
	Fee      uint64
	Decimals uint8
	Name     string
	Symbol   string
	Logo     string
}
