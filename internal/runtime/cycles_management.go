package runtime

import "github.com/appic-solutions/ledger-suite-manager/common"

const (
	tenTrillion    = 10_000_000_000_000
	hundredTrillion = 100_000_000_000_000
)

// CyclesManagement holds the cycles budget the orchestrator provisions
// new canisters with and tops existing ones up by. Values mirror the
// fabric's own defaults (spec.md §6): 2e14 to create a ledger, 1e14 each
// for an index/archive, and a 1e13 top-up increment.
type CyclesManagement struct {
	CyclesForLedgerCreation  common.Cycles
	CyclesForIndexCreation   common.Cycles
	CyclesForArchiveCreation common.Cycles
	CyclesTopUpIncrement     common.Cycles
}

// DefaultCyclesManagement returns the stock budget used when no
// InitArg override is supplied.
func DefaultCyclesManagement() CyclesManagement {
	return CyclesManagement{
		CyclesForLedgerCreation:  common.NewCycles(2 * hundredTrillion),
		CyclesForIndexCreation:   common.NewCycles(hundredTrillion),
		CyclesForArchiveCreation: common.NewCycles(hundredTrillion),
		CyclesTopUpIncrement:     common.NewCycles(tenTrillion),
	}
}

// MinimumManagerCycles is the floor the orchestrator keeps its own
// balance above: enough to create one more ledger and index suite plus a
// single top-up increment (spec.md §6's explicit formula; this
// deliberately does not follow the 2x-increment variant the fabric's own
// endpoints.rs computes for minimum_orchestrator_cycles, since spec.md's
// formula is unambiguous and governs — see DESIGN.md).
func (c CyclesManagement) MinimumManagerCycles() common.Cycles {
	return c.CyclesForLedgerCreation.
		Add(c.CyclesForIndexCreation).
		Add(c.CyclesTopUpIncrement)
}

// MinimumMonitoredCycles is the floor every fleet-managed canister
// (ledger, index, archive) is kept above by the top-up controller
// (spec.md §6's explicit formula: a single top-up increment).
func (c CyclesManagement) MinimumMonitoredCycles() common.Cycles {
	return c.CyclesTopUpIncrement
}
