package provisioning

import (
	"context"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/log"
)

// UpgradeRequest describes a request to move a suite onto a newer pinned
// version. The /upgrade_ledger_suite RPC endpoint (checked against
// Server.AdminGate when one is set; orchestrator.Start sets none)
// dispatches RequestUpgrade through Scheduler.RunNow under
// guard.TaskUpgradeLedgerSuite (SPEC_FULL §C.3). No upgrade is performed:
// an already-installed suite's ledger/index code is never swapped, and
// new suites always install at the current PinnedVersion.
type UpgradeRequest struct {
	Token       common.TokenId
	RequestedAtNs uint64
}

// RequestUpgrade logs an upgrade request for token (or a warning if the
// token is not managed). It stores nothing in the aggregate, so repeated
// requests have no effect beyond the log line.
func RequestUpgrade(ctx context.Context, store *durablestate.Store, nowNs uint64, token common.TokenId) error {
	return store.Mutate(func(a *durablestate.Aggregate) error {
		if _, ok := a.Suites[token]; !ok {
			log.Warn("provisioning: upgrade requested for unmanaged token", "token", token)
			return nil
		}
		log.Info("provisioning: upgrade request received (no wasm swap performed)", "token", token, "at", nowNs)
		return nil
	})
}
