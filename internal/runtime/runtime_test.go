package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCallErrorRecoverability(t *testing.T) {
	require.True(t, NewOutOfCycles().Recoverable())
	require.True(t, NewTransientInternalError("retry me").Recoverable())
	require.False(t, NewRejected(5, "bad request").Recoverable())
	require.False(t, NewInternalError("panic").Recoverable())

	require.True(t, NewCanisterError("canister xyz is stopped").Recoverable())
	require.True(t, NewCanisterError("canister xyz is stopping").Recoverable())
	require.False(t, NewCanisterError("canister xyz trapped").Recoverable())
}

func TestDefaultCyclesManagementThresholds(t *testing.T) {
	c := DefaultCyclesManagement()

	minManager := c.MinimumManagerCycles()
	want := c.CyclesForLedgerCreation.Add(c.CyclesForIndexCreation).Add(c.CyclesTopUpIncrement)
	require.Equal(t, 0, minManager.Cmp(want))

	minMonitored := c.MinimumMonitoredCycles()
	require.Equal(t, 0, minMonitored.Cmp(c.CyclesTopUpIncrement))
}
