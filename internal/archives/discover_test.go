package archives

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func principalN(n byte) common.Principal {
	raw := make([]byte, common.PrincipalLength)
	raw[0] = n
	return common.BytesToPrincipal(raw)
}

type fakeRuntime struct {
	archivesByLedger map[common.Principal][]icrc3ArchiveInfo
	failLedgers      map[common.Principal]bool
}

func (f *fakeRuntime) OwnId() common.Principal { return principalN(1) }
func (f *fakeRuntime) NowNs() uint64           { return 1 }
func (f *fakeRuntime) CreateCanister(ctx context.Context, controllers []common.Principal, cycles common.Cycles) (common.Principal, *runtime.CallError) {
	return common.Principal{}, nil
}
func (f *fakeRuntime) InstallCode(ctx context.Context, id common.Principal, wasm, initArg []byte) *runtime.CallError {
	return nil
}
func (f *fakeRuntime) UpgradeCanister(ctx context.Context, id common.Principal, wasm, arg []byte) *runtime.CallError {
	return nil
}
func (f *fakeRuntime) StopCanister(ctx context.Context, id common.Principal) *runtime.CallError  { return nil }
func (f *fakeRuntime) StartCanister(ctx context.Context, id common.Principal) *runtime.CallError { return nil }
func (f *fakeRuntime) CanisterCycles(ctx context.Context, id common.Principal) (common.Cycles, *runtime.CallError) {
	return common.Cycles{}, nil
}
func (f *fakeRuntime) SendCycles(ctx context.Context, id common.Principal, amount common.Cycles) *runtime.CallError {
	return nil
}
func (f *fakeRuntime) Call(ctx context.Context, id common.Principal, method string, args, out interface{}) *runtime.CallError {
	if f.failLedgers[id] {
		return runtime.NewTransientInternalError("timeout")
	}
	resp := out.(*[]icrc3ArchiveInfo)
	*resp = f.archivesByLedger[id]
	return nil
}

func setup(t *testing.T) (*durablestate.Store, common.TokenId, common.Principal) {
	t.Helper()
	store, err := durablestate.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Bootstrap(durablestate.InitArg{}))

	ledger := principalN(5)
	addr, err := common.ParseEVMAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	token := common.NewTokenId(1, addr)
	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.Suites[token] = &durablestate.Suite{Token: token, State: durablestate.StateIndexInstalled, Ledger: &ledger}
		return nil
	}))
	return store, token, ledger
}

func TestDiscoverArchivesMergesAndSorts(t *testing.T) {
	store, token, ledger := setup(t)
	rt := &fakeRuntime{archivesByLedger: map[common.Principal][]icrc3ArchiveInfo{
		ledger: {{CanisterId: principalN(9)}, {CanisterId: principalN(3)}},
	}}
	d := &Discoverer{Store: store, Runtime: rt}

	require.NoError(t, d.RunOnce(context.Background()))

	store.Read(func(a *durablestate.Aggregate) {
		require.Len(t, a.Suites[token].Archives, 2)
		require.Equal(t, []common.Principal{principalN(3), principalN(9)}, a.Suites[token].Archives)
	})
}

func TestDiscoverArchivesNeverShrinks(t *testing.T) {
	store, token, ledger := setup(t)
	rt := &fakeRuntime{archivesByLedger: map[common.Principal][]icrc3ArchiveInfo{
		ledger: {{CanisterId: principalN(9)}},
	}}
	d := &Discoverer{Store: store, Runtime: rt}
	require.NoError(t, d.RunOnce(context.Background()))

	// second round returns fewer archives (simulating ledger amnesia);
	// the persisted set must still include the previously seen one.
	rt.archivesByLedger[ledger] = nil
	require.NoError(t, d.RunOnce(context.Background()))

	store.Read(func(a *durablestate.Aggregate) {
		require.Len(t, a.Suites[token].Archives, 1)
	})
}

func TestDiscoverArchivesCommitsPartialSuccessAndReturnsFirstError(t *testing.T) {
	store, err := durablestate.Open("")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Bootstrap(durablestate.InitArg{}))

	ledgerOk := principalN(5)
	ledgerBad := principalN(6)
	addrOk, err := common.ParseEVMAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	addrBad, err := common.ParseEVMAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	tokenOk := common.NewTokenId(1, addrOk)
	tokenBad := common.NewTokenId(1, addrBad)
	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.Suites[tokenOk] = &durablestate.Suite{Token: tokenOk, Ledger: &ledgerOk}
		a.Suites[tokenBad] = &durablestate.Suite{Token: tokenBad, Ledger: &ledgerBad}
		return nil
	}))

	rt := &fakeRuntime{
		archivesByLedger: map[common.Principal][]icrc3ArchiveInfo{ledgerOk: {{CanisterId: principalN(9)}}},
		failLedgers:      map[common.Principal]bool{ledgerBad: true},
	}
	d := &Discoverer{Store: store, Runtime: rt}

	err = d.RunOnce(context.Background())
	require.Error(t, err)

	store.Read(func(a *durablestate.Aggregate) {
		require.Len(t, a.Suites[tokenOk].Archives, 1)
	})
}
