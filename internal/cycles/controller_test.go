package cycles

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
	own      common.Principal
	balances map[common.Principal]common.Cycles
	sent     map[common.Principal]common.Cycles
}

func (f *fakeRuntime) OwnId() common.Principal { return f.own }
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
	return f.balances[id], nil
}
func (f *fakeRuntime) SendCycles(ctx context.Context, id common.Principal, amount common.Cycles) *runtime.CallError {
	f.sent[id] = amount
	f.balances[id] = f.balances[id].Add(amount)
	return nil
}
func (f *fakeRuntime) Call(ctx context.Context, id common.Principal, method string, args, out interface{}) *runtime.CallError {
	return nil
}

func setup(t *testing.T, selfBalance common.Cycles) (*Controller, *fakeRuntime, common.Principal) {
	t.Helper()
	store, err := durablestate.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Bootstrap(durablestate.InitArg{}))

	own := principalN(1)
	ledger := principalN(5)
	addr, err := common.ParseEVMAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	token := common.NewTokenId(1, addr)
	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.Suites[token] = &durablestate.Suite{Token: token, Ledger: &ledger}
		return nil
	}))

	rt := &fakeRuntime{own: own, balances: map[common.Principal]common.Cycles{own: selfBalance}, sent: map[common.Principal]common.Cycles{}}
	return &Controller{Store: store, Runtime: rt}, rt, ledger
}

func TestTopsUpBelowFloorCanister(t *testing.T) {
	c, rt, ledger := setup(t, common.NewCycles(40*tenTrillion)) // above the 3.1e14 default manager floor
	rt.balances[ledger] = common.NewCycles(1) // far below floor

	require.NoError(t, c.RunOnce(context.Background()))

	_, sent := rt.sent[ledger]
	require.True(t, sent)
}

func TestSkipsSweepWhenOwnBalanceBelowFloor(t *testing.T) {
	c, rt, ledger := setup(t, common.NewCycles(1))
	rt.balances[ledger] = common.NewCycles(1)

	err := c.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrInsufficientCyclesToTopUp)
	require.Empty(t, rt.sent)
}

const tenTrillion = 10_000_000_000_000
