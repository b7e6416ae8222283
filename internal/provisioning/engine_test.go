package provisioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/internal/wasmstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRuntime is a minimal ExternalRuntime double letting tests script
// canister ids and induce specific CallErrors on specific calls, the same
// role a MockCanisterRuntime plays in the original's own test suite.
type fakeRuntime struct {
	own           common.Principal
	nextPrincipal byte
	installFailOnce map[common.Principal]bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{own: principalN(1), nextPrincipal: 10, installFailOnce: map[common.Principal]bool{}}
}

func principalN(n byte) common.Principal {
	raw := make([]byte, common.PrincipalLength)
	raw[0] = n
	return common.BytesToPrincipal(raw)
}

func (f *fakeRuntime) OwnId() common.Principal { return f.own }
func (f *fakeRuntime) NowNs() uint64           { return 1 }

func (f *fakeRuntime) CreateCanister(ctx context.Context, controllers []common.Principal, cycles common.Cycles) (common.Principal, *runtime.CallError) {
	p := principalN(f.nextPrincipal)
	f.nextPrincipal++
	return p, nil
}

func (f *fakeRuntime) InstallCode(ctx context.Context, id common.Principal, wasm []byte, initArg []byte) *runtime.CallError {
	if f.installFailOnce[id] {
		delete(f.installFailOnce, id)
		return runtime.NewOutOfCycles()
	}
	return nil
}

func (f *fakeRuntime) UpgradeCanister(ctx context.Context, id common.Principal, wasm []byte, upgradeArg []byte) *runtime.CallError {
	return nil
}
func (f *fakeRuntime) StopCanister(ctx context.Context, id common.Principal) *runtime.CallError  { return nil }
func (f *fakeRuntime) StartCanister(ctx context.Context, id common.Principal) *runtime.CallError { return nil }
func (f *fakeRuntime) CanisterCycles(ctx context.Context, id common.Principal) (common.Cycles, *runtime.CallError) {
	return common.NewCycles(1 << 40), nil
}
func (f *fakeRuntime) SendCycles(ctx context.Context, id common.Principal, amount common.Cycles) *runtime.CallError {
	return nil
}
func (f *fakeRuntime) Call(ctx context.Context, id common.Principal, method string, args, out interface{}) *runtime.CallError {
	return nil
}

func setupEngine(t *testing.T) (*Engine, *durablestate.Store, common.Principal) {
	t.Helper()
	store, err := durablestate.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	minter := principalN(2)
	require.NoError(t, store.Bootstrap(durablestate.InitArg{
		MinterIds: map[uint64]common.Principal{1: minter},
	}))

	wasms, err := wasmstore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { wasms.Close() })
	v, err := wasmstore.Bootstrap(wasms, []byte("ledger-binary"), []byte("index-binary"), []byte("archive-binary"), 1)
	require.NoError(t, err)

	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.PinnedVersion = &durablestate.LedgerSuiteVersion{
			LedgerWasmHash:  v.LedgerWasmHash,
			IndexWasmHash:   v.IndexWasmHash,
			ArchiveWasmHash: v.ArchiveWasmHash,
		}
		return nil
	}))

	rt := newFakeRuntime()
	return &Engine{Store: store, Wasms: wasms, Runtime: rt}, store, minter
}

func enqueue(t *testing.T, store *durablestate.Store, token common.TokenId, minter common.Principal) {
	t.Helper()
	args := durablestate.InstallArgs{
		Token:      token,
		LedgerInit: durablestate.LedgerInitArgs{Fee: 10000, Decimals: 6, Name: "Ethereum Twin USDC", Symbol: "icUSDC"},
		Minter:     minter,
	}
	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.Suites[token] = &durablestate.Suite{Token: token, State: durablestate.StateRequested, InitArg: args.LedgerInit}
		a.InstallQueue = append(a.InstallQueue, args)
		return nil
	}))
}

func TestHappyInstallReachesMinterNotified(t *testing.T) {
	engine, store, minter := setupEngine(t)
	addr, err := common.ParseEVMAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	token := common.NewTokenId(1, addr)
	enqueue(t, store, token, minter)

	require.NoError(t, engine.RunOnce(context.Background()))

	store.Read(func(a *durablestate.Aggregate) {
		s := a.Suites[token]
		require.Equal(t, durablestate.StateMinterNotified, s.State)
		require.NotNil(t, s.Ledger)
		require.NotNil(t, s.Index)
		require.Empty(t, a.InstallQueue)
	})
}

func TestInstallFailureThenResumeDoesNotRecreateLedger(t *testing.T) {
	engine, store, minter := setupEngine(t)
	fr := engine.Runtime.(*fakeRuntime)

	addr, err := common.ParseEVMAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	token := common.NewTokenId(1, addr)
	enqueue(t, store, token, minter)

	// First ledger canister to be created will be principalN(10); force
	// its install_code to fail once with a recoverable error.
	fr.installFailOnce[principalN(10)] = true

	require.NoError(t, engine.RunOnce(context.Background()))

	var ledgerAfterTick1 *common.Principal
	store.Read(func(a *durablestate.Aggregate) {
		s := a.Suites[token]
		require.Equal(t, durablestate.StateLedgerCreated, s.State)
		ledgerAfterTick1 = s.Ledger
	})

	require.NoError(t, engine.RunOnce(context.Background()))

	store.Read(func(a *durablestate.Aggregate) {
		s := a.Suites[token]
		require.Equal(t, durablestate.StateMinterNotified, s.State)
		require.Equal(t, *ledgerAfterTick1, *s.Ledger)
	})
}
