package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/provisioning"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func principalN(n byte) common.Principal {
	raw := make([]byte, common.PrincipalLength)
	raw[0] = n
	return common.BytesToPrincipal(raw)
}

type fakeLedger struct {
	called bool
	err    error
}

func (f *fakeLedger) TransferFrom(ctx context.Context, from, to common.Principal, amount uint64) error {
	f.called = true
	return f.err
}

type fakePeer struct{ called bool }

func (p *fakePeer) NewTwinLsRequest(ctx context.Context, token common.TokenId) error {
	p.called = true
	return nil
}

func setup(t *testing.T) (*durablestate.Store, common.Principal) {
	t.Helper()
	store, err := durablestate.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	minter := principalN(2)
	require.NoError(t, store.Bootstrap(durablestate.InitArg{
		MinterIds: map[uint64]common.Principal{1: minter},
	}))
	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.PinnedVersion = &durablestate.LedgerSuiteVersion{}
		return nil
	}))
	return store, minter
}

func TestAddErc20HappyPath(t *testing.T) {
	store, _ := setup(t)
	ledger := &fakeLedger{}
	peer := &fakePeer{}
	c := &Collector{Store: store, Ledger: ledger, Peer: peer, Self: principalN(1)}

	arg := provisioning.AddErc20Arg{ChainId: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", LedgerInit: provisioning.LedgerInitArgs{Fee: 10000, Decimals: 6, Name: "X", Symbol: "X"}}
	err := c.AddErc20(context.Background(), principalN(9), arg)
	require.NoError(t, err)
	require.True(t, ledger.called)
	require.True(t, peer.called)

	store.Read(func(a *durablestate.Aggregate) {
		require.Len(t, a.InstallQueue, 1)
		require.Len(t, a.CollectedFees, 1)
	})
}

func TestAddErc20SurfacesTransferFailure(t *testing.T) {
	store, _ := setup(t)
	ledger := &fakeLedger{err: errors.New("insufficient allowance")}
	c := &Collector{Store: store, Ledger: ledger, Self: principalN(1)}

	arg := provisioning.AddErc20Arg{ChainId: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", LedgerInit: provisioning.LedgerInitArgs{Fee: 10000, Decimals: 6, Name: "X", Symbol: "X"}}
	err := c.AddErc20(context.Background(), principalN(9), arg)
	require.ErrorIs(t, err, ErrTransferIcpError)

	store.Read(func(a *durablestate.Aggregate) {
		require.Empty(t, a.InstallQueue)
	})
}

func TestAddErc20RejectsUnsupportedChain(t *testing.T) {
	store, _ := setup(t)
	ledger := &fakeLedger{}
	c := &Collector{Store: store, Ledger: ledger, Self: principalN(1)}

	arg := provisioning.AddErc20Arg{ChainId: 999, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	err := c.AddErc20(context.Background(), principalN(9), arg)
	require.ErrorIs(t, err, provisioning.ErrChainIdNotSupported)
	require.False(t, ledger.called)
}
