package durablestate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/appic-solutions/ledger-suite-manager/common"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func principalN(n byte) common.Principal {
	raw := make([]byte, common.PrincipalLength)
	raw[0] = n
	return common.BytesToPrincipal(raw)
}

func TestBootstrapRejectsTooManyControllers(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	var many []common.Principal
	for i := 0; i < 10; i++ {
		many = append(many, principalN(byte(i)))
	}
	err = s.Bootstrap(InitArg{MoreControllerIds: many})
	require.ErrorIs(t, err, ErrTooManyAdditionalControllers)
	require.False(t, s.Initialized())
}

func TestBootstrapAcceptsNineControllers(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	var nine []common.Principal
	for i := 0; i < 9; i++ {
		nine = append(nine, principalN(byte(i)))
	}
	err = s.Bootstrap(InitArg{MoreControllerIds: nine})
	require.NoError(t, err)
	require.True(t, s.Initialized())
}

func TestBootstrapIsIdempotent(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Bootstrap(InitArg{TwinLsCreationFeeIcpToken: 100}))
	require.NoError(t, s.Bootstrap(InitArg{TwinLsCreationFeeIcpToken: 999}))

	s.Read(func(a *Aggregate) {
		require.Equal(t, uint64(100), a.Fees.IcpE8s)
	})
}

func TestMutateAndReadRoundTrip(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Bootstrap(InitArg{}))

	tok := common.NewTokenId(1, common.NativeEVMAddress)
	err = s.Mutate(func(a *Aggregate) error {
		a.Suites[tok] = &Suite{Token: tok, State: StateRequested}
		return nil
	})
	require.NoError(t, err)

	s.Read(func(a *Aggregate) {
		suite, ok := a.Suites[tok]
		require.True(t, ok)
		require.Equal(t, StateRequested, suite.State)
	})
}

func TestReadSnapshotIsIsolatedFromLaterMutation(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Bootstrap(InitArg{}))

	tok := common.NewTokenId(1, common.NativeEVMAddress)
	require.NoError(t, s.Mutate(func(a *Aggregate) error {
		a.Suites[tok] = &Suite{Token: tok, State: StateRequested}
		return nil
	}))

	var captured *Suite
	s.Read(func(a *Aggregate) {
		captured = a.Suites[tok]
	})

	require.NoError(t, s.Mutate(func(a *Aggregate) error {
		a.Suites[tok].State = StateMinterNotified
		return nil
	}))

	require.Equal(t, StateRequested, captured.State)
}
