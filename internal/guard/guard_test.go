package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireReleaseAllowsReacquire(t *testing.T) {
	s := NewSet()
	tok, err := s.Acquire(TaskMaybeTopUp)
	require.NoError(t, err)
	require.True(t, s.IsBusy(TaskMaybeTopUp))

	tok.Release()
	require.False(t, s.IsBusy(TaskMaybeTopUp))

	_, err = s.Acquire(TaskMaybeTopUp)
	require.NoError(t, err)
}

func TestAcquireRejectsConcurrentSameKind(t *testing.T) {
	s := NewSet()
	tok, err := s.Acquire(TaskDiscoverArchives)
	require.NoError(t, err)
	defer tok.Release()

	_, err = s.Acquire(TaskDiscoverArchives)
	require.ErrorIs(t, err, ErrAlreadyProcessing)
}

func TestDifferentKindsDoNotConflict(t *testing.T) {
	s := NewSet()
	tok1, err := s.Acquire(TaskMaybeTopUp)
	require.NoError(t, err)
	defer tok1.Release()

	tok2, err := s.Acquire(TaskDiscoverArchives)
	require.NoError(t, err)
	defer tok2.Release()
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	s := NewSet()
	tok, err := s.Acquire(TaskConvertIcpToCycles)
	require.NoError(t, err)
	tok.Release()
	tok.Release()
	require.False(t, s.IsBusy(TaskConvertIcpToCycles))
}
