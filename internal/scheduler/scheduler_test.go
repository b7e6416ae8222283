package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/appic-solutions/ledger-suite-manager/internal/guard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunOnceSkipsWhenGuardHeld(t *testing.T) {
	s := New()
	tok, err := s.Guard.Acquire(guard.TaskMaybeTopUp)
	require.NoError(t, err)
	defer tok.Release()

	var ran atomic.Bool
	s.runOnce(context.Background(), task{kind: guard.TaskMaybeTopUp, fn: func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}})
	require.False(t, ran.Load())
}

func TestRunOnceReleasesGuardAfterRun(t *testing.T) {
	s := New()
	s.runOnce(context.Background(), task{kind: guard.TaskDiscoverArchives, fn: func(ctx context.Context) error { return nil }})
	require.False(t, s.Guard.IsBusy(guard.TaskDiscoverArchives))
}

func TestStartStopRunsRegisteredTask(t *testing.T) {
	s := New()
	var count atomic.Int32
	s.Register(guard.TaskMaybeTopUp, 10*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	require.Greater(t, count.Load(), int32(0))
}

func TestRunNowHonorsGuard(t *testing.T) {
	s := New()
	tok, err := s.Guard.Acquire(guard.TaskNotifyErc20Added)
	require.NoError(t, err)
	defer tok.Release()

	err = s.RunNow(context.Background(), guard.TaskNotifyErc20Added, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, guard.ErrAlreadyProcessing)
}
