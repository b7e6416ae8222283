package runtime

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/appic-solutions/ledger-suite-manager/common"
)

// DefaultOutboundRPCRate caps outbound canister calls per second, the
// same conservative per-peer request ceiling go-ethereum's txpool and p2p
// layers apply to outbound RPCs via x/time/rate.
const DefaultOutboundRPCRate = 50

// RateLimitedRuntime wraps an ExternalRuntime and throttles every
// suspension-point call (spec.md §5: create_canister, install_code,
// canister_cycles, call) through a token-bucket limiter, so a runaway
// scheduler tick can never flood the fabric with outbound RPCs.
// send_cycles is synchronous per spec.md §5 and is passed through
// unthrottled.
type RateLimitedRuntime struct {
	Inner   ExternalRuntime
	limiter *rate.Limiter
}

// NewRateLimitedRuntime wraps inner with a limiter allowing r calls/sec
// with burst capacity b.
func NewRateLimitedRuntime(inner ExternalRuntime, r rate.Limit, b int) *RateLimitedRuntime {
	return &RateLimitedRuntime{Inner: inner, limiter: rate.NewLimiter(r, b)}
}

func (rt *RateLimitedRuntime) OwnId() common.Principal { return rt.Inner.OwnId() }

func (rt *RateLimitedRuntime) NowNs() uint64 { return rt.Inner.NowNs() }

func (rt *RateLimitedRuntime) CreateCanister(ctx context.Context, controllers []common.Principal, cycles common.Cycles) (common.Principal, *CallError) {
	if err := rt.limiter.Wait(ctx); err != nil {
		return common.Principal{}, NewTransientInternalError(err.Error())
	}
	return rt.Inner.CreateCanister(ctx, controllers, cycles)
}

func (rt *RateLimitedRuntime) InstallCode(ctx context.Context, id common.Principal, wasm []byte, initArg []byte) *CallError {
	if err := rt.limiter.Wait(ctx); err != nil {
		return NewTransientInternalError(err.Error())
	}
	return rt.Inner.InstallCode(ctx, id, wasm, initArg)
}

func (rt *RateLimitedRuntime) UpgradeCanister(ctx context.Context, id common.Principal, wasm []byte, upgradeArg []byte) *CallError {
	if err := rt.limiter.Wait(ctx); err != nil {
		return NewTransientInternalError(err.Error())
	}
	return rt.Inner.UpgradeCanister(ctx, id, wasm, upgradeArg)
}

func (rt *RateLimitedRuntime) StopCanister(ctx context.Context, id common.Principal) *CallError {
	if err := rt.limiter.Wait(ctx); err != nil {
		return NewTransientInternalError(err.Error())
	}
	return rt.Inner.StopCanister(ctx, id)
}

func (rt *RateLimitedRuntime) StartCanister(ctx context.Context, id common.Principal) *CallError {
	if err := rt.limiter.Wait(ctx); err != nil {
		return NewTransientInternalError(err.Error())
	}
	return rt.Inner.StartCanister(ctx, id)
}

func (rt *RateLimitedRuntime) CanisterCycles(ctx context.Context, id common.Principal) (common.Cycles, *CallError) {
	if err := rt.limiter.Wait(ctx); err != nil {
		return common.Cycles{}, NewTransientInternalError(err.Error())
	}
	return rt.Inner.CanisterCycles(ctx, id)
}

// SendCycles is synchronous (spec.md §5) and passes through unthrottled.
func (rt *RateLimitedRuntime) SendCycles(ctx context.Context, id common.Principal, amount common.Cycles) *CallError {
	return rt.Inner.SendCycles(ctx, id, amount)
}

func (rt *RateLimitedRuntime) Call(ctx context.Context, id common.Principal, method string, args, out interface{}) *CallError {
	if err := rt.limiter.Wait(ctx); err != nil {
		return NewTransientInternalError(err.Error())
	}
	return rt.Inner.Call(ctx, id, method, args, out)
}

var _ ExternalRuntime = (*RateLimitedRuntime)(nil)
