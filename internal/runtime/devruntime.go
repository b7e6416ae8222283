package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/appic-solutions/ledger-suite-manager/common"
)

// DevRuntime is a self-contained ExternalRuntime for running the
// orchestrator against a simulated fabric rather than a live one: it
// allocates principals in-process, tracks cycles balances in memory, and
// answers inter-canister calls by invoking a registered handler. No
// IC-agent client library exists anywhere in this module's dependency
// pack, so production deployments must supply their own ExternalRuntime;
// DevRuntime exists to make `cmd/ledger-suite-manager` runnable out of
// the box against itself for local testing (see DESIGN.md).
type DevRuntime struct {
	mu       sync.Mutex
	self     common.Principal
	balances map[common.Principal]common.Cycles
	handlers map[string]func(args json.RawMessage) (json.RawMessage, *CallError)
	rng      *rand.Rand
}

// NewDevRuntime constructs a DevRuntime identifying as self, seeded with
// initialCycles.
func NewDevRuntime(self common.Principal, initialCycles common.Cycles) *DevRuntime {
	r := &DevRuntime{
		self:     self,
		balances: map[common.Principal]common.Cycles{self: initialCycles},
		handlers: make(map[string]func(json.RawMessage) (json.RawMessage, *CallError)),
		rng:      rand.New(rand.NewSource(1)),
	}
	return r
}

// RegisterHandler installs the canister-side implementation of method,
// invoked whenever Call targets it, standing in for the
// ledger/index/archive/minter canisters without a live fabric. Call
// returns a Rejected error for any method with no registered handler;
// cmd/ledger-suite-manager registers none.
func (r *DevRuntime) RegisterHandler(method string, fn func(args json.RawMessage) (json.RawMessage, *CallError)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = fn
}

func (r *DevRuntime) OwnId() common.Principal { return r.self }

func (r *DevRuntime) NowNs() uint64 { return uint64(time.Now().UnixNano()) }

func (r *DevRuntime) CreateCanister(ctx context.Context, controllers []common.Principal, cycles common.Cycles) (common.Principal, *CallError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw := make([]byte, common.PrincipalLength)
	r.rng.Read(raw)
	id := common.BytesToPrincipal(raw)
	r.balances[id] = cycles
	return id, nil
}

func (r *DevRuntime) InstallCode(ctx context.Context, id common.Principal, wasm []byte, initArg []byte) *CallError {
	return nil
}

func (r *DevRuntime) UpgradeCanister(ctx context.Context, id common.Principal, wasm []byte, upgradeArg []byte) *CallError {
	return nil
}

func (r *DevRuntime) StopCanister(ctx context.Context, id common.Principal) *CallError { return nil }

func (r *DevRuntime) StartCanister(ctx context.Context, id common.Principal) *CallError { return nil }

func (r *DevRuntime) CanisterCycles(ctx context.Context, id common.Principal) (common.Cycles, *CallError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[id], nil
}

func (r *DevRuntime) SendCycles(ctx context.Context, id common.Principal, amount common.Cycles) *CallError {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, ok := r.balances[r.self]
	if !ok {
		return NewInternalError("sender has no tracked balance")
	}
	remaining, err := from.Sub(amount)
	if err != nil {
		return NewOutOfCycles()
	}
	r.balances[r.self] = remaining
	r.balances[id] = r.balances[id].Add(amount)
	return nil
}

func (r *DevRuntime) Call(ctx context.Context, id common.Principal, method string, args, out interface{}) *CallError {
	r.mu.Lock()
	fn, ok := r.handlers[method]
	r.mu.Unlock()
	if !ok {
		return NewRejected(3, fmt.Sprintf("devruntime: no handler registered for %q on %s", method, id))
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return NewInternalError(err.Error())
	}
	resp, callErr := fn(payload)
	if callErr != nil {
		return callErr
	}
	if out != nil && len(resp) > 0 {
		if err := json.Unmarshal(resp, out); err != nil {
			return NewInternalError(err.Error())
		}
	}
	return nil
}

var _ ExternalRuntime = (*DevRuntime)(nil)
