// Package runtime defines ExternalRuntime, the abstraction boundary to
// the compute fabric (spec.md §4.4): canister lifecycle management,
// cycles queries/transfers, and typed inter-canister calls. Production
// code talks to the fabric over an RPC transport; tests substitute a
// fake implementing the same interface, the same seam go-ethereum draws
// around ethclient.Client for chain access.
package runtime

import (
	"context"
	"strings"

	"github.com/appic-solutions/ledger-suite-manager/common"
)

// Reason carries the raw rejection detail from a failed call, analogous
// to an RPC error's code+message pair.
type Reason struct {
	Code    int32
	Message string
}

// CallError classifies every failure ExternalRuntime can report
// (spec.md §4.4). Exactly one of the constructor functions below should be
// used to build one; the Recoverable method implements spec.md §7's
// TransientExternal/PermanentExternal split.
type CallError struct {
	kind   callErrorKind
	reason Reason
}

type callErrorKind uint8

const (
	kindOutOfCycles callErrorKind = iota
	kindCanisterError
	kindRejected
	kindTransientInternal
	kindInternal
)

func (e *CallError) Error() string {
	switch e.kind {
	case kindOutOfCycles:
		return "out of cycles"
	case kindCanisterError:
		return "canister error: " + e.reason.Message
	case kindRejected:
		return "rejected: " + e.reason.Message
	case kindTransientInternal:
		return "transient internal error: " + e.reason.Message
	default:
		return "internal error: " + e.reason.Message
	}
}

// Recoverable reports whether the scheduler should retry this failure on
// the next tick (true) or move the offending work to a graveyard (false).
// OutOfCycles and TransientInternalError are always recoverable;
// CanisterError is recoverable only when its message indicates the target
// canister is mid-lifecycle-transition ("is stopped"/"is stopping"), the
// exact substrings the original fabric's management canister reports.
func (e *CallError) Recoverable() bool {
	switch e.kind {
	case kindOutOfCycles, kindTransientInternal:
		return true
	case kindCanisterError:
		return strings.HasSuffix(e.reason.Message, "is stopped") ||
			strings.HasSuffix(e.reason.Message, "is stopping")
	case kindRejected, kindInternal:
		return false
	default:
		return false
	}
}

func NewOutOfCycles() *CallError { return &CallError{kind: kindOutOfCycles} }

func NewCanisterError(msg string) *CallError {
	return &CallError{kind: kindCanisterError, reason: Reason{Message: msg}}
}

func NewRejected(code int32, msg string) *CallError {
	return &CallError{kind: kindRejected, reason: Reason{Code: code, Message: msg}}
}

func NewTransientInternalError(msg string) *CallError {
	return &CallError{kind: kindTransientInternal, reason: Reason{Message: msg}}
}

func NewInternalError(msg string) *CallError {
	return &CallError{kind: kindInternal, reason: Reason{Message: msg}}
}

// ExternalRuntime is the seam between the orchestrator's pure decision
// logic and the compute fabric it manages, mirroring the role
// ethclient.Client plays for the teacher's miner package.
type ExternalRuntime interface {
	// OwnId returns this orchestrator's own principal.
	OwnId() common.Principal
	// NowNs returns the current time, nanoseconds since epoch — routed
	// through the runtime so decision logic never calls time.Now directly
	// and stays deterministically testable.
	NowNs() uint64

	CreateCanister(ctx context.Context, controllers []common.Principal, cycles common.Cycles) (common.Principal, *CallError)
	InstallCode(ctx context.Context, id common.Principal, wasm []byte, initArg []byte) *CallError
	UpgradeCanister(ctx context.Context, id common.Principal, wasm []byte, upgradeArg []byte) *CallError
	StopCanister(ctx context.Context, id common.Principal) *CallError
	StartCanister(ctx context.Context, id common.Principal) *CallError
	CanisterCycles(ctx context.Context, id common.Principal) (common.Cycles, *CallError)
	SendCycles(ctx context.Context, id common.Principal, amount common.Cycles) *CallError

	// Call issues a typed inter-canister call. args and out are
	// candid-encodable payloads; production implementations marshal them
	// over the fabric's IDL, tests just echo Go values through a fake.
	Call(ctx context.Context, id common.Principal, method string, args, out interface{}) *CallError
}
