package provisioning

import (
	"errors"
	"fmt"
)

// Step errors (spec.md §4.5: "CanisterCreationError, InstallCodeError,
// WasmHashNotFound, WasmStoreError, InterCanisterCallError").
var (
	ErrWasmHashNotFound = errors.New("provisioning: wasm hash not found")
)

// StepError wraps one of the named step failures together with whether
// the scheduler should retry it next tick or graveyard the work item.
type StepError struct {
	Kind        string
	Err         error
	recoverable bool
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Recoverable reports whether the step should be retried on the next
// scheduler tick.
func (e *StepError) Recoverable() bool { return e.recoverable }

func canisterCreationError(err error, recoverable bool) *StepError {
	return &StepError{Kind: "CanisterCreationError", Err: err, recoverable: recoverable}
}

func installCodeError(err error, recoverable bool) *StepError {
	return &StepError{Kind: "InstallCodeError", Err: err, recoverable: recoverable}
}

func wasmHashNotFound(role string) *StepError {
	return &StepError{Kind: "WasmHashNotFound", Err: fmt.Errorf("%w: role %s", ErrWasmHashNotFound, role), recoverable: false}
}

func wasmStoreError(err error) *StepError {
	return &StepError{Kind: "WasmStoreError", Err: err, recoverable: false}
}

func interCanisterCallError(err error, recoverable bool) *StepError {
	return &StepError{Kind: "InterCanisterCallError", Err: err, recoverable: recoverable}
}

// Validation errors for AddErc20Arg (spec.md §4.5, surfaced over the wire
// as AddErc20Error per spec.md §6).
var (
	ErrInvalidErc20Contract      = errors.New("provisioning: invalid erc20 contract")
	ErrChainIdNotSupported       = errors.New("provisioning: chain id not supported")
	ErrErc20TwinTokenAlreadyExists = errors.New("provisioning: erc20 twin token already exists")
	ErrLedgerSuiteVersionNotPinned = errors.New("provisioning: ledger suite version not pinned")
)
