package wasmstore

import "github.com/appic-solutions/ledger-suite-manager/common"

// LedgerSuiteVersion is the triple of wasm hashes new ledger suites are
// installed with. The Store itself does not keep one; the pinned copy
// lives in durablestate.Aggregate.PinnedVersion.
type LedgerSuiteVersion struct {
	LedgerWasmHash  common.WasmHash
	IndexWasmHash   common.WasmHash
	ArchiveWasmHash common.WasmHash
}

// Bootstrap ingests the three embedded binaries shipped with a release and
// returns the LedgerSuiteVersion pinning their hashes. Called once at
// process start (see orchestrator.New); a no-op on restart
// since Put is idempotent under a stable hash.
func Bootstrap(s *Store, ledgerWasm, indexWasm, archiveWasm []byte, timestampNs uint64) (LedgerSuiteVersion, error) {
	ledgerHash, err := s.Put(RoleLedger, ledgerWasm, timestampNs)
	if err != nil {
		return LedgerSuiteVersion{}, err
	}
	indexHash, err := s.Put(RoleIndex, indexWasm, timestampNs)
	if err != nil {
		return LedgerSuiteVersion{}, err
	}
	archiveHash, err := s.Put(RoleArchive, archiveWasm, timestampNs)
	if err != nil {
		return LedgerSuiteVersion{}, err
	}
	return LedgerSuiteVersion{
		LedgerWasmHash:  ledgerHash,
		IndexWasmHash:   indexHash,
		ArchiveWasmHash: archiveHash,
	}, nil
}
