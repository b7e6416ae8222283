package durablestate

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
)

// snapshotKey is the single key the aggregate is persisted under — the Go
// rendition of "a single CBOR-encoded snapshot in a stable memory cell at
// id 0" (spec.md §6). No library in the retrieved pack carries a CBOR
// codec, so the snapshot uses encoding/gob, the standard library's own
// self-describing binary codec — the direct analogue of go-ethereum's
// home-grown RLP for a persistence format with no ecosystem equivalent in
// scope here (see DESIGN.md).
var snapshotKey = []byte("durablestate/snapshot/v1")

// MaxAdditionalControllers bounds InitArg.MoreControllerIds (spec.md §4.2).
const MaxAdditionalControllers = 9

// ErrTooManyAdditionalControllers is returned from Bootstrap when InitArg
// carries more than MaxAdditionalControllers entries.
var ErrTooManyAdditionalControllers = errors.New("durablestate: too many additional controllers")

// Store owns the single mutable Aggregate singleton. Every mutation runs
// inside Mutate's closure under an exclusive lock; Read hands out a deep
// copy so a caller can inspect the aggregate across suspension points
// without risking another task's concurrent mutation corrupting its view
// (spec.md §5: "every task reads state... re-reads state before
// mutating").
type Store struct {
	mu    sync.Mutex
	agg   *Aggregate
	db    *leveldb.DB
}

// InitArg is the bootstrap payload (spec.md §6).
type InitArg struct {
	MoreControllerIds          []common.Principal
	MinterIds                  map[uint64]common.Principal
	CyclesManagement           *runtime.CyclesManagement
	TwinLsCreationFeeIcpToken  uint64
	TwinLsCreationFeeAppicToken *uint64
}

// UpgradeArg selectively overwrites fields of an existing aggregate
// (spec.md §6). Nil fields are left untouched.
type UpgradeArg struct {
	LedgerCompressedWasmHash  *common.WasmHash
	IndexCompressedWasmHash   *common.WasmHash
	ArchiveCompressedWasmHash *common.WasmHash
	CyclesManagement          *runtime.CyclesManagement
	TwinLsCreationFees        *Fees
	NewMinterIds              map[uint64]common.Principal
}

// Open opens (or creates) the durable-state database at dir and restores
// the persisted aggregate, if any. An empty dir opens an in-memory store,
// useful for tests.
func Open(dir string) (*Store, error) {
	var db *leveldb.DB
	var err error
	if dir == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("durablestate: open: %w", err)
	}

	s := &Store{db: db}
	agg, err := s.restore()
	if err != nil {
		return nil, err
	}
	s.agg = agg
	return s, nil
}

func (s *Store) restore() (*Aggregate, error) {
	raw, err := s.db.Get(snapshotKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil // uninitialized; Bootstrap must be called
		}
		return nil, fmt.Errorf("durablestate: restore: %w", err)
	}
	var agg Aggregate
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&agg); err != nil {
		return nil, fmt.Errorf("durablestate: decode snapshot: %w", err)
	}
	return &agg, nil
}

func (s *Store) persistLocked() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.agg); err != nil {
		return fmt.Errorf("durablestate: encode snapshot: %w", err)
	}
	return s.db.Put(snapshotKey, buf.Bytes(), nil)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialized reports whether Bootstrap has ever run against this store
// (false on a brand-new data directory before first InitArg).
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg != nil
}

// Bootstrap consumes InitArg on first initialization. Calling it again
// once already initialized is a no-op that returns nil and leaves the
// existing aggregate unchanged (install is idempotent across restarts).
func (s *Store) Bootstrap(arg InitArg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agg != nil {
		return nil
	}
	if len(arg.MoreControllerIds) > MaxAdditionalControllers {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyAdditionalControllers, len(arg.MoreControllerIds), MaxAdditionalControllers)
	}

	agg := newAggregate()
	agg.MoreControllerIds = append([]common.Principal(nil), arg.MoreControllerIds...)
	for k, v := range arg.MinterIds {
		agg.MinterIds[k] = v
	}
	if arg.CyclesManagement != nil {
		agg.CyclesManagement = *arg.CyclesManagement
	} else {
		agg.CyclesManagement = runtime.DefaultCyclesManagement()
	}
	agg.Fees = Fees{IcpE8s: arg.TwinLsCreationFeeIcpToken, AppicE8s: arg.TwinLsCreationFeeAppicToken}

	s.agg = agg
	return s.persistLocked()
}

// ApplyUpgrade selectively overwrites fields per UpgradeArg.
func (s *Store) ApplyUpgrade(arg UpgradeArg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agg == nil {
		return errors.New("durablestate: upgrade before bootstrap")
	}
	if arg.CyclesManagement != nil {
		s.agg.CyclesManagement = *arg.CyclesManagement
	}
	if arg.TwinLsCreationFees != nil {
		s.agg.Fees = *arg.TwinLsCreationFees
	}
	for k, v := range arg.NewMinterIds {
		s.agg.MinterIds[k] = v
	}
	if arg.LedgerCompressedWasmHash != nil || arg.IndexCompressedWasmHash != nil || arg.ArchiveCompressedWasmHash != nil {
		pv := LedgerSuiteVersion{}
		if s.agg.PinnedVersion != nil {
			pv = *s.agg.PinnedVersion
		}
		if arg.LedgerCompressedWasmHash != nil {
			pv.LedgerWasmHash = *arg.LedgerCompressedWasmHash
		}
		if arg.IndexCompressedWasmHash != nil {
			pv.IndexWasmHash = *arg.IndexCompressedWasmHash
		}
		if arg.ArchiveCompressedWasmHash != nil {
			pv.ArchiveWasmHash = *arg.ArchiveCompressedWasmHash
		}
		s.agg.PinnedVersion = &pv
	}
	return s.persistLocked()
}

// Read hands f a deep copy of the aggregate; the lock is held only while
// the copy is made, not while f runs.
func (s *Store) Read(f func(*Aggregate)) {
	s.mu.Lock()
	snap := s.agg.Clone()
	s.mu.Unlock()
	f(snap)
}

// Mutate runs f against the live aggregate under the store's lock and
// persists the result. f must not retain the pointer beyond its call.
func (s *Store) Mutate(f func(*Aggregate) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := f(s.agg); err != nil {
		return err
	}
	return s.persistLocked()
}
