package wasmstore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	binary := []byte("pretend-wasm-bytes-ledger")
	hash, err := s.Put(RoleLedger, binary, 1)
	require.NoError(t, err)

	got, err := s.Get(RoleLedger, hash)
	require.NoError(t, err)
	require.Equal(t, binary, got)
}

func TestPutIsIdempotentUnderSameRole(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	binary := []byte("same-bytes")
	h1, err := s.Put(RoleIndex, binary, 1)
	require.NoError(t, err)
	h2, err := s.Put(RoleIndex, binary, 2)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestPutRejectsRoleChange(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	binary := []byte("ambiguous-bytes")
	_, err = s.Put(RoleLedger, binary, 1)
	require.NoError(t, err)

	_, err = s.Put(RoleIndex, binary, 1)
	require.ErrorIs(t, err, ErrWasmRoleMismatch)
}

func TestGetWrongRoleFails(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	binary := []byte("archive-bytes")
	hash, err := s.Put(RoleArchive, binary, 1)
	require.NoError(t, err)

	_, err = s.Get(RoleLedger, hash)
	require.ErrorIs(t, err, ErrWasmRoleMismatch)
}

func TestGetNotFound(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	var h [32]byte
	_, err = s.Get(RoleLedger, h)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBootstrapPinsVersion(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	v, err := Bootstrap(s, []byte("ledger"), []byte("index"), []byte("archive"), 1)
	require.NoError(t, err)
	require.True(t, s.Contains(RoleLedger, v.LedgerWasmHash))
	require.True(t, s.Contains(RoleIndex, v.IndexWasmHash))
	require.True(t, s.Contains(RoleArchive, v.ArchiveWasmHash))
}
