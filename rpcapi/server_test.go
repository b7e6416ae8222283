package rpcapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGetLsmInfoReflectsQueueDepth(t *testing.T) {
	store, err := durablestate.Open("")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Bootstrap(durablestate.InitArg{}))

	addr, err := common.ParseEVMAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	token := common.NewTokenId(1, addr)
	require.NoError(t, store.Mutate(func(a *durablestate.Aggregate) error {
		a.InstallQueue = append(a.InstallQueue, durablestate.InstallArgs{Token: token})
		return nil
	}))

	s := &Server{Store: store, Progress: NewProgressHub()}
	req := httptest.NewRequest(http.MethodGet, "/get_lsm_info", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info LedgerManagerInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	require.Equal(t, 1, info.PendingInstalls)
}

func TestTwinCanisterIdsByContractNotFound(t *testing.T) {
	store, err := durablestate.Open("")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Bootstrap(durablestate.InitArg{}))

	s := &Server{Store: store, Progress: NewProgressHub()}
	req := httptest.NewRequest(http.MethodGet, "/twin_canister_ids_by_contract?chain_id=1&address=0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "null\n", rec.Body.String())
}
