package rpcapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/fees"
	"github.com/appic-solutions/ledger-suite-manager/internal/guard"
	"github.com/appic-solutions/ledger-suite-manager/internal/provisioning"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/internal/scheduler"
	"github.com/appic-solutions/ledger-suite-manager/log"
)

// Server is the public HTTP/JSON RPC surface (spec.md §6).
type Server struct {
	Store     *durablestate.Store
	Fees      *fees.Collector
	Runtime   runtime.ExternalRuntime
	Scheduler *scheduler.Scheduler
	Progress  *ProgressHub
	AdminGate func(caller common.Principal) bool
}

// Handler builds the http.Handler for the whole public surface, wrapped
// in permissive CORS the same way a browser-facing admin console needs
// (rs/cors, the teacher's own choice for its GraphQL/WS endpoints).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/add_erc20_ls", s.handleAddErc20Ls)
	mux.HandleFunc("/add_native_ls", s.handleAddNativeLs)
	mux.HandleFunc("/twin_canister_ids_by_contract", s.handleTwinCanisterIdsByContract)
	mux.HandleFunc("/all_twins_canister_ids", s.handleAllTwinsCanisterIds)
	mux.HandleFunc("/get_lsm_info", s.handleGetLsmInfo)
	mux.HandleFunc("/get_canister_status", s.handleGetCanisterStatus)
	mux.HandleFunc("/update_twin_creation_fees", s.handleUpdateTwinCreationFees)
	mux.HandleFunc("/upgrade_ledger_suite", s.handleUpgradeLedgerSuite)
	mux.HandleFunc("/ws/progress", s.Progress.ServeHTTP)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("rpcapi: failed to encode response", "err", err)
	}
}

func callerFromRequest(r *http.Request) common.Principal {
	raw := r.Header.Get("X-Caller-Principal")
	p, _ := common.ParsePrincipal(raw)
	return p
}

func (s *Server) handleAddErc20Ls(w http.ResponseWriter, r *http.Request) {
	var req AddErc20Arg
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &AddErc20Error{Kind: "InvalidErc20Contract", Message: err.Error()})
		return
	}

	caller := callerFromRequest(r)
	arg := provisioning.AddErc20Arg{
		ChainId: req.Contract.ChainId,
		Address: req.Contract.Address,
		LedgerInit: provisioning.LedgerInitArgs{
			Fee: req.LedgerInit.Fee, Decimals: req.LedgerInit.Decimals,
			Name: req.LedgerInit.Name, Symbol: req.LedgerInit.Symbol, Logo: req.LedgerInit.Logo,
		},
	}

	if err := s.Fees.AddErc20(r.Context(), caller, arg); err != nil {
		writeJSON(w, http.StatusOK, &AddErc20Error{Kind: "InternalError", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleAddNativeLs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChainId        uint64
		Symbol         string
		Fee            uint64
		Decimals       uint8
		Logo           string
		Name           string
		Ledger         string
		LedgerWasmHash string
		Index          string
		IndexWasmHash  string
		Archives       []string
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &InvalidNativeInstalledCanistersError{Kind: "WasmHashError", Message: err.Error()})
		return
	}

	caller := callerFromRequest(r)
	var outErr error
	s.Store.Mutate(func(a *durablestate.Aggregate) error {
		ledger, err := common.ParsePrincipal(req.Ledger)
		if err != nil {
			outErr = err
			return nil
		}
		index, err := common.ParsePrincipal(req.Index)
		if err != nil {
			outErr = err
			return nil
		}
		ledgerHash, err := common.ParseWasmHash(req.LedgerWasmHash)
		if err != nil {
			outErr = err
			return nil
		}
		indexHash, err := common.ParseWasmHash(req.IndexWasmHash)
		if err != nil {
			outErr = err
			return nil
		}
		suite := provisioning.InstalledNativeLedgerSuite{
			ChainId: req.ChainId, Symbol: req.Symbol, Fee: req.Fee, Decimals: req.Decimals,
			Logo: req.Logo, Name: req.Name, Ledger: ledger, LedgerWasmHash: ledgerHash,
			Index: index, IndexWasmHash: indexHash,
		}
		outErr = provisioning.AddNativeLedgerSuite(a, caller, suite)
		return nil
	})
	if outErr != nil {
		writeJSON(w, http.StatusOK, &InvalidNativeInstalledCanistersError{Kind: "NotAllowed", Message: outErr.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleTwinCanisterIdsByContract(w http.ResponseWriter, r *http.Request) {
	chainIdStr := r.URL.Query().Get("chain_id")
	addrStr := r.URL.Query().Get("address")
	addr, err := common.ParseEVMAddress(addrStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, nil)
		return
	}
	var chainId uint64
	json.Unmarshal([]byte(chainIdStr), &chainId)
	token := common.NewTokenId(chainId, addr)

	var found *ManagedCanisterIds
	s.Store.Read(func(a *durablestate.Aggregate) {
		suite, ok := a.Suites[token]
		if !ok {
			return
		}
		found = &ManagedCanisterIds{Ledger: suite.Ledger, Index: suite.Index, Archives: suite.Archives}
	})
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleAllTwinsCanisterIds(w http.ResponseWriter, r *http.Request) {
	var out []ManagedCanisters
	s.Store.Read(func(a *durablestate.Aggregate) {
		for _, token := range a.SortedTokens() {
			suite := a.Suites[token]
			out = append(out, ManagedCanisters{
				Contract: Erc20Contract{ChainId: token.ChainId, Address: token.Address.Hex()},
				Ids:      ManagedCanisterIds{Ledger: suite.Ledger, Index: suite.Index, Archives: suite.Archives},
			})
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLsmInfo(w http.ResponseWriter, r *http.Request) {
	var info LedgerManagerInfo
	s.Store.Read(func(a *durablestate.Aggregate) {
		info.ManagedSuites = len(a.Suites)
		info.PendingInstalls = len(a.InstallQueue)
		info.FailedInstalls = len(a.FailedInstalls)
		if a.PinnedVersion != nil {
			info.PinnedVersion = a.PinnedVersion.LedgerWasmHash.String()
		}
	})
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetCanisterStatus(w http.ResponseWriter, r *http.Request) {
	self := s.Runtime.OwnId()
	cycles, callErr := s.Runtime.CanisterCycles(r.Context(), self)
	if callErr != nil {
		writeJSON(w, http.StatusOK, &AddErc20Error{Kind: "InternalError", Message: callErr.Error()})
		return
	}
	writeJSON(w, http.StatusOK, CanisterStatus{Principal: self.String(), Cycles: cycles.String()})
}

// handleUpgradeLedgerSuite triggers the one-shot upgrade-request task
// (SPEC_FULL §C.3's UpgradeLedgerSuite) for a single managed contract,
// dispatched through the scheduler's guarded RunNow so two upgrade
// requests never run concurrently (a second one fails with
// guard.ErrAlreadyProcessing).
func (s *Server) handleUpgradeLedgerSuite(w http.ResponseWriter, r *http.Request) {
	caller := callerFromRequest(r)
	if s.AdminGate != nil && !s.AdminGate(caller) {
		writeJSON(w, http.StatusForbidden, nil)
		return
	}
	var req Erc20Contract
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &AddErc20Error{Kind: "InvalidErc20Contract", Message: err.Error()})
		return
	}
	addr, err := common.ParseEVMAddress(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &AddErc20Error{Kind: "InvalidErc20Contract", Message: err.Error()})
		return
	}
	token := common.NewTokenId(req.ChainId, addr)

	err = s.Scheduler.RunNow(r.Context(), guard.TaskUpgradeLedgerSuite, func(ctx context.Context) error {
		return provisioning.RequestUpgrade(ctx, s.Store, s.Runtime.NowNs(), token)
	})
	if err != nil {
		writeJSON(w, http.StatusOK, &AddErc20Error{Kind: "InternalError", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleUpdateTwinCreationFees(w http.ResponseWriter, r *http.Request) {
	caller := callerFromRequest(r)
	if s.AdminGate != nil && !s.AdminGate(caller) {
		writeJSON(w, http.StatusForbidden, nil)
		return
	}
	var req struct {
		Icp   uint64
		Appic *uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, nil)
		return
	}
	s.Store.Mutate(func(a *durablestate.Aggregate) error {
		a.Fees = durablestate.Fees{IcpE8s: req.Icp, AppicE8s: req.Appic}
		return nil
	})
	writeJSON(w, http.StatusOK, struct{}{})
}
