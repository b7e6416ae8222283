package orchestrator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/archives"
	"github.com/appic-solutions/ledger-suite-manager/internal/converter"
	"github.com/appic-solutions/ledger-suite-manager/internal/cycles"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/fees"
	"github.com/appic-solutions/ledger-suite-manager/internal/guard"
	"github.com/appic-solutions/ledger-suite-manager/internal/provisioning"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/internal/scheduler"
	"github.com/appic-solutions/ledger-suite-manager/internal/wasmstore"
	"github.com/appic-solutions/ledger-suite-manager/log"
	"github.com/appic-solutions/ledger-suite-manager/metrics"
	"github.com/appic-solutions/ledger-suite-manager/rpcapi"
)

//go:embed wasm/ledger.wasm
var embeddedLedgerWasm []byte

//go:embed wasm/index.wasm
var embeddedIndexWasm []byte

//go:embed wasm/archive.wasm
var embeddedArchiveWasm []byte

// Orchestrator owns every long-lived component and wires them together,
// mirroring the role node.Node plays for the teacher's services.
type Orchestrator struct {
	cfg Config

	Store   *durablestate.Store
	Wasms   *wasmstore.Store
	Runtime runtime.ExternalRuntime

	Scheduler  *scheduler.Scheduler
	Engine     *provisioning.Engine
	Discoverer *archives.Discoverer
	Cycles     *cycles.Controller
	Fees       *fees.Collector

	converter *converter.Converter

	httpServer *http.Server
	influx     *metrics.InfluxReporter
}

// New constructs an Orchestrator from cfg and rt (the concrete fabric
// client). rt is supplied by the caller since no ready-made IC-agent
// client exists in the dependency pack this module draws from; see
// DESIGN.md for the extension point.
func New(cfg Config, rt runtime.ExternalRuntime) (*Orchestrator, error) {
	rt = runtime.NewRateLimitedRuntime(rt, runtime.DefaultOutboundRPCRate, runtime.DefaultOutboundRPCRate)

	store, err := durablestate.Open(cfg.DataDir + "/state")
	if err != nil {
		return nil, err
	}
	wasms, err := wasmstore.Open(cfg.DataDir + "/wasm")
	if err != nil {
		return nil, err
	}

	if !store.Initialized() {
		initArg, err := cfg.ToInitArg()
		if err != nil {
			return nil, err
		}
		if err := store.Bootstrap(initArg); err != nil {
			return nil, err
		}
	}

	version, err := wasmstore.Bootstrap(wasms, embeddedLedgerWasm, embeddedIndexWasm, embeddedArchiveWasm, rt.NowNs())
	if err != nil {
		return nil, err
	}
	if err := store.Mutate(func(a *durablestate.Aggregate) error {
		if a.PinnedVersion == nil {
			a.PinnedVersion = &durablestate.LedgerSuiteVersion{
				LedgerWasmHash:  version.LedgerWasmHash,
				IndexWasmHash:   version.IndexWasmHash,
				ArchiveWasmHash: version.ArchiveWasmHash,
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var fungibleLedger common.Principal
	if len(cfg.MinterIds) > 0 {
		// The fungible ledger used to collect creation fees and fund cycles
		// conversion (and the cycles minter) is one entry of
		// cfg.MinterIds, whichever map iteration yields first; Config has
		// no separate field naming it.
		for _, p := range cfg.MinterIds {
			fungibleLedger = p
			break
		}
	}
	ledgerAdapter := &fungibleLedgerAdapter{rt: rt, ledger: fungibleLedger}

	o := &Orchestrator{
		cfg:        cfg,
		Store:      store,
		Wasms:      wasms,
		Runtime:    rt,
		Engine:     &provisioning.Engine{Store: store, Wasms: wasms, Runtime: rt},
		Discoverer: &archives.Discoverer{Store: store, Runtime: rt},
		Cycles:     &cycles.Controller{Store: store, Runtime: rt},
		Fees: &fees.Collector{
			Store:  store,
			Ledger: ledgerAdapter,
			Self:   rt.OwnId(),
			NowNs:  rt.NowNs,
		},
		converter: &converter.Converter{
			Self:        rt.OwnId(),
			Ledger:      ledgerAdapter,
			Minter:      &cyclesMinterAdapter{rt: rt, minter: fungibleLedger},
			TransferFee: common.NewCycles(10_000),
		},
	}

	o.Scheduler = scheduler.New()
	o.Scheduler.Register(guard.TaskInstallLedgerSuites, scheduler.InstallLedgerSuiteInterval, o.Engine.RunOnce)
	o.Scheduler.Register(guard.TaskDiscoverArchives, scheduler.DiscoverArchivesInterval, o.Discoverer.RunOnce)
	o.Scheduler.Register(guard.TaskMaybeTopUp, scheduler.MaybeTopUpInterval, o.Cycles.RunOnce)
	o.Scheduler.Register(guard.TaskConvertIcpToCycles, scheduler.IcpToCyclesConversionInterval, func(ctx context.Context) error {
		_, err := o.converter.RunOnce(ctx)
		if errors.Is(err, converter.ErrZeroIcpBalance) {
			return nil
		}
		return err
	})

	if cfg.InfluxDB != nil {
		o.influx = metrics.NewInfluxReporter(cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket, map[string]string{"service": "ledger-suite-manager"})
	}

	return o, nil
}

// Start launches the scheduler, the HTTP surface, and (if configured) the
// metrics reporter. Blocks only to bind the listener; returns once
// everything is running in the background.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.Scheduler.Start(ctx)

	hub := rpcapi.NewProgressHub()
	srv := &rpcapi.Server{Store: o.Store, Fees: o.Fees, Runtime: o.Runtime, Scheduler: o.Scheduler, Progress: hub}
	o.httpServer = &http.Server{Addr: o.cfg.HTTPListenAddr, Handler: srv.Handler()}

	go func() {
		if err := o.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("orchestrator: http server stopped unexpectedly", "err", err)
		}
	}()

	if o.influx != nil {
		go o.influx.Run(ctx, 15*time.Second)
	}

	log.Info("orchestrator: started", "http_addr", o.cfg.HTTPListenAddr)
	return nil
}

// Stop shuts down the scheduler and HTTP server gracefully.
func (o *Orchestrator) Stop() error {
	o.Scheduler.Stop()
	if o.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("orchestrator: shutdown http server: %w", err)
		}
	}
	if err := o.Store.Close(); err != nil {
		return err
	}
	return o.Wasms.Close()
}
