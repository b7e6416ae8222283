// Command ledger-suite-manager runs the orchestrator as a standalone
// process: it loads a TOML config, locks its data directory, wires a
// runtime.ExternalRuntime, and serves the RPC surface until signalled to
// stop. A `status` subcommand queries a running instance's /get_lsm_info
// endpoint and prints it as a table.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
	"github.com/appic-solutions/ledger-suite-manager/log"
	"github.com/appic-solutions/ledger-suite-manager/orchestrator"
	"github.com/appic-solutions/ledger-suite-manager/rpcapi"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Usage:    "path to the orchestrator's TOML config file",
	Required: true,
}

var rpcAddrFlag = &cli.StringFlag{
	Name:  "rpc-addr",
	Usage: "address of a running orchestrator's RPC surface",
	Value: "http://127.0.0.1:8645",
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) { log.Debug(fmt.Sprintf(format, a...)) })); err != nil {
		log.Warn("main: failed to set GOMAXPROCS", "err", err)
	}

	app := &cli.App{
		Name:  "ledger-suite-manager",
		Usage: "provisions and maintains per-token ledger/index/archive canister suites",
		Commands: []*cli.Command{
			runCommand,
			statusCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("main: fatal error", "err", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "start the orchestrator and block until terminated",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		cfg, err := orchestrator.LoadConfig(c.String("config"))
		if err != nil {
			return err
		}

		lock := flock.New(cfg.DataDir + "/.lock")
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("main: acquire data dir lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("main: data dir %q is already locked by another process", cfg.DataDir)
		}
		defer lock.Unlock()

		self, err := common.ParsePrincipal(cfg.OwnPrincipal)
		if err != nil {
			return fmt.Errorf("main: own_principal: %w", err)
		}

		// No IC-agent client library exists in this module's dependency
		// pack (see DESIGN.md), so the dev-mode in-process fabric stands in
		// for a live one. A production deployment supplies its own
		// runtime.ExternalRuntime here.
		rt := runtime.NewDevRuntime(self, common.NewCycles(1_000_000_000_000_000))

		o, err := orchestrator.New(cfg, rt)
		if err != nil {
			return fmt.Errorf("main: construct orchestrator: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := o.Start(ctx); err != nil {
			return fmt.Errorf("main: start orchestrator: %w", err)
		}

		log.Info("main: orchestrator running, press ctrl-c to stop")
		<-ctx.Done()

		log.Info("main: shutting down")
		return o.Stop()
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "query a running orchestrator's get_lsm_info endpoint",
	Flags: []cli.Flag{rpcAddrFlag},
	Action: func(c *cli.Context) error {
		resp, err := http.Get(c.String("rpc-addr") + "/get_lsm_info")
		if err != nil {
			return fmt.Errorf("main: query get_lsm_info: %w", err)
		}
		defer resp.Body.Close()

		var info rpcapi.LedgerManagerInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return fmt.Errorf("main: decode get_lsm_info response: %w", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Managed suites", "Pending installs", "Failed installs", "Pinned version"})
		table.Append([]string{
			fmt.Sprint(info.ManagedSuites),
			fmt.Sprint(info.PendingInstalls),
			fmt.Sprint(info.FailedInstalls),
			info.PinnedVersion,
		})
		table.Render()
		return nil
	},
}
