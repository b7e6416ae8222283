// Package orchestrator wires together the ten components into a running
// process: it owns the durable-state/wasm-store handles, constructs each
// task engine, registers them on the Scheduler, and serves the public RPC
// surface. This plays the same role the teacher's node.Node does for
// go-ethereum's services, minus the P2P stack.
package orchestrator

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/appic-solutions/ledger-suite-manager/common"
	"github.com/appic-solutions/ledger-suite-manager/internal/durablestate"
	"github.com/appic-solutions/ledger-suite-manager/internal/runtime"
)

// Config is the on-disk configuration file (BurntSushi/toml, the
// teacher's own config format) loaded at startup; it supplies the values
// spec.md's InitArg otherwise receives over the wire at canister install
// time.
type Config struct {
	DataDir string `toml:"data_dir"`

	OwnPrincipal string `toml:"own_principal"`

	MoreControllerIds []string          `toml:"more_controller_ids"`
	MinterIds         map[string]string `toml:"minter_ids"` // chain_id (decimal string) -> principal hex

	TwinLsCreationFeeIcpToken   uint64  `toml:"twin_ls_creation_fee_icp_token"`
	TwinLsCreationFeeAppicToken *uint64 `toml:"twin_ls_creation_fee_appic_token,omitempty"`

	CyclesManagement *struct {
		CyclesForLedgerCreation  uint64 `toml:"cycles_for_ledger_creation"`
		CyclesForIndexCreation   uint64 `toml:"cycles_for_index_creation"`
		CyclesForArchiveCreation uint64 `toml:"cycles_for_archive_creation"`
		CyclesTopUpIncrement     uint64 `toml:"cycles_top_up_increment"`
	} `toml:"cycles_management,omitempty"`

	HTTPListenAddr string `toml:"http_listen_addr"`

	InfluxDB *struct {
		URL    string `toml:"url"`
		Token  string `toml:"token"`
		Org    string `toml:"org"`
		Bucket string `toml:"bucket"`
	} `toml:"influxdb,omitempty"`
}

// LoadConfig reads and parses a TOML config file from path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("orchestrator: read config: %w", err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("orchestrator: parse config: %w", err)
	}
	return cfg, nil
}

// ToInitArg converts the loaded Config into the durablestate.InitArg
// Bootstrap consumes on first run (spec.md §6).
func (c Config) ToInitArg() (durablestate.InitArg, error) {
	arg := durablestate.InitArg{
		MinterIds:                 make(map[uint64]common.Principal, len(c.MinterIds)),
		TwinLsCreationFeeIcpToken: c.TwinLsCreationFeeIcpToken,
		TwinLsCreationFeeAppicToken: c.TwinLsCreationFeeAppicToken,
	}
	for _, s := range c.MoreControllerIds {
		p, err := common.ParsePrincipal(s)
		if err != nil {
			return arg, fmt.Errorf("orchestrator: more_controller_ids: %w", err)
		}
		arg.MoreControllerIds = append(arg.MoreControllerIds, p)
	}
	for chainIdStr, principalStr := range c.MinterIds {
		var chainId uint64
		if _, err := fmt.Sscanf(chainIdStr, "%d", &chainId); err != nil {
			return arg, fmt.Errorf("orchestrator: minter_ids key %q: %w", chainIdStr, err)
		}
		p, err := common.ParsePrincipal(principalStr)
		if err != nil {
			return arg, fmt.Errorf("orchestrator: minter_ids value: %w", err)
		}
		arg.MinterIds[chainId] = p
	}
	if c.CyclesManagement != nil {
		cm := runtime.CyclesManagement{
			CyclesForLedgerCreation:  common.NewCycles(c.CyclesManagement.CyclesForLedgerCreation),
			CyclesForIndexCreation:   common.NewCycles(c.CyclesManagement.CyclesForIndexCreation),
			CyclesForArchiveCreation: common.NewCycles(c.CyclesManagement.CyclesForArchiveCreation),
			CyclesTopUpIncrement:     common.NewCycles(c.CyclesManagement.CyclesTopUpIncrement),
		}
		arg.CyclesManagement = &cm
	}
	return arg, nil
}
