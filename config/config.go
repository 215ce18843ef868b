//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package config implements the code generation and dispatch
// configuration of a party.
package config

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/types"
)

// Backend names.
const (
	BackendPython = "python"
	BackendSpark  = "spark"
	BackendJiff   = "jiff"
	BackendOblivc = "oblivc"
)

// LocalBackends list the backends for local cleartext jobs.
var LocalBackends = map[string]bool{
	BackendPython: true,
	BackendSpark:  true,
}

// MPCBackends list the backends for multi-party jobs.
var MPCBackends = map[string]bool{
	BackendJiff:   true,
	BackendOblivc: true,
}

// Duration is a time.Duration that is encoded as a duration string
// such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Python configures the Python backend.
type Python struct {
	Executable string `toml:"executable"`
}

// Spark configures the Spark backend.
type Spark struct {
	Master string `toml:"master"`
	Submit string `toml:"submit"`
}

// Jiff configures the JIFF backend.
type Jiff struct {
	Path       string        `toml:"path"`
	Node       string        `toml:"node"`
	ServerPID  types.PartyID `toml:"server_pid"`
	ServerIP   string        `toml:"server_ip"`
	ServerPort int           `toml:"server_port"`
}

// Oblivc configures the Obliv-C backend.
type Oblivc struct {
	Compiler string `toml:"compiler"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
}

// Dispatch configures the job dispatcher.
type Dispatch struct {
	RendezvousTimeout Duration `toml:"rendezvous_timeout"`
	// Addresses map party IDs to their rendezvous addresses.
	Addresses   map[string]string `toml:"addresses"`
	Coordinator types.PartyID     `toml:"coordinator"`
}

// Config defines the configuration of a party. Config must not be
// modified after being passed to the compiler or dispatcher.
type Config struct {
	Name         string          `toml:"name"`
	PID          types.PartyID   `toml:"pid"`
	AllPIDs      []types.PartyID `toml:"all_pids"`
	UseLeakyOps  bool            `toml:"use_leaky_ops"`
	CodePath     string          `toml:"code_path"`
	InputPath    string          `toml:"input_path"`
	OutputPath   string          `toml:"output_path"`
	LocalBackend string          `toml:"local_backend"`
	MPCBackend   string          `toml:"mpc_backend"`
	Python       Python          `toml:"python"`
	Spark        Spark           `toml:"spark"`
	Jiff         Jiff            `toml:"jiff"`
	Oblivc       Oblivc          `toml:"oblivc"`
	Dispatch     Dispatch        `toml:"dispatch"`
}

// New returns a new configuration, initialized with the default
// values.
func New() *Config {
	return &Config{
		Name:         "workflow",
		PID:          1,
		AllPIDs:      []types.PartyID{1, 2},
		CodePath:     "/tmp/conclave/code",
		InputPath:    "/tmp/conclave/input",
		OutputPath:   "/tmp/conclave/output",
		LocalBackend: BackendPython,
		MPCBackend:   BackendJiff,
		Python: Python{
			Executable: "python3",
		},
		Spark: Spark{
			Master: "local",
			Submit: "spark-submit",
		},
		Jiff: Jiff{
			Path:       "/opt/jiff",
			Node:       "node",
			ServerPID:  1,
			ServerIP:   "localhost",
			ServerPort: 9000,
		},
		Oblivc: Oblivc{
			Compiler: "oblivcc",
			Host:     "localhost",
			Port:     9001,
		},
		Dispatch: Dispatch{
			RendezvousTimeout: Duration{30 * time.Second},
			Addresses:         make(map[string]string),
		},
	}
}

// Load loads the configuration file over the default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Decode decodes the TOML configuration over the default values and
// validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := New()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Newf("config: unknown key %s", undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes the configuration in TOML.
func (cfg *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Parties returns all parties.
func (cfg *Config) Parties() types.Parties {
	return types.NewParties(cfg.AllPIDs...)
}

// Coordinator returns the coordinating party of multi-party jobs.
func (cfg *Config) Coordinator() types.PartyID {
	if cfg.Dispatch.Coordinator != 0 {
		return cfg.Dispatch.Coordinator
	}
	if cfg.MPCBackend == BackendJiff {
		return cfg.Jiff.ServerPID
	}
	return cfg.Parties().Min()
}

// Address returns the rendezvous address of the party.
func (cfg *Config) Address(pid types.PartyID) (string, bool) {
	addr, ok := cfg.Dispatch.Addresses[pid.String()]
	return addr, ok
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if len(cfg.Name) == 0 {
		return errors.New("config: empty workflow name")
	}
	if len(cfg.AllPIDs) == 0 {
		return errors.New("config: no parties")
	}
	seen := make(map[types.PartyID]bool)
	for _, pid := range cfg.AllPIDs {
		if pid <= 0 {
			return errors.Newf("config: invalid party ID %d", pid)
		}
		if seen[pid] {
			return errors.Newf("config: duplicate party ID %d", pid)
		}
		seen[pid] = true
	}
	if !seen[cfg.PID] {
		return errors.Newf("config: pid %d not in all_pids %v",
			cfg.PID, cfg.AllPIDs)
	}
	if !LocalBackends[cfg.LocalBackend] {
		return errors.Newf("config: unknown local backend %q",
			cfg.LocalBackend)
	}
	if !MPCBackends[cfg.MPCBackend] {
		return errors.Newf("config: unknown MPC backend %q", cfg.MPCBackend)
	}
	if cfg.MPCBackend == BackendJiff && !seen[cfg.Jiff.ServerPID] {
		return errors.Newf("config: jiff server_pid %d not in all_pids",
			cfg.Jiff.ServerPID)
	}
	if cfg.Dispatch.Coordinator != 0 && !seen[cfg.Dispatch.Coordinator] {
		return errors.Newf("config: coordinator %d not in all_pids",
			cfg.Dispatch.Coordinator)
	}
	if cfg.Dispatch.RendezvousTimeout.Duration <= 0 {
		return errors.Newf("config: invalid rendezvous timeout %s",
			cfg.Dispatch.RendezvousTimeout)
	}
	for key := range cfg.Dispatch.Addresses {
		pid, err := strconv.Atoi(key)
		if err != nil || !seen[types.PartyID(pid)] {
			return errors.Newf("config: address for unknown party %s", key)
		}
	}
	return nil
}
