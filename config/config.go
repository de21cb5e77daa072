// Package config loads cell-wide configuration: a TOML file overridden by
// environment variables, with an optional `.env` file sourced first in
// development builds. Grounded on the teacher's own config loading
// approach (a typed Config struct populated from file then env, jsonisms
// aside) and on `joho/godotenv`'s conventional
// "load .env into process env before anything else reads it" pattern.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/cellmesh/cell/cmn/nlog"
)

// Config is the full set of knobs spec.md §6 names as environment
// variables, plus the Prometheus exporter address this module's
// expansion adds.
type Config struct {
	RuntimeDir    string `toml:"runtime_dir"`
	DNADir        string `toml:"dna_dir"`
	SchemaDir     string `toml:"schema_dir"`
	IdleSecs      int    `toml:"idle_secs"`
	MaxFrameBytes int    `toml:"max_frame_bytes"`
	RemotePort    int    `toml:"remote_port"`
	PromAddr      string `toml:"prom_addr"`
}

// Default returns the built-in defaults used when neither a file nor an
// environment variable supplies a value: $HOME/.cell/{run,dna,schema} and
// remote port 4433, matching the unprivileged, per-user layout.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := home + "/.cell"
	return Config{
		RuntimeDir:    base + "/run",
		DNADir:        base + "/dna",
		SchemaDir:     base + "/schema",
		IdleSecs:      30,
		MaxFrameBytes: 64 << 20,
		RemotePort:    4433,
		PromAddr:      "",
	}
}

// Load reads a TOML file at path (if it exists), applies environment
// variable overrides, and returns the resulting Config. loadDotEnv, when
// true, sources a `.env` file from the working directory first (dev
// builds only — never in cmd/stem's production entrypoint without an
// explicit flag).
func Load(path string, loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			nlog.Warningf("config: loading .env: %v", err)
		}
	}

	cfg := Default()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CELL_RUNTIME_DIR"); v != "" {
		cfg.RuntimeDir = v
	}
	if v := os.Getenv("CELL_DNA_DIR"); v != "" {
		cfg.DNADir = v
	}
	if v := os.Getenv("CELL_SCHEMA_DIR"); v != "" {
		cfg.SchemaDir = v
	}
	if v := os.Getenv("CELL_IDLE_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IdleSecs = n
		}
	}
	if v := os.Getenv("CELL_MAX_FRAME_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFrameBytes = n
		}
	}
	if v := os.Getenv("CELL_REMOTE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RemotePort = n
		}
	}
	if v := os.Getenv("CELL_PROM_ADDR"); v != "" {
		cfg.PromAddr = v
	}
}
