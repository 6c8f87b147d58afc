/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config holds the ambient tunables maelnode leaves to the
operator: RPC deadlines, election/step-down jitter bounds, replication
cadence, and cache sizing. It never holds anything the wire protocol
fixes (node ids and topology come from the Maelstrom "init" message,
not here).

Config is loaded by value and threaded explicitly through each cmd/
entrypoint rather than reached through a package global, matching the
same "avoid untyped globals" approach used in internal/logging.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds maelnode's ambient, non-protocol tunables.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogJSON, when true, asks the logger for machine-parseable output.
	// maelnode's logr/stdr backend only supports text, so this is kept
	// for config-surface parity with flydb, but New() ignores it.
	LogJSON bool `yaml:"log_json"`

	// RPCTimeout bounds how long a node waits for a reply to an
	// outbound send_rpc/broadcast_rpc call before treating it as lost.
	RPCTimeout time.Duration `yaml:"rpc_timeout"`

	// ElectionTimeoutMin/Max bound the randomized follower election
	// timer: each election round picks a fresh duration uniformly in
	// [Min, Max).
	ElectionTimeoutMin time.Duration `yaml:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `yaml:"election_timeout_max"`

	// HeartbeatInterval is how often a leader sends empty AppendEntries
	// to each follower absent new entries to replicate.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// ReplicationPollInterval is the cadence at which the leader's
	// replication loop checks each follower for entries to send.
	ReplicationPollInterval time.Duration `yaml:"replication_poll_interval"`

	// ApplyPollInterval is the cadence of the commit-index-to-state-machine
	// apply pump.
	ApplyPollInterval time.Duration `yaml:"apply_poll_interval"`

	// ThunkCacheSize bounds the number of cached thunks (internal/txnstore)
	// and cached lin-kv reads (internal/kvclient) rather than letting
	// either grow unbounded.
	ThunkCacheSize int64 `yaml:"thunk_cache_size"`

	// ConfigFile records the path Config was loaded from, if any.
	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns the node's out-of-the-box ambient constants.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:                "info",
		LogJSON:                 false,
		RPCTimeout:              5 * time.Second,
		ElectionTimeoutMin:      3 * time.Second,
		ElectionTimeoutMax:      12 * time.Second,
		HeartbeatInterval:       1 * time.Second,
		ReplicationPollInterval: 50 * time.Millisecond,
		ApplyPollInterval:       10 * time.Millisecond,
		ThunkCacheSize:          10000,
	}
}

// Validate checks the config for internally-consistent values. It does
// not reach out to the filesystem or network.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("config: rpc_timeout must be positive")
	}
	if c.ElectionTimeoutMin <= 0 || c.ElectionTimeoutMax <= 0 {
		return fmt.Errorf("config: election timeouts must be positive")
	}
	if c.ElectionTimeoutMin >= c.ElectionTimeoutMax {
		return fmt.Errorf("config: election_timeout_min must be less than election_timeout_max")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: heartbeat_interval must be positive")
	}
	if c.HeartbeatInterval >= c.ElectionTimeoutMin {
		return fmt.Errorf("config: heartbeat_interval must be smaller than election_timeout_min")
	}
	if c.ReplicationPollInterval <= 0 {
		return fmt.Errorf("config: replication_poll_interval must be positive")
	}
	if c.ApplyPollInterval <= 0 {
		return fmt.Errorf("config: apply_poll_interval must be positive")
	}
	if c.ThunkCacheSize <= 0 {
		return fmt.Errorf("config: thunk_cache_size must be positive")
	}
	return nil
}

// String renders a human-readable one-line summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{LogLevel: %s, LogJSON: %v, RPCTimeout: %s, Election: [%s,%s), Heartbeat: %s, ThunkCacheSize: %d}",
		c.LogLevel, c.LogJSON, c.RPCTimeout, c.ElectionTimeoutMin, c.ElectionTimeoutMax,
		c.HeartbeatInterval, c.ThunkCacheSize,
	)
}

// Load reads a YAML config file on top of DefaultConfig(), so a partial
// file only needs to name the fields it overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.ConfigFile = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
