/*
 * Copyright 2018 The CovenantSQL Authors.
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

// Package conf loads the ledger node configuration.
package conf

import (
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/ledgercore/ledgercore/blockstore"
	"github.com/ledgercore/ledgercore/utils/log"
)

// Defaults applied to absent settings.
const (
	DefaultBlockStoreKind = blockstore.KindFlat
	DefaultBlockStorePath = "blocks"
	DefaultBackend        = "sqlite"
	DefaultSQLiteDSN      = "wsv.db"
	DefaultLogLevel       = "info"
	DefaultFailurePolicy  = RollbackBlock
)

// FailurePolicy decides what a command failing with a constraint violation or a missing
// reference does to the block carrying it.
type FailurePolicy string

const (
	// RollbackBlock discards the whole block, nothing of it is stored or applied.
	RollbackBlock FailurePolicy = "block"
	// RejectCommand rolls back only the failing command and applies the rest.
	RejectCommand FailurePolicy = "command"
)

// BlockStoreConfig selects the block log medium.
type BlockStoreConfig struct {
	Kind string `yaml:"Kind"`
	// Path is a directory for flat and leveldb stores, a file for bolt stores.
	Path string `yaml:"Path"`
}

// WorldStateConfig selects the world state backend by registry name.
type WorldStateConfig struct {
	Backend string `yaml:"Backend"`
	DSN     string `yaml:"DSN"`
}

// Config holds all the config read from yaml config file.
type Config struct {
	// WorkingRoot anchors relative paths, defaults to the config file directory.
	WorkingRoot string `yaml:"WorkingRoot"`
	LogLevel    string `yaml:"LogLevel"`
	// MetricsAddr enables the prometheus endpoint when set.
	MetricsAddr string `yaml:"MetricsAddr"`

	// FailurePolicy is "block" or "command".
	FailurePolicy FailurePolicy `yaml:"FailurePolicy"`

	BlockStore BlockStoreConfig `yaml:"BlockStore"`
	WorldState WorldStateConfig `yaml:"WorldState"`
}

// GConf is the global config pointer.
var GConf *Config

// LoadConfig loads config from configPath.
func LoadConfig(configPath string) (config *Config, err error) {
	configBytes, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.WithError(err).Error("read config file failed")
		return
	}
	config = &Config{}
	if err = yaml.UnmarshalStrict(configBytes, config); err != nil {
		log.WithError(err).Error("unmarshal config file failed")
		return nil, errors.Wrapf(err, "parse %s", configPath)
	}
	if config.WorkingRoot == "" {
		config.WorkingRoot = filepath.Dir(configPath)
	}
	config.SetDefaults()
	if err = config.Validate(); err != nil {
		log.WithError(err).Error("invalid config")
		return nil, err
	}
	return
}

// SetDefaults fills absent settings and resolves relative paths against WorkingRoot.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = DefaultFailurePolicy
	}
	if c.BlockStore.Kind == "" {
		c.BlockStore.Kind = DefaultBlockStoreKind
	}
	if c.BlockStore.Path == "" {
		c.BlockStore.Path = DefaultBlockStorePath
	}
	if c.WorldState.Backend == "" {
		c.WorldState.Backend = DefaultBackend
	}
	if c.WorldState.Backend == DefaultBackend && c.WorldState.DSN == "" {
		c.WorldState.DSN = DefaultSQLiteDSN
	}
	if c.BlockStore.Kind != blockstore.KindMemory {
		c.BlockStore.Path = c.resolve(c.BlockStore.Path)
	}
	if c.WorldState.Backend == DefaultBackend {
		c.WorldState.DSN = c.resolve(c.WorldState.DSN)
	}
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.WorkingRoot == "" {
		return path
	}
	return filepath.Join(c.WorkingRoot, path)
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.BlockStore.Kind {
	case blockstore.KindFlat, blockstore.KindLevelDB, blockstore.KindBolt, blockstore.KindMemory:
	default:
		return errors.Wrapf(blockstore.ErrUnknownKind, "block store kind %q", c.BlockStore.Kind)
	}
	switch c.FailurePolicy {
	case RollbackBlock, RejectCommand:
	default:
		return errors.Errorf("unknown failure policy %q", c.FailurePolicy)
	}
	if c.WorldState.DSN == "" {
		return errors.Errorf("world state backend %s needs a DSN", c.WorldState.Backend)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	return nil
}
