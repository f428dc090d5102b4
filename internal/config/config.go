// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/raffled/database/plugin"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "raffled.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"

	envPrefix = "raffled"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath    string        `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string        `yaml:"blobPlugin"      envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin  string        `yaml:"metadataPlugin"  envconfig:"DATABASE_METADATA_PLUGIN"`
	ShutdownTimeout string        `yaml:"shutdownTimeout" split_words:"true"`
	Tracing         bool          `yaml:"tracing"`
	TracingStdout   bool          `yaml:"tracingStdout"   split_words:"true"`
	Logging         LoggingConfig `yaml:"logging"`
	Raffle          RaffleConfig  `yaml:"raffle"`
	Oracle          OracleConfig  `yaml:"oracle"`
	Keeper          KeeperConfig  `yaml:"keeper"`
	Api             ApiConfig     `yaml:"api"`
}

// LoggingConfig controls where logs are written. Logs go to stdout when File
// is empty, otherwise to a size-rotated file
type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"  split_words:"true"`
	MaxBackups int    `yaml:"maxBackups" split_words:"true"`
	MaxAgeDays int    `yaml:"maxAgeDays" split_words:"true"`
	Compress   bool   `yaml:"compress"`
}

// RaffleConfig holds the raffle parameters. Amounts are decimal strings so
// values beyond 64 bits survive YAML and the environment
type RaffleConfig struct {
	EntranceFee          string `yaml:"entranceFee"          split_words:"true"`
	Interval             string `yaml:"interval"`
	KeyHash              string `yaml:"keyHash"              split_words:"true"`
	SubscriptionId       uint64 `yaml:"subscriptionId"       split_words:"true"`
	RequestConfirmations uint16 `yaml:"requestConfirmations" split_words:"true"`
	CallbackGasLimit     uint32 `yaml:"callbackGasLimit"     split_words:"true"`
}

type OracleConfig struct {
	BaseFee             string `yaml:"baseFee"             split_words:"true"`
	GasPriceLink        string `yaml:"gasPriceLink"        split_words:"true"`
	SubscriptionFunding string `yaml:"subscriptionFunding" split_words:"true"`
	AutoFulfill         bool   `yaml:"autoFulfill"         split_words:"true"`
	AllowOverride       bool   `yaml:"allowOverride"       split_words:"true"`
	FulfillDelay        string `yaml:"fulfillDelay"        split_words:"true"`
	Workers             int    `yaml:"workers"`
}

type KeeperConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CheckInterval string `yaml:"checkInterval" split_words:"true"`
}

type ApiConfig struct {
	Host            string `yaml:"host"`
	Port            uint   `yaml:"port"`
	TlsCertFilePath string `yaml:"tlsCertFilePath" envconfig:"TLS_CERT_FILE_PATH"`
	TlsKeyFilePath  string `yaml:"tlsKeyFilePath"  envconfig:"TLS_KEY_FILE_PATH"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".raffled",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		ShutdownTimeout: DefaultShutdownTimeout,
		Logging: LoggingConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Raffle: RaffleConfig{
			EntranceFee:      "10000000000000000",
			Interval:         "30s",
			KeyHash:          "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c",
			CallbackGasLimit: 500000,
		},
		Oracle: OracleConfig{
			AutoFulfill:  true,
			FulfillDelay: "2s",
			Workers:      4,
		},
		Keeper: KeeperConfig{
			Enabled:       true,
			CheckInterval: "5s",
		},
		Api: ApiConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

var globalConfig = defaultConfig()

// pluginSection converts a database.blob or database.metadata section into
// per-plugin option maps, returning the selected plugin name if present
func pluginSection(
	section map[string]any,
	sectionName string,
) (string, map[string]map[string]any) {
	pluginName, _ := section["plugin"].(string)
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any, len(val))
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				sectionName,
				k,
				v,
			)
		}
	}
	return pluginName, ret
}

func findConfigFile() string {
	// Check for config file in this path: ~/.raffled/raffled.yaml
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".raffled", "raffled.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/raffled/raffled.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

func loadConfigFile(configFile string) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		if err := yaml.Unmarshal(configBytes, globalConfig); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, globalConfig); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, blobConfig := pluginSection(tempCfg.Database.Blob, "blob")
			if name != "" {
				globalConfig.BlobPlugin = name
			}
			if pluginConfig["blob"] == nil {
				pluginConfig["blob"] = blobConfig
			} else {
				maps.Copy(pluginConfig["blob"], blobConfig)
			}
		}
		if tempCfg.Database.Metadata != nil {
			name, metadataConfig := pluginSection(
				tempCfg.Database.Metadata,
				"metadata",
			)
			if name != "" {
				globalConfig.MetadataPlugin = name
			}
			if pluginConfig["metadata"] == nil {
				pluginConfig["metadata"] = metadataConfig
			} else {
				maps.Copy(pluginConfig["metadata"], metadataConfig)
			}
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// LoadConfig loads defaults, then the config file (if any), then environment
// variables prefixed with RAFFLED_
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadConfigFile(configFile); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process(envPrefix, globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks that every string-encoded value parses
func (c *Config) Validate() error {
	var err error
	if _, parseErr := ParseAmount(c.Raffle.EntranceFee); parseErr != nil {
		err = errors.Join(err, fmt.Errorf("raffle.entranceFee: %w", parseErr))
	}
	if _, parseErr := ParseDuration(c.Raffle.Interval); parseErr != nil {
		err = errors.Join(err, fmt.Errorf("raffle.interval: %w", parseErr))
	}
	if _, parseErr := ParseKeyHash(c.Raffle.KeyHash); parseErr != nil {
		err = errors.Join(err, fmt.Errorf("raffle.keyHash: %w", parseErr))
	}
	for name, val := range map[string]string{
		"oracle.baseFee":             c.Oracle.BaseFee,
		"oracle.gasPriceLink":        c.Oracle.GasPriceLink,
		"oracle.subscriptionFunding": c.Oracle.SubscriptionFunding,
	} {
		if val == "" {
			continue
		}
		if _, parseErr := ParseAmount(val); parseErr != nil {
			err = errors.Join(err, fmt.Errorf("%s: %w", name, parseErr))
		}
	}
	for name, val := range map[string]string{
		"oracle.fulfillDelay":  c.Oracle.FulfillDelay,
		"keeper.checkInterval": c.Keeper.CheckInterval,
		"shutdownTimeout":      c.ShutdownTimeout,
	} {
		if _, parseErr := ParseDuration(val); parseErr != nil {
			err = errors.Join(err, fmt.Errorf("%s: %w", name, parseErr))
		}
	}
	if c.Oracle.Workers < 0 {
		err = errors.Join(
			err,
			fmt.Errorf("oracle.workers: negative value %d", c.Oracle.Workers),
		)
	}
	return err
}

// ParseAmount parses a non-negative base-10 integer amount
func ParseAmount(s string) (*big.Int, error) {
	ret, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if ret.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return ret, nil
}

// ParseDuration parses a Go duration string. An empty string is zero
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	ret, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return ret, nil
}

// ParseKeyHash parses a 0x-prefixed 32-byte hex key hash. An empty string is
// the zero hash
func ParseKeyHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid key hash %q: %w", s, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf(
			"invalid key hash length %d, expected %d",
			len(raw),
			common.HashLength,
		)
	}
	return common.BytesToHash(raw), nil
}
