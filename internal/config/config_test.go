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
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig() {
	globalConfig = defaultConfig()
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "raffled.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0o600))
	return tmpFile
}

func TestLoadConfigDefaults(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfigFile(t *testing.T) {
	resetGlobalConfig()
	tmpFile := writeConfigFile(t, `
databasePath: "/var/lib/raffled"
shutdownTimeout: "10s"
raffle:
  entranceFee: "100"
  interval: "1m"
  subscriptionId: 7
  callbackGasLimit: 250000
oracle:
  autoFulfill: false
  allowOverride: true
  baseFee: "0"
keeper:
  checkInterval: "1s"
api:
  host: "127.0.0.1"
  port: 9000
logging:
  file: "/var/log/raffled.log"
`)
	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	expected := defaultConfig()
	expected.DatabasePath = "/var/lib/raffled"
	expected.ShutdownTimeout = "10s"
	expected.Raffle.EntranceFee = "100"
	expected.Raffle.Interval = "1m"
	expected.Raffle.SubscriptionId = 7
	expected.Raffle.CallbackGasLimit = 250000
	expected.Oracle.AutoFulfill = false
	expected.Oracle.AllowOverride = true
	expected.Oracle.BaseFee = "0"
	expected.Keeper.CheckInterval = "1s"
	expected.Api.Host = "127.0.0.1"
	expected.Api.Port = 9000
	expected.Logging.File = "/var/log/raffled.log"
	assert.Equal(t, expected, cfg)
}

func TestLoadConfigSection(t *testing.T) {
	resetGlobalConfig()
	tmpFile := writeConfigFile(t, `
config:
  raffle:
    entranceFee: "250"
database:
  blob:
    plugin: "gcs"
  metadata:
    plugin: "postgres"
`)
	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "250", cfg.Raffle.EntranceFee)
	// Defaults survive the overlay
	assert.Equal(t, "30s", cfg.Raffle.Interval)
	assert.Equal(t, "gcs", cfg.BlobPlugin)
	assert.Equal(t, "postgres", cfg.MetadataPlugin)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	resetGlobalConfig()
	tmpFile := writeConfigFile(t, `
raffle:
  entranceFee: "100"
api:
  port: 9000
`)
	t.Setenv("RAFFLED_RAFFLE_ENTRANCE_FEE", "500")
	t.Setenv("RAFFLED_API_PORT", "9100")
	t.Setenv("RAFFLED_DATABASE_BLOB_PLUGIN", "s3")
	t.Setenv("TLS_CERT_FILE_PATH", "cert.pem")
	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "500", cfg.Raffle.EntranceFee)
	assert.Equal(t, uint(9100), cfg.Api.Port)
	assert.Equal(t, "s3", cfg.BlobPlugin)
	assert.Equal(t, "cert.pem", cfg.Api.TlsCertFilePath)
}

func TestLoadConfigErrors(t *testing.T) {
	resetGlobalConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	resetGlobalConfig()
	_, err = LoadConfig(writeConfigFile(t, "raffle: [not, a, map]"))
	require.Error(t, err)

	resetGlobalConfig()
	_, err = LoadConfig(writeConfigFile(t, `
raffle:
  entranceFee: "-1"
  interval: "soon"
`))
	require.ErrorContains(t, err, "raffle.entranceFee")
	require.ErrorContains(t, err, "raffle.interval")
	resetGlobalConfig()
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Oracle.SubscriptionFunding = "lots"
	cfg.Keeper.CheckInterval = "-1s"
	cfg.Raffle.KeyHash = "0x1234"
	cfg.Oracle.Workers = -1
	err := cfg.Validate()
	require.ErrorContains(t, err, "oracle.subscriptionFunding")
	require.ErrorContains(t, err, "keeper.checkInterval")
	require.ErrorContains(t, err, "raffle.keyHash")
	require.ErrorContains(t, err, "oracle.workers")
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("100000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", v.String())
	for _, s := range []string{"", "-5", "1.5", "0x10"} {
		_, err := ParseAmount(s)
		require.Error(t, err, "input=%q", s)
	}
}

func TestParseKeyHash(t *testing.T) {
	h, err := ParseKeyHash("")
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, h)
	raw := "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"
	h, err = ParseKeyHash(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, h.Hex())
	_, err = ParseKeyHash("474e34a0")
	require.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
