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

package sops_test

import (
	"testing"

	"github.com/blinklabs-io/raffled/database/sops"
	"github.com/stretchr/testify/require"
)

func TestEncryptRequiresMasterKey(t *testing.T) {
	t.Setenv(sops.EnvGcpKmsResourceID, "")
	t.Setenv(sops.EnvAwsKmsKeyArns, "")
	_, err := sops.Encrypt([]byte{0x01, 0x02})
	require.ErrorIs(t, err, sops.ErrNoMasterKey)
}

func TestDecryptRejectsPlaintext(t *testing.T) {
	_, err := sops.Decrypt([]byte{0x01, 0x9b, 0x7a})
	require.Error(t, err)
}

func TestEncryptTimestampRequiresMasterKey(t *testing.T) {
	t.Setenv(sops.EnvGcpKmsResourceID, "")
	t.Setenv(sops.EnvAwsKmsKeyArns, "")
	_, err := sops.EncryptTimestamp(1700000000000)
	require.ErrorIs(t, err, sops.ErrNoMasterKey)
}

func TestDecryptTimestampRejectsPlaintext(t *testing.T) {
	_, err := sops.DecryptTimestamp([]byte("not sops"))
	require.Error(t, err)
}
