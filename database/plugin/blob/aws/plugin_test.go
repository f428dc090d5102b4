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

package aws_test

import (
	"testing"

	"github.com/blinklabs-io/raffled/database/plugin"
	"github.com/blinklabs-io/raffled/database/plugin/blob/aws"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDataDir(t *testing.T) {
	store, err := aws.New("s3://raffle-bucket/draws/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "raffle-bucket", store.Bucket())

	_, err = aws.New("/var/lib/raffled", nil, nil)
	require.Error(t, err)
	_, err = aws.New("s3://", nil, nil)
	require.Error(t, err)
}

func TestStartRequiresBucket(t *testing.T) {
	store, err := aws.NewWithOptions(aws.WithRegion("us-east-1"))
	require.NoError(t, err)
	require.Error(t, store.Start())
}

func TestOperationsBeforeStart(t *testing.T) {
	store, err := aws.NewWithOptions(aws.WithBucket("raffle-bucket"))
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	_, err = store.Get(txn, []byte(types.RaffleStateKey))
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
	require.ErrorIs(t, store.Set(txn, []byte("k"), []byte("v")), types.ErrBlobStoreUnavailable)
	iter := store.NewIterator(txn, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	require.Error(t, iter.Err())
	_, err = store.Get(nil, []byte("k"))
	require.ErrorIs(t, err, types.ErrNilTxn)
}

func TestPluginRegistered(t *testing.T) {
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "s3", "bucket", "raffle-bucket"))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "s3", "timeout", 5))
	p := plugin.GetPlugin(plugin.PluginTypeBlob, "s3")
	require.NotNil(t, p)
	_, ok := p.(*aws.BlobStoreS3)
	assert.True(t, ok)
}
