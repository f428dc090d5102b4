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

package badger

import (
	"github.com/blinklabs-io/raffled/database/types"
)

func (d *BlobStoreBadger) GetCommitTimestamp() (int64, error) {
	txn := d.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := d.Get(txn, []byte(types.CommitTimestampKey))
	if err != nil {
		return 0, err
	}
	return types.DecodeTimestamp(val)
}

func (d *BlobStoreBadger) SetCommitTimestamp(ts int64, txn types.Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return d.Set(txn, []byte(types.CommitTimestampKey), types.EncodeTimestamp(ts))
}
