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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/raffled/database/types"
)

// CommitTimestampError reports that the blob and metadata stores were last
// committed at different times, which means one of them missed a write
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

// commitTimestamps reads the last commit time of each store. A blob store
// that has never been written reports zero
func (d *Database) commitTimestamps() (metadataTs, blobTs int64, err error) {
	metadataTs, err = d.Metadata().GetCommitTimestamp()
	if err != nil {
		return 0, 0, fmt.Errorf("read metadata commit timestamp: %w", err)
	}
	blobTs, err = d.Blob().GetCommitTimestamp()
	if errors.Is(err, types.ErrBlobKeyNotFound) {
		return metadataTs, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read blob commit timestamp: %w", err)
	}
	return metadataTs, blobTs, nil
}

func (d *Database) checkCommitTimestamp() error {
	metadataTs, blobTs, err := d.commitTimestamps()
	if err != nil {
		return err
	}
	if metadataTs != blobTs {
		return CommitTimestampError{
			MetadataTimestamp: metadataTs,
			BlobTimestamp:     blobTs,
		}
	}
	return nil
}

func (d *Database) updateCommitTimestamp(txn *Txn, ts int64) error {
	if err := d.Metadata().SetCommitTimestamp(ts, txn.Metadata()); err != nil {
		return err
	}
	return d.Blob().SetCommitTimestamp(ts, txn.Blob())
}

// RecoverCommitTimestamp realigns the commit timestamps of both stores after a
// partial commit. The raffle snapshot in the blob store is authoritative, so
// only the history record of the interrupted operation can be missing
func (d *Database) RecoverCommitTimestamp() error {
	err := d.checkCommitTimestamp()
	if err == nil {
		return nil
	}
	var tsErr CommitTimestampError
	if !errors.As(err, &tsErr) {
		return err
	}
	d.logger.Warn(
		"realigning commit timestamps",
		"component", "database",
		"metadata_timestamp", tsErr.MetadataTimestamp,
		"blob_timestamp", tsErr.BlobTimestamp,
	)
	// An empty read-write commit stamps both stores
	return NewTxn(d, true).Do(func(*Txn) error { return nil })
}
