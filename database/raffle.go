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
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/blinklabs-io/raffled/database/models"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

type pendingRecord struct {
	_         struct{} `cbor:",toarray"`
	RequestID uint64
	Round     uint64
	IssuedAt  int64
}

type snapshotRecord struct {
	_            struct{} `cbor:",toarray"`
	Round        uint64
	Entrants     [][]byte
	Balance      *big.Int
	LastDrawAt   int64
	RecentWinner []byte
	Pending      *pendingRecord
}

type receiptRecord struct {
	_           struct{} `cbor:",toarray"`
	Round       uint64
	RequestID   uint64
	RandomWord  *big.Int
	WinnerIndex uint64
	Winner      []byte
	Prize       *big.Int
	Entrants    [][]byte
	Timestamp   int64
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func encodeAddresses(addrs []raffle.Address) [][]byte {
	ret := make([][]byte, 0, len(addrs))
	for _, addr := range addrs {
		ret = append(ret, addr.Bytes())
	}
	return ret
}

func decodeAddresses(raw [][]byte) ([]raffle.Address, error) {
	ret := make([]raffle.Address, 0, len(raw))
	for _, tmp := range raw {
		if len(tmp) != common.AddressLength {
			return nil, fmt.Errorf("invalid address length: %d", len(tmp))
		}
		ret = append(ret, common.BytesToAddress(tmp))
	}
	return ret, nil
}

func encodeSnapshot(s *raffle.Snapshot) ([]byte, error) {
	rec := snapshotRecord{
		Round:        s.Round,
		Entrants:     encodeAddresses(s.Entrants),
		Balance:      new(big.Int),
		LastDrawAt:   unixNano(s.LastDrawAt),
		RecentWinner: s.RecentWinner.Bytes(),
	}
	if s.Balance != nil {
		rec.Balance.Set(s.Balance)
	}
	if s.Pending != nil {
		rec.Pending = &pendingRecord{
			RequestID: uint64(s.Pending.RequestID),
			Round:     s.Pending.Round,
			IssuedAt:  unixNano(s.Pending.IssuedAt),
		}
	}
	return cbor.Marshal(rec)
}

func decodeSnapshot(data []byte) (*raffle.Snapshot, error) {
	var rec snapshotRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode raffle snapshot: %w", err)
	}
	entrants, err := decodeAddresses(rec.Entrants)
	if err != nil {
		return nil, fmt.Errorf("decode raffle snapshot: %w", err)
	}
	ret := &raffle.Snapshot{
		Round:        rec.Round,
		Entrants:     entrants,
		Balance:      new(big.Int),
		LastDrawAt:   fromUnixNano(rec.LastDrawAt),
		RecentWinner: common.BytesToAddress(rec.RecentWinner),
	}
	if rec.Balance != nil {
		ret.Balance.Set(rec.Balance)
	}
	if rec.Pending != nil {
		ret.Pending = &raffle.PendingRequest{
			RequestID: raffle.RequestID(rec.Pending.RequestID),
			Round:     rec.Pending.Round,
			IssuedAt:  fromUnixNano(rec.Pending.IssuedAt),
		}
	}
	return ret, nil
}

// PersistRaffle implements raffle.Journal. The snapshot, history rows, and
// draw receipt are written in one transaction, and effect runs last so that
// its failure discards all of them
func (d *Database) PersistRaffle(
	ctx context.Context,
	change *raffle.Change,
	effect func() error,
) error {
	if change == nil || change.Snapshot == nil {
		return errors.New("raffle change has no snapshot")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshotData, err := encodeSnapshot(change.Snapshot)
	if err != nil {
		return err
	}
	txn := d.Transaction(true)
	defer txn.Release()
	return txn.Do(func(txn *Txn) error {
		if err := d.Blob().Set(txn.Blob(), []byte(types.RaffleStateKey), snapshotData); err != nil {
			return fmt.Errorf("store raffle snapshot: %w", err)
		}
		if change.Entry != nil {
			if err := d.addEntry(change.Entry, txn); err != nil {
				return err
			}
		}
		if change.Request != nil {
			if err := d.addRequest(change.Request, txn); err != nil {
				return err
			}
		}
		if change.Draw != nil {
			if err := d.addDraw(change.Draw, txn); err != nil {
				return err
			}
		}
		if effect != nil {
			return effect()
		}
		return nil
	})
}

func (d *Database) addEntry(rec *raffle.EntryRecord, txn *Txn) error {
	tmpEntry := &models.RaffleEntry{
		Round:     rec.Round,
		Position:  rec.Index,
		Address:   rec.Address.Bytes(),
		Amount:    types.NewBigInt(rec.Amount),
		CreatedAt: rec.Timestamp,
	}
	if err := d.Metadata().AddEntry(tmpEntry, txn.Metadata()); err != nil {
		return fmt.Errorf("store raffle entry: %w", err)
	}
	return nil
}

func (d *Database) addRequest(rec *raffle.RequestRecord, txn *Txn) error {
	tmpReq := &models.RandomnessRequest{
		RequestID:   types.Uint64(rec.RequestID),
		Round:       rec.Round,
		NumEntrants: rec.NumEntrants,
		CreatedAt:   rec.Timestamp,
	}
	if err := d.Metadata().AddRequest(tmpReq, txn.Metadata()); err != nil {
		return fmt.Errorf("store randomness request: %w", err)
	}
	return nil
}

func (d *Database) addDraw(rec *raffle.DrawRecord, txn *Txn) error {
	// A request can only be consumed once
	if err := d.Metadata().MarkRequestFulfilled(
		uint64(rec.RequestID),
		rec.Timestamp,
		txn.Metadata(),
	); err != nil {
		return fmt.Errorf(
			"mark request %d fulfilled: %w",
			uint64(rec.RequestID),
			err,
		)
	}
	tmpDraw := &models.RaffleDraw{
		Round:       rec.Round,
		RequestID:   types.Uint64(rec.RequestID),
		RandomWord:  types.NewBigInt(rec.RandomWord),
		WinnerIndex: rec.WinnerIndex,
		Winner:      rec.Winner.Bytes(),
		Prize:       types.NewBigInt(rec.Prize),
		NumEntrants: rec.NumEntrants,
		CreatedAt:   rec.Timestamp,
	}
	if err := d.Metadata().AddDraw(tmpDraw, txn.Metadata()); err != nil {
		return fmt.Errorf("store raffle draw: %w", err)
	}
	receipt := receiptRecord{
		Round:       rec.Round,
		RequestID:   uint64(rec.RequestID),
		RandomWord:  new(big.Int).Set(rec.RandomWord),
		WinnerIndex: uint64(rec.WinnerIndex), // #nosec G115
		Winner:      rec.Winner.Bytes(),
		Prize:       new(big.Int).Set(rec.Prize),
		Entrants:    encodeAddresses(rec.Entrants),
		Timestamp:   unixNano(rec.Timestamp),
	}
	receiptData, err := cbor.Marshal(receipt)
	if err != nil {
		return err
	}
	if err := d.Blob().Set(txn.Blob(), types.DrawReceiptKey(rec.Round), receiptData); err != nil {
		return fmt.Errorf("store draw receipt: %w", err)
	}
	return nil
}

// LoadRaffle returns the last persisted raffle snapshot, or nil if nothing
// has been stored yet
func (d *Database) LoadRaffle() (*raffle.Snapshot, error) {
	txn := NewBlobOnlyTxn(d, false)
	defer txn.Release()
	data, err := d.Blob().Get(txn.Blob(), []byte(types.RaffleStateKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

// DrawReceipt is the self-contained proof of a draw. Anyone holding it can
// recompute the winner from the random word and the entrant list
type DrawReceipt struct {
	Round       uint64
	RequestID   raffle.RequestID
	RandomWord  *big.Int
	WinnerIndex int
	Winner      raffle.Address
	Prize       *big.Int
	Entrants    []raffle.Address
	Timestamp   time.Time
}

// Verify recomputes the winner and compares it with the recorded one
func (r *DrawReceipt) Verify() error {
	idx, err := raffle.SelectWinner(r.RandomWord, len(r.Entrants))
	if err != nil {
		return err
	}
	if idx != r.WinnerIndex {
		return fmt.Errorf(
			"winner index mismatch: recorded %d, computed %d",
			r.WinnerIndex,
			idx,
		)
	}
	if r.Entrants[idx] != r.Winner {
		return fmt.Errorf(
			"winner mismatch: recorded %s, entrant %d is %s",
			r.Winner.Hex(),
			idx,
			r.Entrants[idx].Hex(),
		)
	}
	return nil
}

// DrawReceipt returns the receipt stored for a round
func (d *Database) DrawReceipt(round uint64) (*DrawReceipt, error) {
	txn := NewBlobOnlyTxn(d, false)
	defer txn.Release()
	data, err := d.Blob().Get(txn.Blob(), types.DrawReceiptKey(round))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, types.ErrRecordNotFound
		}
		return nil, err
	}
	var rec receiptRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode draw receipt: %w", err)
	}
	entrants, err := decodeAddresses(rec.Entrants)
	if err != nil {
		return nil, fmt.Errorf("decode draw receipt: %w", err)
	}
	ret := &DrawReceipt{
		Round:       rec.Round,
		RequestID:   raffle.RequestID(rec.RequestID),
		RandomWord:  new(big.Int),
		WinnerIndex: int(rec.WinnerIndex), // #nosec G115
		Winner:      common.BytesToAddress(rec.Winner),
		Prize:       new(big.Int),
		Entrants:    entrants,
		Timestamp:   fromUnixNano(rec.Timestamp),
	}
	if rec.RandomWord != nil {
		ret.RandomWord.Set(rec.RandomWord)
	}
	if rec.Prize != nil {
		ret.Prize.Set(rec.Prize)
	}
	return ret, nil
}

// DrawReceiptRounds lists the rounds with a stored receipt, newest first
func (d *Database) DrawReceiptRounds(limit int) ([]uint64, error) {
	txn := NewBlobOnlyTxn(d, false)
	defer txn.Release()
	iter := d.Blob().NewIterator(
		txn.Blob(),
		types.BlobIteratorOptions{
			Prefix:  []byte(types.DrawReceiptKeyPrefix),
			Reverse: true,
		},
	)
	defer iter.Close()
	// Reverse iteration starts from the largest key in the prefix range
	seekKey := types.DrawReceiptKey(math.MaxUint64)
	prefix := []byte(types.DrawReceiptKeyPrefix)
	var ret []uint64
	for iter.Seek(seekKey); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		if item == nil {
			continue
		}
		round, err := types.DrawReceiptRound(item.Key())
		if err != nil {
			return nil, err
		}
		ret = append(ret, round)
		if limit > 0 && len(ret) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Draws returns completed draws, newest first. A limit of 0 returns all of
// them. The entrant list is only available from DrawReceipt
func (d *Database) Draws(limit int) ([]raffle.DrawRecord, error) {
	tmpDraws, err := d.Metadata().GetDraws(limit, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]raffle.DrawRecord, 0, len(tmpDraws))
	for _, tmpDraw := range tmpDraws {
		ret = append(ret, drawFromModel(&tmpDraw))
	}
	return ret, nil
}

// Draw returns the draw of a round
func (d *Database) Draw(round uint64) (*raffle.DrawRecord, error) {
	tmpDraw, err := d.Metadata().GetDraw(round, nil)
	if err != nil {
		return nil, err
	}
	if tmpDraw == nil {
		return nil, types.ErrRecordNotFound
	}
	ret := drawFromModel(tmpDraw)
	return &ret, nil
}

func drawFromModel(m *models.RaffleDraw) raffle.DrawRecord {
	return raffle.DrawRecord{
		Round:       m.Round,
		RequestID:   raffle.RequestID(m.RequestID),
		RandomWord:  m.RandomWord.Copy(),
		WinnerIndex: m.WinnerIndex,
		Winner:      common.BytesToAddress(m.Winner),
		Prize:       m.Prize.Copy(),
		NumEntrants: m.NumEntrants,
		Timestamp:   m.CreatedAt,
	}
}

// Entries returns the entries of a round in entry order
func (d *Database) Entries(round uint64) ([]raffle.EntryRecord, error) {
	tmpEntries, err := d.Metadata().GetEntries(round, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]raffle.EntryRecord, 0, len(tmpEntries))
	for _, tmpEntry := range tmpEntries {
		ret = append(ret, raffle.EntryRecord{
			Round:     tmpEntry.Round,
			Index:     tmpEntry.Position,
			Address:   common.BytesToAddress(tmpEntry.Address),
			Amount:    tmpEntry.Amount.Copy(),
			Timestamp: tmpEntry.CreatedAt,
		})
	}
	return ret, nil
}

// RequestStatus is a stored randomness request and when it was consumed
type RequestStatus struct {
	raffle.RequestRecord
	FulfilledAt *time.Time
}

// Request returns the stored randomness request with the given id
func (d *Database) Request(requestID raffle.RequestID) (*RequestStatus, error) {
	tmpReq, err := d.Metadata().GetRequest(uint64(requestID), nil)
	if err != nil {
		return nil, err
	}
	if tmpReq == nil {
		return nil, types.ErrRecordNotFound
	}
	return &RequestStatus{
		RequestRecord: raffle.RequestRecord{
			Round:       tmpReq.Round,
			RequestID:   raffle.RequestID(tmpReq.RequestID),
			NumEntrants: tmpReq.NumEntrants,
			Timestamp:   tmpReq.CreatedAt,
		},
		FulfilledAt: tmpReq.FulfilledAt,
	}, nil
}
