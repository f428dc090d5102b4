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

package gormstore

import (
	"errors"
	"time"

	"github.com/blinklabs-io/raffled/database/models"
	"github.com/blinklabs-io/raffled/database/types"
	"gorm.io/gorm"
)

// AddEntry records an accepted entry
func (s *Store) AddEntry(entry *models.RaffleEntry, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(entry).Error
}

// GetEntries returns the entries of a round in entry order
func (s *Store) GetEntries(
	round uint64,
	txn types.Txn,
) ([]models.RaffleEntry, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.RaffleEntry
	result := db.Where("round = ?", round).Order("position asc").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddRequest records an outstanding randomness request
func (s *Store) AddRequest(
	req *models.RandomnessRequest,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(req).Error
}

// GetRequest returns the randomness request with the given id, or nil if
// there is none
func (s *Store) GetRequest(
	requestID uint64,
	txn types.Txn,
) (*models.RandomnessRequest, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.RandomnessRequest{}
	result := db.First(ret, "request_id = ?", types.Uint64(requestID))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// MarkRequestFulfilled stamps the fulfillment time on a request
func (s *Store) MarkRequestFulfilled(
	requestID uint64,
	fulfilledAt time.Time,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.RandomnessRequest{}).
		Where("request_id = ? AND fulfilled_at IS NULL", types.Uint64(requestID)).
		Update("fulfilled_at", fulfilledAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrRecordNotFound
	}
	return nil
}

// AddDraw records a completed round
func (s *Store) AddDraw(draw *models.RaffleDraw, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(draw).Error
}

// GetDraw returns the draw for a round, or nil if the round has not completed
func (s *Store) GetDraw(
	round uint64,
	txn types.Txn,
) (*models.RaffleDraw, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.RaffleDraw{}
	result := db.First(ret, "round = ?", round)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetDraws returns the most recent draws, newest first. A limit of zero
// returns all draws
func (s *Store) GetDraws(
	limit int,
	txn types.Txn,
) ([]models.RaffleDraw, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Order("round desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ret []models.RaffleDraw
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
