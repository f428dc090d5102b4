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

package oracle

import (
	"errors"
	"fmt"
	"math/big"
)

var ErrPendingRequestExists = errors.New("subscription has pending requests")

// Subscription is a funded account that pays for the fulfillment of the
// requests made by its consumer
type Subscription struct {
	id       uint64
	balance  *big.Int
	consumer Consumer
}

// SubscriptionInfo is a point-in-time view of a subscription
type SubscriptionInfo struct {
	ID          uint64
	Balance     *big.Int
	HasConsumer bool
}

// CreateSubscription creates an empty subscription. IDs start at 1
func (c *Coordinator) CreateSubscription() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSubID++
	c.subscriptions[c.lastSubID] = &Subscription{
		id:      c.lastSubID,
		balance: new(big.Int),
	}
	c.logger.Debug("subscription created", "subscription_id", c.lastSubID)
	return c.lastSubID
}

// RegisterSubscription creates an empty subscription with a fixed id, unless
// it already exists. Later subscriptions are numbered after it
func (c *Coordinator) RegisterSubscription(subID uint64) error {
	if subID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[subID]; ok {
		return nil
	}
	c.subscriptions[subID] = &Subscription{
		id:      subID,
		balance: new(big.Int),
	}
	c.lastSubID = max(c.lastSubID, subID)
	c.logger.Debug("subscription registered", "subscription_id", subID)
	return nil
}

// FundSubscription adds amount to the subscription balance
func (c *Coordinator) FundSubscription(subID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidFundingAmount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[subID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	sub.balance.Add(sub.balance, amount)
	c.logger.Debug(
		"subscription funded",
		"subscription_id", subID,
		"amount", amount.String(),
		"balance", sub.balance.String(),
	)
	return nil
}

// AddConsumer registers the consumer allowed to request randomness through
// the subscription. A subscription has at most one consumer
func (c *Coordinator) AddConsumer(subID uint64, consumer Consumer) error {
	if consumer == nil {
		return ErrInvalidConsumer
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[subID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	if sub.consumer != nil {
		return fmt.Errorf("%w: %d", ErrConsumerAlreadyAdded, subID)
	}
	sub.consumer = consumer
	return nil
}

// RemoveConsumer detaches the consumer from the subscription
func (c *Coordinator) RemoveConsumer(subID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[subID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	if sub.consumer == nil {
		return fmt.Errorf("%w: subscription %d has no consumer", ErrInvalidConsumer, subID)
	}
	sub.consumer = nil
	return nil
}

// CancelSubscription removes a subscription with no outstanding requests and
// returns its remaining balance
func (c *Coordinator) CancelSubscription(subID uint64) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[subID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	for _, tmpReq := range c.requests {
		if tmpReq.subscriptionID == subID {
			return nil, fmt.Errorf("%w: %d", ErrPendingRequestExists, subID)
		}
	}
	delete(c.subscriptions, subID)
	return new(big.Int).Set(sub.balance), nil
}

// GetSubscription returns the current state of a subscription
func (c *Coordinator) GetSubscription(subID uint64) (SubscriptionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[subID]
	if !ok {
		return SubscriptionInfo{}, fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	return SubscriptionInfo{
		ID:          sub.id,
		Balance:     new(big.Int).Set(sub.balance),
		HasConsumer: sub.consumer != nil,
	}, nil
}
