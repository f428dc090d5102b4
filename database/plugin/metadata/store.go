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

package metadata

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/blinklabs-io/raffled/database/models"
	"github.com/blinklabs-io/raffled/database/plugin"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	// Register metadata plugins
	_ "github.com/blinklabs-io/raffled/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/raffled/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/raffled/database/plugin/metadata/sqlite"
)

// MetadataStore is the relational history of the raffle: entries, randomness
// requests, and completed draws
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Raffle history
	AddEntry(*models.RaffleEntry, types.Txn) error
	GetEntries(uint64, types.Txn) ([]models.RaffleEntry, error)
	AddRequest(*models.RandomnessRequest, types.Txn) error
	GetRequest(uint64, types.Txn) (*models.RandomnessRequest, error)
	MarkRequestFulfilled(uint64, time.Time, types.Txn) error
	AddDraw(*models.RaffleDraw, types.Txn) error
	GetDraw(uint64, types.Txn) (*models.RaffleDraw, error)
	GetDraws(int, types.Txn) ([]models.RaffleDraw, error)
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	p, err := plugin.StartPlugin(
		plugin.PluginTypeMetadata,
		pluginName,
		plugin.WithLogger(logger),
		plugin.WithPromRegistry(promRegistry),
	)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
