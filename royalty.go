/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package royalty

import (
	"embed"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/database"
	"github.com/paysplit/royalty/gateway"
	redlock "github.com/paysplit/royalty/internal/lock"
)

// Royalty is the asynchronous settlement engine.
type Royalty struct {
	datasource database.IDataSource
	gateway    gateway.Gateway
	alerts     AlertSink
	redis      redis.UniversalClient
	locker     *redlock.Locker
	queues     *Queues
	cfg        config.SettlementConfig
	now        func() time.Time
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewRoyalty wires the engine around its collaborators using the loaded configuration.
//
// Parameters:
// - db database.IDataSource: orders, payee entities and settlement records.
// - client redis.UniversalClient: backs the queues, the per-order lock and alert dedup.
// - gw gateway.Gateway: the payment provider transfer API.
// - alerts AlertSink: operator alert publisher.
//
// Returns:
// - *Royalty: the engine.
// - error: when the configuration has not been loaded.
func NewRoyalty(db database.IDataSource, client redis.UniversalClient, gw gateway.Gateway, alerts AlertSink) (*Royalty, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &Royalty{
		datasource: db,
		gateway:    gw,
		alerts:     alerts,
		redis:      client,
		locker:     redlock.NewLocker(client, LockKeyPrefix, cfg.Settlement.LockDuration()),
		queues:     NewQueues(client),
		cfg:        cfg.Settlement,
		now:        time.Now,
	}, nil
}

// Queues exposes the queue fabric.
func (r *Royalty) Queues() *Queues {
	return r.queues
}
