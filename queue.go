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
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paysplit/royalty/internal/delayqueue"
	"github.com/paysplit/royalty/model"
)

const (
	MainQueueKey    = "royalty:queue"
	RetryQueueKey   = "royalty:retry:queue"
	PendingQueueKey = "royalty:pending:queue"
	PendingDataKey  = "royalty:pending:data"
	LockKeyPrefix   = "royalty:processing:"
)

// Queues is the queue fabric shared by producers and the settlement processor.
type Queues struct {
	// Main is drained in FIFO order on every tick.
	Main delayqueue.Queue[model.MainTask]
	// Retry holds entries in insertion order. A head entry that is not due
	// yet stops the pass, so a far-future entry delays the ones behind it.
	Retry delayqueue.Queue[model.RetryTask]
	// Pending is ordered by next attempt time, one entry per order.
	Pending delayqueue.Queue[model.PendingTask]
}

func retryDue(t model.RetryTask) time.Time { return t.NextAttemptAt }

func pendingDue(t model.PendingTask) time.Time { return t.NextAttemptAt }

func NewQueues(client redis.UniversalClient) *Queues {
	return &Queues{
		Main:    delayqueue.NewListQueue[model.MainTask](client, MainQueueKey, nil),
		Retry:   delayqueue.NewListQueue[model.RetryTask](client, RetryQueueKey, retryDue),
		Pending: delayqueue.NewScoredQueue[model.PendingTask](client, PendingQueueKey, PendingDataKey, pendingDue),
	}
}
