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

package delayqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ListQueue is a redis list used as a FIFO. Producers LPUSH and consumers RPOP.
//
// When a due function is set, PopDue stops at the first item that is not due
// yet and puts it back at the head. Later items in the list are not inspected
// in that pass even if they are already due.
type ListQueue[T Task] struct {
	client redis.UniversalClient
	key    string
	due    DueFunc[T]
}

// NewListQueue creates a list-backed queue. A nil due function makes every item due.
func NewListQueue[T Task](client redis.UniversalClient, key string, due DueFunc[T]) *ListQueue[T] {
	return &ListQueue[T]{client: client, key: key, due: due}
}

func (q *ListQueue[T]) Push(ctx context.Context, item T) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *ListQueue[T]) PushBack(ctx context.Context, item T) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *ListQueue[T]) PopDue(ctx context.Context, now time.Time, limit int) ([]T, error) {
	items := make([]T, 0, limit)
	for len(items) < limit {
		raw, err := q.client.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return items, err
		}

		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			logrus.Warnf("dropping malformed entry from %s: %v", q.key, err)
			continue
		}

		if q.due != nil && q.due(item).After(now) {
			if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
				return items, err
			}
			break
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *ListQueue[T]) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
