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
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ScoredQueue keeps one entry per task key in a sorted set scored by due time,
// with the payload stored in a companion hash.
type ScoredQueue[T Task] struct {
	client  redis.UniversalClient
	key     string
	dataKey string
	due     DueFunc[T]
}

func NewScoredQueue[T Task](client redis.UniversalClient, key, dataKey string, due DueFunc[T]) *ScoredQueue[T] {
	return &ScoredQueue[T]{client: client, key: key, dataKey: dataKey, due: due}
}

// Push schedules item at its due time, replacing any entry with the same key.
func (q *ScoredQueue[T]) Push(ctx context.Context, item T) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.key, redis.Z{Score: float64(q.due(item).Unix()), Member: item.Key()})
		pipe.HSet(ctx, q.dataKey, item.Key(), payload)
		return nil
	})
	return err
}

func (q *ScoredQueue[T]) PushBack(ctx context.Context, item T) error {
	return q.Push(ctx, item)
}

// PopDue claims due members one by one. A member is only returned by the
// consumer whose ZREM removed it.
func (q *ScoredQueue[T]) PopDue(ctx context.Context, now time.Time, limit int) ([]T, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(members))
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return items, err
		}
		if removed == 0 {
			continue
		}

		raw, err := q.client.HGet(ctx, q.dataKey, member).Result()
		if errors.Is(err, redis.Nil) {
			logrus.Warnf("no payload stored for %s in %s", member, q.dataKey)
			continue
		}
		if err != nil {
			return items, err
		}
		if err := q.client.HDel(ctx, q.dataKey, member).Err(); err != nil {
			return items, err
		}

		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			logrus.Warnf("dropping malformed entry %s from %s: %v", member, q.dataKey, err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *ScoredQueue[T]) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
