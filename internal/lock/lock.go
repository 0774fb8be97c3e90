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

package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

var (
	// ErrLockHeld is returned by Acquire when another holder owns the key.
	ErrLockHeld = errors.New("lock is already held")
	// ErrLeaseLost is returned when the lease expired or was taken over.
	ErrLeaseLost = errors.New("lease expired or is held by another owner")
)

// Locker hands out per-resource leases backed by a shared redis key.
type Locker struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	tokenFn func() string
}

func NewLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	return &Locker{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		tokenFn: uuid.NewString,
	}
}

// Key returns the redis key guarding id.
func (l *Locker) Key(id string) string {
	return l.prefix + id
}

// Acquire takes the lock for id with a fresh random token.
func (l *Locker) Acquire(ctx context.Context, id string) (*Lease, error) {
	key := l.Key(id)
	token := l.tokenFn()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

// Lease is proof of ownership of a lock key.
type Lease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *Lease) Key() string {
	return l.key
}

func (l *Lease) Token() string {
	return l.token
}

// Release deletes the key only if it still carries this lease's token.
func (l *Lease) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("%w: %s", ErrLeaseLost, l.key)
	}
	return nil
}
