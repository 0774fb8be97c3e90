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

// Package delayqueue provides typed FIFO and time-scored queues on top of redis.
package delayqueue

import (
	"context"
	"time"
)

// Task is a queue payload. Key identifies the entity the payload refers to.
type Task interface {
	Key() string
}

// Queue is the contract shared by every queue backend.
type Queue[T Task] interface {
	// Push appends item at the producer end.
	Push(ctx context.Context, item T) error
	// PopDue removes and returns up to limit items whose due time is not after now.
	PopDue(ctx context.Context, now time.Time, limit int) ([]T, error)
	// PushBack returns a popped item to the queue so that it is seen again.
	PushBack(ctx context.Context, item T) error
	// Len reports the number of queued items.
	Len(ctx context.Context) (int64, error)
}

// DueFunc returns the time at which an item becomes eligible.
type DueFunc[T Task] func(T) time.Time
