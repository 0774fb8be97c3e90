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

package model

import "time"

// MainTask is a main queue entry.
type MainTask struct {
	OrderID         string    `json:"order_id"`
	Operator        string    `json:"operator_context,omitempty"`
	PendingAttempts int       `json:"pending_attempts,omitempty"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
}

func (t MainTask) Key() string { return t.OrderID }

// RetryTask schedules a new attempt after a retryable provider failure.
type RetryTask struct {
	OrderID            string    `json:"order_id"`
	SettlementRecordID string    `json:"settlement_record_id"`
	RetryCount         int       `json:"retry_count"`
	NextAttemptAt      time.Time `json:"next_attempt_at"`
}

func (t RetryTask) Key() string { return t.OrderID }

// PendingTask parks an order whose preconditions are not met yet.
type PendingTask struct {
	OrderID         string    `json:"order_id"`
	PendingAttempts int       `json:"pending_attempts"`
	Reason          string    `json:"reason"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	NextAttemptAt   time.Time `json:"next_attempt_at"`
}

func (t PendingTask) Key() string { return t.OrderID }
