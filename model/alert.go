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

type AlertPriority int

const (
	AlertPriorityNormal AlertPriority = iota + 1
	AlertPriorityHigh
	AlertPriorityCritical
)

func (p AlertPriority) String() string {
	switch p {
	case AlertPriorityCritical:
		return "critical"
	case AlertPriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Alert is an operator notification.
type Alert struct {
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Priority  AlertPriority `json:"priority"`
	CreatedAt time.Time     `json:"created_at"`
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// OrderLog is an audit trail entry shared with the other order subsystems.
type OrderLog struct {
	ID        int64                  `json:"id,omitempty"`
	TraceID   string                 `json:"trace_id"`
	OrderRef  string                 `json:"order_ref"`
	Category  string                 `json:"category"`
	Level     LogLevel               `json:"level"`
	Node      string                 `json:"node"`
	Context   map[string]interface{} `json:"context,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
