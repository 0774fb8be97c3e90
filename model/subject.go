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

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RoyaltyMode string

const (
	RoyaltyModeNone       RoyaltyMode = "NONE"
	RoyaltyModeSingle     RoyaltyMode = "SINGLE"
	RoyaltyModeAggregated RoyaltyMode = "AGGREGATED"
)

type SubjectStatus string

const (
	SubjectStatusEnabled  SubjectStatus = "ENABLED"
	SubjectStatusDisabled SubjectStatus = "DISABLED"
)

// Subject is the payee entity of record. Its account receives the order funds
// from the payment provider and is the source of every royalty transfer.
type Subject struct {
	SubjectID      string          `json:"subject_id"`
	Name           string          `json:"name"`
	AgentID        string          `json:"agent_id"`
	RoyaltyMode    RoyaltyMode     `json:"royalty_mode"`
	RoyaltyRate    decimal.Decimal `json:"royalty_rate"`
	Status         SubjectStatus   `json:"status"`
	DisabledReason string          `json:"disabled_reason,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (s *Subject) IsEnabled() bool {
	return s.Status == SubjectStatusEnabled
}

func (s *Subject) RoyaltyEnabled() bool {
	return s.RoyaltyMode != "" && s.RoyaltyMode != RoyaltyModeNone
}

// PayeeAccount is the beneficiary configured for an agent.
type PayeeAccount struct {
	AgentID      string `json:"agent_id"`
	PayeeName    string `json:"payee_name"`
	PayeeAccount string `json:"payee_account"`
}

// IsComplete reports whether both the payee name and account are set.
func (p *PayeeAccount) IsComplete() bool {
	return p != nil && strings.TrimSpace(p.PayeeName) != "" && strings.TrimSpace(p.PayeeAccount) != ""
}
