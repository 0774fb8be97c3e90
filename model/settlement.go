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
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementStatusPending    SettlementStatus = "PENDING"
	SettlementStatusProcessing SettlementStatus = "PROCESSING"
	SettlementStatusSuccess    SettlementStatus = "SUCCESS"
	SettlementStatusFailed     SettlementStatus = "FAILED"
)

// SettlementRecord is one settlement attempt for an order. Several records may
// exist for the same order; at most one of them holds SUCCESS.
type SettlementRecord struct {
	RecordID        string           `json:"record_id"`
	OrderID         string           `json:"order_id"`
	PlatformOrderNo string           `json:"platform_order_no"`
	TradeNo         string           `json:"trade_no"`
	SubjectID       string           `json:"subject_id"`
	RoyaltyMode     RoyaltyMode      `json:"royalty_mode"`
	RoyaltyRate     decimal.Decimal  `json:"royalty_rate"`
	TotalAmount     int64            `json:"total_amount"`
	FeeAmount       int64            `json:"fee_amount"`
	RoyaltyAmount   int64            `json:"royalty_amount"`
	PrincipalAmount int64            `json:"principal_amount"`
	PayeeName       string           `json:"payee_name"`
	PayeeAccount    string           `json:"payee_account"`
	Status          SettlementStatus `json:"status"`
	ProviderRef     string           `json:"provider_ref,omitempty"`
	ErrorCode       string           `json:"error_code,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Operator        string           `json:"operator,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	SettledAt       *time.Time       `json:"settled_at,omitempty"`
}

func (r *SettlementRecord) IsFinal() bool {
	return r.Status == SettlementStatusSuccess
}

func (r *SettlementRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// SettleRequest is what the settlement gateway needs to move the royalty share.
type SettleRequest struct {
	TradeReference string `json:"trade_reference"`
	OrderReference string `json:"order_reference"`
	AmountCents    int64  `json:"amount_cents"`
	PayeeAccount   string `json:"payee_account"`
	PayeeName      string `json:"payee_name"`
}

// SettleResult is the outcome reported by the settlement gateway.
type SettleResult struct {
	Success     bool   `json:"success"`
	ProviderRef string `json:"provider_ref,omitempty"`
	SubCode     string `json:"sub_code,omitempty"`
	Message     string `json:"message,omitempty"`
	Raw         string `json:"-"`
}
