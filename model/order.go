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
	"time"

	"github.com/shopspring/decimal"
)

type PayStatus string

const (
	PayStatusCreated  PayStatus = "CREATED"
	PayStatusOpened   PayStatus = "OPENED"
	PayStatusPaid     PayStatus = "PAID"
	PayStatusClosed   PayStatus = "CLOSED"
	PayStatusRefunded PayStatus = "REFUNDED"
)

// Order is the read-only view of a customer order that the settlement engine needs.
type Order struct {
	OrderID         string          `json:"order_id"`
	PlatformOrderNo string          `json:"platform_order_no"`
	TradeNo         string          `json:"trade_no"`
	PayStatus       PayStatus       `json:"pay_status"`
	Amount          decimal.Decimal `json:"amount"`
	SubjectID       string          `json:"subject_id"`
	TraceID         string          `json:"trace_id"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (o *Order) IsPaid() bool {
	return o.PayStatus == PayStatusPaid
}

// TradeReference is the provider-side reference a settlement is made against.
func (o *Order) TradeReference() string {
	return o.TradeNo
}
