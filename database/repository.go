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

package database

import (
	"context"
	"time"

	"github.com/paysplit/royalty/model"
)

// IDataSource groups every persistence concern of the settlement engine.
type IDataSource interface {
	order
	subject
	payeeAccount
	settlement
	auditLog
}

type order interface {
	// Retrieves an order by ID
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	// Paid orders with no settlement record at all
	GetUnsettledPaidOrders(ctx context.Context, paidBefore time.Time, limit int) ([]string, error)
}

type subject interface {
	// Retrieves a payee entity
	GetSubject(ctx context.Context, subjectID string) (*model.Subject, error)
	// Disables an enabled entity, reports whether it changed
	DisableSubject(ctx context.Context, subjectID, reason string) (bool, error)
}

type payeeAccount interface {
	// Retrieves the beneficiary of an agent
	GetPayeeAccount(ctx context.Context, agentID string) (*model.PayeeAccount, error)
}

type settlement interface {
	CreateSettlementRecord(ctx context.Context, record *model.SettlementRecord) (*model.SettlementRecord, error)
	GetSettlementRecord(ctx context.Context, recordID string) (*model.SettlementRecord, error)
	LatestSettlementRecord(ctx context.Context, orderID string) (*model.SettlementRecord, error)
	HasSuccessfulSettlement(ctx context.Context, orderID string) (bool, error)
	CountFailedSettlements(ctx context.Context, orderID string) (int, error)
	// Rewrites the split and payee of a record that is not final
	UpdateSettlementAttempt(ctx context.Context, record *model.SettlementRecord) error
	MarkSettlementProcessing(ctx context.Context, recordID string) error
	MarkSettlementSuccess(ctx context.Context, recordID, providerRef string) error
	MarkSettlementFailed(ctx context.Context, recordID, code, message string) error
	DeleteSettlementRecord(ctx context.Context, recordID string) error
	GetStaleProcessingSettlements(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.SettlementRecord, error)
}

type auditLog interface {
	RecordOrderLog(ctx context.Context, entry *model.OrderLog) error
}
