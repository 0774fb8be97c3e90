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

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/paysplit/royalty/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Order methods

func (m *MockDataSource) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockDataSource) GetUnsettledPaidOrders(ctx context.Context, paidBefore time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, paidBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Subject methods

func (m *MockDataSource) GetSubject(ctx context.Context, subjectID string) (*model.Subject, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *MockDataSource) DisableSubject(ctx context.Context, subjectID, reason string) (bool, error) {
	args := m.Called(ctx, subjectID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetPayeeAccount(ctx context.Context, agentID string) (*model.PayeeAccount, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PayeeAccount), args.Error(1)
}

// Settlement methods

func (m *MockDataSource) CreateSettlementRecord(ctx context.Context, record *model.SettlementRecord) (*model.SettlementRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementRecord), args.Error(1)
}

func (m *MockDataSource) GetSettlementRecord(ctx context.Context, recordID string) (*model.SettlementRecord, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementRecord), args.Error(1)
}

func (m *MockDataSource) LatestSettlementRecord(ctx context.Context, orderID string) (*model.SettlementRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementRecord), args.Error(1)
}

func (m *MockDataSource) HasSuccessfulSettlement(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) CountFailedSettlements(ctx context.Context, orderID string) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *MockDataSource) UpdateSettlementAttempt(ctx context.Context, record *model.SettlementRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDataSource) MarkSettlementProcessing(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

func (m *MockDataSource) MarkSettlementSuccess(ctx context.Context, recordID, providerRef string) error {
	args := m.Called(ctx, recordID, providerRef)
	return args.Error(0)
}

func (m *MockDataSource) MarkSettlementFailed(ctx context.Context, recordID, code, message string) error {
	args := m.Called(ctx, recordID, code, message)
	return args.Error(0)
}

func (m *MockDataSource) DeleteSettlementRecord(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

func (m *MockDataSource) GetStaleProcessingSettlements(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.SettlementRecord, error) {
	args := m.Called(ctx, updatedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SettlementRecord), args.Error(1)
}

// Audit methods

func (m *MockDataSource) RecordOrderLog(ctx context.Context, entry *model.OrderLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
