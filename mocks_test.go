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

package royalty

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/apierror"
	"github.com/paysplit/royalty/model"
)

// MockGateway is a testify mock of gateway.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Settle(ctx context.Context, req model.SettleRequest) (*model.SettleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettleResult), args.Error(1)
}

type recordingAlertSink struct {
	mu     sync.Mutex
	alerts []model.Alert
	err    error
}

func (s *recordingAlertSink) EnqueueAlert(_ context.Context, alert model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingAlertSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// fakeStore is an in-memory database.IDataSource.
type fakeStore struct {
	mu           sync.Mutex
	orders       map[string]*model.Order
	subjects     map[string]*model.Subject
	payees       map[string]*model.PayeeAccount
	records      []*model.SettlementRecord
	logs         []*model.OrderLog
	disableCalls int
	seq          int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:   map[string]*model.Order{},
		subjects: map[string]*model.Subject{},
		payees:   map[string]*model.PayeeAccount{},
	}
}

func notFound(what, id string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("%s '%s' not found", what, id), nil)
}

func (f *fakeStore) GetOrder(_ context.Context, orderID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, notFound("order", orderID)
	}
	c := *o
	return &c, nil
}

func (f *fakeStore) GetUnsettledPaidOrders(_ context.Context, paidBefore time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, o := range f.orders {
		if !o.IsPaid() || o.PaidAt == nil || o.PaidAt.After(paidBefore) {
			continue
		}
		s, ok := f.subjects[o.SubjectID]
		if !ok || !s.IsEnabled() || !s.RoyaltyEnabled() {
			continue
		}
		if f.hasRecordLocked(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) hasRecordLocked(orderID string) bool {
	for _, r := range f.records {
		if r.OrderID == orderID {
			return true
		}
	}
	return false
}

func (f *fakeStore) GetSubject(_ context.Context, subjectID string) (*model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[subjectID]
	if !ok {
		return nil, notFound("subject", subjectID)
	}
	c := *s
	return &c, nil
}

func (f *fakeStore) DisableSubject(_ context.Context, subjectID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disableCalls++
	s, ok := f.subjects[subjectID]
	if !ok || s.Status != model.SubjectStatusEnabled {
		return false, nil
	}
	s.Status = model.SubjectStatusDisabled
	s.DisabledReason = reason
	return true, nil
}

func (f *fakeStore) GetPayeeAccount(_ context.Context, agentID string) (*model.PayeeAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payees[agentID]
	if !ok {
		return nil, notFound("payee account", agentID)
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) CreateSettlementRecord(_ context.Context, record *model.SettlementRecord) (*model.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if record.RecordID == "" {
		record.RecordID = fmt.Sprintf("stl_%d", f.seq)
	}
	if record.Status == "" {
		record.Status = model.SettlementStatusPending
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	c := *record
	f.records = append(f.records, &c)
	return record, nil
}

func (f *fakeStore) findLocked(recordID string) *model.SettlementRecord {
	for _, r := range f.records {
		if r.RecordID == recordID {
			return r
		}
	}
	return nil
}

func (f *fakeStore) GetSettlementRecord(_ context.Context, recordID string) (*model.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.findLocked(recordID)
	if r == nil {
		return nil, notFound("settlement record", recordID)
	}
	c := *r
	return &c, nil
}

func (f *fakeStore) LatestSettlementRecord(_ context.Context, orderID string) (*model.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].OrderID == orderID {
			c := *f.records[i]
			return &c, nil
		}
	}
	return nil, notFound("settlement record for order", orderID)
}

func (f *fakeStore) HasSuccessfulSettlement(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.OrderID == orderID && r.Status == model.SettlementStatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountFailedSettlements(_ context.Context, orderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.OrderID == orderID && r.Status == model.SettlementStatusFailed {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) update(recordID string, fn func(r *model.SettlementRecord)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.findLocked(recordID)
	if r == nil || r.Status == model.SettlementStatusSuccess {
		return apierror.NewAPIError(apierror.ErrConflict, "missing or already settled", nil)
	}
	fn(r)
	r.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) UpdateSettlementAttempt(_ context.Context, record *model.SettlementRecord) error {
	return f.update(record.RecordID, func(r *model.SettlementRecord) {
		createdAt := r.CreatedAt
		*r = *record
		r.CreatedAt = createdAt
	})
}

func (f *fakeStore) MarkSettlementProcessing(_ context.Context, recordID string) error {
	return f.update(recordID, func(r *model.SettlementRecord) { r.Status = model.SettlementStatusProcessing })
}

func (f *fakeStore) MarkSettlementSuccess(_ context.Context, recordID, providerRef string) error {
	return f.update(recordID, func(r *model.SettlementRecord) {
		now := time.Now()
		r.Status = model.SettlementStatusSuccess
		r.ProviderRef = providerRef
		r.SettledAt = &now
	})
}

func (f *fakeStore) MarkSettlementFailed(_ context.Context, recordID, code, message string) error {
	return f.update(recordID, func(r *model.SettlementRecord) {
		r.Status = model.SettlementStatusFailed
		r.ErrorCode = code
		r.ErrorMessage = message
	})
}

func (f *fakeStore) DeleteSettlementRecord(_ context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.RecordID == recordID {
			if r.Status == model.SettlementStatusSuccess {
				return apierror.NewAPIError(apierror.ErrConflict, "already settled", nil)
			}
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) GetStaleProcessingSettlements(_ context.Context, updatedBefore time.Time, limit int) ([]*model.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.SettlementRecord
	for _, r := range f.records {
		if r.Status == model.SettlementStatusProcessing && r.UpdatedAt.Before(updatedBefore) && len(out) < limit {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeStore) RecordOrderLog(_ context.Context, entry *model.OrderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *entry
	f.logs = append(f.logs, &c)
	return nil
}

func (f *fakeStore) recordsFor(orderID string) []model.SettlementRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SettlementRecord
	for _, r := range f.records {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out
}

func (f *fakeStore) nodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Node)
	}
	return out
}

func (f *fakeStore) subjectStatus(id string) model.SubjectStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subjects[id].Status
}

// testEnv bundles an engine with its fakes and a controllable clock.
type testEnv struct {
	royalty *Royalty
	store   *fakeStore
	gateway *MockGateway
	alerts  *recordingAlertSink
	mr      *miniredis.Miniredis
	client  redis.UniversalClient
	clock   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		ProjectName: "royalty-test",
		Settlement:  config.DefaultSettlement(),
	})

	env := &testEnv{
		store:   newFakeStore(),
		gateway: &MockGateway{},
		alerts:  &recordingAlertSink{},
		mr:      mr,
		client:  redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		clock:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	r, err := NewRoyalty(env.store, env.client, env.gateway, env.alerts)
	require.NoError(t, err)
	r.now = func() time.Time { return env.clock }
	env.royalty = r
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

// seedOrder stores a paid 100.00 order of a SINGLE 10% subject with a complete payee account.
func (e *testEnv) seedOrder(orderID, subjectID string) *model.Order {
	paidAt := e.clock.Add(-time.Hour)
	order := &model.Order{
		OrderID:         orderID,
		PlatformOrderNo: "P" + orderID,
		TradeNo:         "T" + orderID,
		PayStatus:       model.PayStatusPaid,
		Amount:          decimal.RequireFromString("100.00"),
		SubjectID:       subjectID,
		TraceID:         "trace-" + orderID,
		PaidAt:          &paidAt,
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.orders[orderID] = order
	if _, ok := e.store.subjects[subjectID]; !ok {
		e.store.subjects[subjectID] = &model.Subject{
			SubjectID:   subjectID,
			Name:        "Subject " + subjectID,
			AgentID:     "agent-" + subjectID,
			RoyaltyMode: model.RoyaltyModeSingle,
			RoyaltyRate: decimal.NewFromInt(10),
			Status:      model.SubjectStatusEnabled,
		}
		e.store.payees["agent-"+subjectID] = &model.PayeeAccount{
			AgentID:      "agent-" + subjectID,
			PayeeName:    "Alice",
			PayeeAccount: "208812345678901",
		}
	}
	return order
}

func success(ref string) *model.SettleResult {
	return &model.SettleResult{Success: true, ProviderRef: ref}
}

func failureResult(subCode, message string) *model.SettleResult {
	return &model.SettleResult{Success: false, SubCode: subCode, Message: message}
}
