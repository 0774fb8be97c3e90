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
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/database/mocks"
	"github.com/paysplit/royalty/model"
)

func newMockedRoyalty(t *testing.T) (*Royalty, *mocks.MockDataSource, *MockGateway, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{ProjectName: "royalty-test", Settlement: config.DefaultSettlement()})

	ds := &mocks.MockDataSource{}
	gw := &MockGateway{}
	r, err := NewRoyalty(ds, redis.NewClient(&redis.Options{Addr: mr.Addr()}), gw, &recordingAlertSink{})
	require.NoError(t, err)
	return r, ds, gw, mr
}

func TestDrainMainQueue_StoreOutageAbandonsAttempt(t *testing.T) {
	r, ds, gw, mr := newMockedRoyalty(t)
	ctx := context.Background()

	ds.On("GetOrder", mock.Anything, "o1").Return(nil, errors.New("connection refused")).Once()
	require.NoError(t, r.Enqueue(ctx, "o1", ""))

	assert.Equal(t, 1, r.DrainMainQueue(ctx))
	assert.False(t, mr.Exists(LockKeyPrefix+"o1"), "lock is released after an abandoned attempt")

	n, err := r.Queues().Main.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "abandoned items are not re-queued")

	ds.AssertExpectations(t)
	gw.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestDrainRetryQueue_RecordLookupFailure(t *testing.T) {
	r, ds, gw, mr := newMockedRoyalty(t)
	ctx := context.Background()

	ds.On("GetSettlementRecord", mock.Anything, "stl_1").Return(nil, errors.New("timeout")).Once()
	require.NoError(t, r.Queues().Retry.Push(ctx, model.RetryTask{
		OrderID:            "o1",
		SettlementRecordID: "stl_1",
		RetryCount:         1,
		NextAttemptAt:      time.Now().Add(-time.Minute),
	}))

	assert.Equal(t, 0, r.DrainRetryQueue(ctx))
	assert.False(t, mr.Exists(LockKeyPrefix+"o1"))

	ds.AssertExpectations(t)
	ds.AssertNotCalled(t, "DeleteSettlementRecord", mock.Anything, mock.Anything)
	ds.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestManualRetry_StoreOutageKeepsRecord(t *testing.T) {
	r, ds, gw, mr := newMockedRoyalty(t)
	ctx := context.Background()

	failed := &model.SettlementRecord{RecordID: "stl_1", OrderID: "o1", Status: model.SettlementStatusFailed, ErrorCode: "SYSTEM_ERROR"}
	ds.On("GetSettlementRecord", mock.Anything, "stl_1").Return(failed, nil).Once()
	ds.On("RecordOrderLog", mock.Anything, mock.Anything).Return(nil)
	ds.On("GetOrder", mock.Anything, "o1").Return(nil, errors.New("connection refused")).Once()

	_, err := r.ManualRetry(ctx, "stl_1", "ops")
	assert.EqualError(t, err, "connection refused")
	assert.False(t, mr.Exists(LockKeyPrefix+"o1"))

	ds.AssertExpectations(t)
	ds.AssertNotCalled(t, "DeleteSettlementRecord", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestQueryStatus_PassesThroughStore(t *testing.T) {
	r, ds, _, _ := newMockedRoyalty(t)
	want := &model.SettlementRecord{RecordID: "stl_9", OrderID: "o1", Status: model.SettlementStatusSuccess}
	ds.On("LatestSettlementRecord", mock.Anything, "o1").Return(want, nil).Once()

	got, err := r.QueryStatus(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	ds.AssertExpectations(t)
}
