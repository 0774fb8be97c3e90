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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paysplit/royalty"
	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/apierror"
	"github.com/paysplit/royalty/model"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Enqueue(ctx context.Context, orderID, operator string) error {
	return m.Called(ctx, orderID, operator).Error(0)
}

func (m *mockEngine) ManualRetry(ctx context.Context, recordID, operator string) (*royalty.AttemptResult, error) {
	args := m.Called(ctx, recordID, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*royalty.AttemptResult), args.Error(1)
}

func (m *mockEngine) QueryStatus(ctx context.Context, orderID string) (*model.SettlementRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementRecord), args.Error(1)
}

func setupRouter(t *testing.T, conf *config.Configuration) (*gin.Engine, *mockEngine) {
	t.Helper()
	if conf == nil {
		conf = &config.Configuration{ProjectName: "royalty-test"}
	}
	config.MockConfig(conf)
	engine := &mockEngine{}
	a := NewAPI(engine)
	require.NotNil(t, a)
	return a.Router(), engine
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEnqueueSettlement(t *testing.T) {
	router, engine := setupRouter(t, nil)
	engine.On("Enqueue", mock.Anything, "ord_1", "ops").Return(nil).Once()

	w := doJSON(router, http.MethodPost, "/settlements", map[string]string{"order_id": "ord_1", "operator": "ops"}, nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ord_1", resp["order_id"])
	assert.Equal(t, "queued", resp["status"])
	engine.AssertExpectations(t)
}

func TestEnqueueSettlement_Validation(t *testing.T) {
	router, engine := setupRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/settlements", map[string]string{"operator": "ops"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "order_id")

	req := httptest.NewRequest(http.MethodPost, "/settlements", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	engine.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnqueueSettlement_QueueFailure(t *testing.T) {
	router, engine := setupRouter(t, nil)
	engine.On("Enqueue", mock.Anything, "ord_1", "").
		Return(apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue order for settlement", nil)).Once()

	w := doJSON(router, http.MethodPost, "/settlements", map[string]string{"order_id": "ord_1"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRetrySettlement(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "retried", expectedCode: http.StatusOK},
		{name: "not failed", err: fmt.Errorf("%w: record stl_1 is SUCCESS", royalty.ErrRecordNotRetryable), expectedCode: http.StatusConflict},
		{name: "in progress", err: fmt.Errorf("%w: ord_1", royalty.ErrSettlementInProgress), expectedCode: http.StatusLocked},
		{name: "unknown record", err: apierror.NewAPIError(apierror.ErrNotFound, "settlement record 'stl_1' not found", nil), expectedCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, engine := setupRouter(t, nil)
			if tt.err != nil {
				engine.On("ManualRetry", mock.Anything, "stl_1", "ops").Return(nil, tt.err).Once()
			} else {
				engine.On("ManualRetry", mock.Anything, "stl_1", "ops").
					Return(&royalty.AttemptResult{
						Outcome: royalty.OutcomeSucceeded,
						Record:  &model.SettlementRecord{RecordID: "stl_2", OrderID: "ord_1", Status: model.SettlementStatusSuccess},
					}, nil).Once()
			}

			w := doJSON(router, http.MethodPost, "/settlements/stl_1/retry", map[string]string{"operator": "ops"}, nil)
			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.err == nil {
				var body struct {
					Outcome string                 `json:"outcome"`
					Record  model.SettlementRecord `json:"record"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "succeeded", body.Outcome)
				assert.Equal(t, "stl_2", body.Record.RecordID)
			}
			engine.AssertExpectations(t)
		})
	}
}

func TestRetrySettlement_RequiresOperator(t *testing.T) {
	router, engine := setupRouter(t, nil)
	w := doJSON(router, http.MethodPost, "/settlements/stl_1/retry", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	engine.AssertNotCalled(t, "ManualRetry", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOrderSettlement(t *testing.T) {
	router, engine := setupRouter(t, nil)
	engine.On("QueryStatus", mock.Anything, "ord_1").
		Return(&model.SettlementRecord{RecordID: "stl_1", OrderID: "ord_1", Status: model.SettlementStatusFailed, ErrorCode: "ACCOUNT_FROZEN"}, nil).Once()
	engine.On("QueryStatus", mock.Anything, "ord_missing").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "not found", nil)).Once()

	w := doJSON(router, http.MethodGet, "/orders/ord_1/settlement", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var record model.SettlementRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, model.SettlementStatusFailed, record.Status)
	assert.Equal(t, "ACCOUNT_FROZEN", record.ErrorCode)

	w = doJSON(router, http.MethodGet, "/orders/ord_missing/settlement", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecureMode(t *testing.T) {
	router, engine := setupRouter(t, &config.Configuration{
		ProjectName: "royalty-test",
		Server:      config.ServerConfig{Secure: true, SecretKey: "s3cret"},
	})
	engine.On("QueryStatus", mock.Anything, "ord_1").Return(&model.SettlementRecord{RecordID: "stl_1"}, nil).Once()

	w := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/orders/ord_1/settlement", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/orders/ord_1/settlement", nil, map[string]string{"X-Royalty-Key": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
}
