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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEnqueueSettlement(t *testing.T) {
	tests := []struct {
		name    string
		req     EnqueueSettlement
		wantErr string
	}{
		{name: "valid", req: EnqueueSettlement{OrderID: "ord_1", Operator: "ops"}},
		{name: "operator optional", req: EnqueueSettlement{OrderID: "ord_1"}},
		{name: "missing order", req: EnqueueSettlement{Operator: "ops"}, wantErr: "order_id: cannot be blank."},
		{name: "order too long", req: EnqueueSettlement{OrderID: strings.Repeat("x", 65)}, wantErr: "order_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.ValidateEnqueueSettlement()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateRetrySettlement(t *testing.T) {
	assert.NoError(t, (&RetrySettlement{Operator: "ops"}).ValidateRetrySettlement())
	assert.ErrorContains(t, (&RetrySettlement{}).ValidateRetrySettlement(), "operator: cannot be blank.")
}
