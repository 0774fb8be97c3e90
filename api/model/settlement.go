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
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxIdentifierLength = 64

type EnqueueSettlement struct {
	OrderID  string `json:"order_id"`
	Operator string `json:"operator"`
}

type RetrySettlement struct {
	Operator string `json:"operator"`
}

func (e *EnqueueSettlement) ValidateEnqueueSettlement() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.OrderID, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&e.Operator, validation.Length(0, maxIdentifierLength)),
	)
}

func (r *RetrySettlement) ValidateRetrySettlement() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Operator, validation.Required, validation.Length(1, maxIdentifierLength)),
	)
}
