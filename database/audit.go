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
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/paysplit/royalty/internal/apierror"
	"github.com/paysplit/royalty/model"
)

// RecordOrderLog appends an entry to the order audit trail.
func (d Datasource) RecordOrderLog(ctx context.Context, entry *model.OrderLog) error {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Recording order log")
	defer span.End()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal log context", err)
	}

	err = d.Conn.QueryRowContext(ctx, `
		INSERT INTO royalty.order_logs (trace_id, order_ref, category, level, node, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, entry.TraceID, entry.OrderRef, entry.Category, entry.Level, entry.Node, contextJSON, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record order log", err)
	}
	return nil
}
