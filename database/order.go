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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/paysplit/royalty/internal/apierror"
	"github.com/paysplit/royalty/model"
)

func (d Datasource) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching order")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT order_id, platform_order_no, COALESCE(trade_no, ''), pay_status, amount, subject_id,
			COALESCE(trace_id, ''), paid_at, created_at
		FROM royalty.orders
		WHERE order_id = $1
	`, orderID)

	order := &model.Order{}
	var paidAt sql.NullTime
	err := row.Scan(&order.OrderID, &order.PlatformOrderNo, &order.TradeNo, &order.PayStatus, &order.Amount,
		&order.SubjectID, &order.TraceID, &paidAt, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with ID '%s' not found", orderID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}

// GetUnsettledPaidOrders lists paid orders of royalty-enabled subjects that
// have no settlement record at all, oldest payment first.
func (d Datasource) GetUnsettledPaidOrders(ctx context.Context, paidBefore time.Time, limit int) ([]string, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching unsettled paid orders")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT o.order_id
		FROM royalty.orders o
		JOIN royalty.subjects s ON s.subject_id = o.subject_id
		WHERE o.pay_status = 'PAID'
		AND o.paid_at <= $1
		AND s.status = 'ENABLED'
		AND s.royalty_mode <> 'NONE'
		AND NOT EXISTS (
			SELECT 1 FROM royalty.settlement_records r WHERE r.order_id = o.order_id
		)
		ORDER BY o.paid_at ASC
		LIMIT $2
	`, paidBefore, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve unsettled orders", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate orders", err)
	}
	return ids, nil
}
