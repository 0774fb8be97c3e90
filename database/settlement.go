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

const settlementColumns = `record_id, order_id, platform_order_no, trade_no, subject_id, royalty_mode, royalty_rate,
	total_amount, fee_amount, royalty_amount, principal_amount, payee_name, payee_account, status,
	provider_ref, error_code, error_message, operator, created_at, updated_at, settled_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSettlementRecord(row rowScanner) (*model.SettlementRecord, error) {
	record := &model.SettlementRecord{}
	var settledAt sql.NullTime
	err := row.Scan(
		&record.RecordID, &record.OrderID, &record.PlatformOrderNo, &record.TradeNo, &record.SubjectID,
		&record.RoyaltyMode, &record.RoyaltyRate, &record.TotalAmount, &record.FeeAmount, &record.RoyaltyAmount,
		&record.PrincipalAmount, &record.PayeeName, &record.PayeeAccount, &record.Status, &record.ProviderRef,
		&record.ErrorCode, &record.ErrorMessage, &record.Operator, &record.CreatedAt, &record.UpdatedAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}
	if settledAt.Valid {
		record.SettledAt = &settledAt.Time
	}
	return record, nil
}

func (d Datasource) CreateSettlementRecord(ctx context.Context, record *model.SettlementRecord) (*model.SettlementRecord, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Creating settlement record")
	defer span.End()

	if record.RecordID == "" {
		record.RecordID = model.GenerateUUIDWithSuffix("stl")
	}
	if record.Status == "" {
		record.Status = model.SettlementStatusPending
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO royalty.settlement_records (`+settlementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		record.RecordID, record.OrderID, record.PlatformOrderNo, record.TradeNo, record.SubjectID,
		record.RoyaltyMode, record.RoyaltyRate, record.TotalAmount, record.FeeAmount, record.RoyaltyAmount,
		record.PrincipalAmount, record.PayeeName, record.PayeeAccount, record.Status, record.ProviderRef,
		record.ErrorCode, record.ErrorMessage, record.Operator, record.CreatedAt, record.UpdatedAt, record.SettledAt,
	)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create settlement record", err)
	}
	return record, nil
}

func (d Datasource) GetSettlementRecord(ctx context.Context, recordID string) (*model.SettlementRecord, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching settlement record")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+settlementColumns+`
		FROM royalty.settlement_records
		WHERE record_id = $1
	`, recordID)

	record, err := scanSettlementRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Settlement record with ID '%s' not found", recordID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve settlement record", err)
	}
	return record, nil
}

// LatestSettlementRecord returns the most recently created record of an order.
func (d Datasource) LatestSettlementRecord(ctx context.Context, orderID string) (*model.SettlementRecord, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching latest settlement record")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+settlementColumns+`
		FROM royalty.settlement_records
		WHERE order_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, orderID)

	record, err := scanSettlementRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No settlement record for order '%s'", orderID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve settlement record", err)
	}
	return record, nil
}

func (d Datasource) HasSuccessfulSettlement(ctx context.Context, orderID string) (bool, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Checking for successful settlement")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM royalty.settlement_records
			WHERE order_id = $1
			AND status = 'SUCCESS'
		)
	`, orderID).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check settlement status", err)
	}
	return exists, nil
}

func (d Datasource) CountFailedSettlements(ctx context.Context, orderID string) (int, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Counting failed settlements")
	defer span.End()

	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM royalty.settlement_records
		WHERE order_id = $1
		AND status = 'FAILED'
	`, orderID).Scan(&count)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count failed settlements", err)
	}
	return count, nil
}

func (d Datasource) UpdateSettlementAttempt(ctx context.Context, record *model.SettlementRecord) error {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Updating settlement attempt")
	defer span.End()

	record.UpdatedAt = time.Now()
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE royalty.settlement_records
		SET royalty_mode = $2, royalty_rate = $3, total_amount = $4, fee_amount = $5, royalty_amount = $6,
			principal_amount = $7, payee_name = $8, payee_account = $9, status = $10, operator = $11,
			error_code = '', error_message = '', updated_at = $12
		WHERE record_id = $1
		AND status <> 'SUCCESS'
	`,
		record.RecordID, record.RoyaltyMode, record.RoyaltyRate, record.TotalAmount, record.FeeAmount,
		record.RoyaltyAmount, record.PrincipalAmount, record.PayeeName, record.PayeeAccount, record.Status,
		record.Operator, record.UpdatedAt,
	)
	return checkSettlementUpdate(result, err, record.RecordID)
}

func (d Datasource) MarkSettlementProcessing(ctx context.Context, recordID string) error {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Marking settlement processing")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE royalty.settlement_records
		SET status = 'PROCESSING', updated_at = $2
		WHERE record_id = $1
		AND status <> 'SUCCESS'
	`, recordID, time.Now())
	return checkSettlementUpdate(result, err, recordID)
}

func (d Datasource) MarkSettlementSuccess(ctx context.Context, recordID, providerRef string) error {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Marking settlement success")
	defer span.End()

	now := time.Now()
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE royalty.settlement_records
		SET status = 'SUCCESS', provider_ref = $2, error_code = '', error_message = '', settled_at = $3, updated_at = $3
		WHERE record_id = $1
		AND status <> 'SUCCESS'
	`, recordID, providerRef, now)
	return checkSettlementUpdate(result, err, recordID)
}

func (d Datasource) MarkSettlementFailed(ctx context.Context, recordID, code, message string) error {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Marking settlement failed")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE royalty.settlement_records
		SET status = 'FAILED', error_code = $2, error_message = $3, updated_at = $4
		WHERE record_id = $1
		AND status <> 'SUCCESS'
	`, recordID, code, message, time.Now())
	return checkSettlementUpdate(result, err, recordID)
}

// DeleteSettlementRecord removes a superseded attempt. SUCCESS records are never deleted.
func (d Datasource) DeleteSettlementRecord(ctx context.Context, recordID string) error {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Deleting settlement record")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM royalty.settlement_records
		WHERE record_id = $1
		AND status <> 'SUCCESS'
	`, recordID)
	return checkSettlementUpdate(result, err, recordID)
}

func (d Datasource) GetStaleProcessingSettlements(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.SettlementRecord, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching stale processing settlements")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+settlementColumns+`
		FROM royalty.settlement_records
		WHERE status = 'PROCESSING'
		AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, updatedBefore, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stale settlements", err)
	}
	defer rows.Close()

	var records []*model.SettlementRecord
	for rows.Next() {
		record, err := scanSettlementRecord(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan settlement record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate settlement records", err)
	}
	return records, nil
}

func checkSettlementUpdate(result sql.Result, err error, recordID string) error {
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update settlement record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Settlement record '%s' is missing or already settled", recordID), nil)
	}
	return nil
}
