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

func (d Datasource) GetSubject(ctx context.Context, subjectID string) (*model.Subject, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching subject")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT subject_id, name, agent_id, royalty_mode, royalty_rate, status, COALESCE(disabled_reason, ''), updated_at
		FROM royalty.subjects
		WHERE subject_id = $1
	`, subjectID)

	subject := &model.Subject{}
	err := row.Scan(&subject.SubjectID, &subject.Name, &subject.AgentID, &subject.RoyaltyMode, &subject.RoyaltyRate,
		&subject.Status, &subject.DisabledReason, &subject.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Subject with ID '%s' not found", subjectID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve subject", err)
	}
	return subject, nil
}

// DisableSubject flips an ENABLED subject to DISABLED. Disabling an already
// disabled or unknown subject changes nothing and reports false.
func (d Datasource) DisableSubject(ctx context.Context, subjectID, reason string) (bool, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Disabling subject")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE royalty.subjects
		SET status = 'DISABLED', disabled_reason = $2, updated_at = $3
		WHERE subject_id = $1
		AND status = 'ENABLED'
	`, subjectID, reason, time.Now())
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to disable subject", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return rowsAffected > 0, nil
}
