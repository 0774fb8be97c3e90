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

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/paysplit/royalty/internal/apierror"
	"github.com/paysplit/royalty/model"
)

func payeeCacheKey(agentID string) string {
	return "payee-account:" + agentID
}

// GetPayeeAccount loads the beneficiary configured for an agent, through the cache when one is set.
func (d Datasource) GetPayeeAccount(ctx context.Context, agentID string) (*model.PayeeAccount, error) {
	ctx, span := otel.Tracer("royalty.database").Start(ctx, "Fetching payee account")
	defer span.End()

	if d.Cache != nil {
		cached := &model.PayeeAccount{}
		found, err := d.Cache.Get(ctx, payeeCacheKey(agentID), cached)
		if err != nil {
			logrus.Warnf("payee account cache read failed for agent %s: %v", agentID, err)
		} else if found {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT agent_id, COALESCE(payee_name, ''), COALESCE(payee_account, '')
		FROM royalty.payee_accounts
		WHERE agent_id = $1
	`, agentID)

	account := &model.PayeeAccount{}
	err := row.Scan(&account.AgentID, &account.PayeeName, &account.PayeeAccount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payee account for agent '%s' not found", agentID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payee account", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, payeeCacheKey(agentID), account, d.CacheTTL); err != nil {
			logrus.Warnf("payee account cache write failed for agent %s: %v", agentID, err)
		}
	}
	return account, nil
}
