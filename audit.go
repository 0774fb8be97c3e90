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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty/model"
)

const auditCategory = "royalty"

// Audit nodes written to the shared order log.
const (
	NodeSettlementStarted    = "settlement.started"
	NodeSettlementResult     = "settlement.result"
	NodeSubjectAutoDisabled  = "subject.auto_disabled"
	NodeCompensation         = "settlement.compensation"
	NodeRetryScheduled       = "settlement.retry_scheduled"
	NodeRetryDropped         = "settlement.retry_dropped"
	NodePendingScheduled     = "settlement.pending_scheduled"
	NodePendingDropped       = "settlement.pending_dropped"
	NodeSettlementSkipped    = "settlement.skipped"
	NodeManualRetry          = "settlement.manual_retry"
	NodeStaleProcessingFound = "settlement.stale_processing"
)

// audit writes an order log entry. Failures are logged and never interrupt the attempt.
func (r *Royalty) audit(ctx context.Context, order *model.Order, level model.LogLevel, node string, fields map[string]interface{}) {
	entry := &model.OrderLog{
		Category:  auditCategory,
		Level:     level,
		Node:      node,
		Context:   fields,
		CreatedAt: time.Now(),
	}
	if order != nil {
		entry.TraceID = order.TraceID
		entry.OrderRef = order.PlatformOrderNo
		if entry.OrderRef == "" {
			entry.OrderRef = order.OrderID
		}
	}

	if err := r.datasource.RecordOrderLog(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"node": node, "order": entry.OrderRef}).Warnf("failed to record order log: %v", err)
	}
}
