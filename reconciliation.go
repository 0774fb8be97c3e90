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
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paysplit/royalty/internal/apierror"
	redlock "github.com/paysplit/royalty/internal/lock"
	"github.com/paysplit/royalty/model"
)

const reconcileOperator = "reconciliation"

// ReconciliationReport summarises one reconciliation pass.
type ReconciliationReport struct {
	Enqueued     int `json:"enqueued"`
	StaleFlagged int `json:"stale_flagged"`
}

// Reconcile looks for orders the queues lost track of.
//
// Paid orders past the grace period that have no settlement record at all are
// put back on the main queue. Records stuck in PROCESSING past the stale
// threshold are marked FAILED and alerted; they are not settled again because
// the provider may already have moved the funds.
func (r *Royalty) Reconcile(ctx context.Context) ReconciliationReport {
	ctx, span := otel.Tracer("royalty").Start(ctx, "Reconcile")
	defer span.End()

	var report ReconciliationReport
	now := r.now()

	orderIDs, err := r.datasource.GetUnsettledPaidOrders(ctx, now.Add(-r.cfg.PaidGrace()), r.cfg.ReconcileBatchSize)
	if err != nil {
		logrus.Errorf("reconciliation: failed to load unsettled orders: %v", err)
	}
	for _, id := range orderIDs {
		if err := r.Enqueue(ctx, id, reconcileOperator); err != nil {
			logrus.WithField("order", id).Errorf("reconciliation: failed to enqueue order: %v", err)
			continue
		}
		report.Enqueued++
	}

	stale, err := r.datasource.GetStaleProcessingSettlements(ctx, now.Add(-r.cfg.StaleThreshold()), r.cfg.ReconcileBatchSize)
	if err != nil {
		logrus.Errorf("reconciliation: failed to load stale settlements: %v", err)
	}
	for _, record := range stale {
		flagged, err := r.flagStale(ctx, record)
		if err != nil {
			logrus.WithFields(logrus.Fields{"order": record.OrderID, "record": record.RecordID}).Errorf("reconciliation: %v", err)
			continue
		}
		if flagged {
			report.StaleFlagged++
		}
	}

	span.SetAttributes(attribute.Int("reconcile.enqueued", report.Enqueued), attribute.Int("reconcile.stale", report.StaleFlagged))
	if report.Enqueued > 0 || report.StaleFlagged > 0 {
		logrus.Infof("reconciliation: %d orders enqueued, %d stale settlements flagged", report.Enqueued, report.StaleFlagged)
	}
	return report
}

func (r *Royalty) flagStale(ctx context.Context, record *model.SettlementRecord) (bool, error) {
	lease, err := r.locker.Acquire(ctx, record.OrderID)
	if err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			// an attempt is still running for this order
			return false, nil
		}
		return false, err
	}
	defer r.release(ctx, lease)

	message := fmt.Sprintf("settlement stuck in PROCESSING since %s, provider outcome unknown", record.UpdatedAt.Format("2006-01-02 15:04:05"))
	if err := r.datasource.MarkSettlementFailed(ctx, record.RecordID, CodeStaleProcessing, message); err != nil {
		if apierror.HasCode(err, apierror.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	order, err := r.datasource.GetOrder(ctx, record.OrderID)
	if err != nil {
		order = &model.Order{OrderID: record.OrderID, PlatformOrderNo: record.PlatformOrderNo}
	}

	r.audit(ctx, order, model.LogLevelError, NodeStaleProcessingFound, map[string]interface{}{
		"record_id":  record.RecordID,
		"updated_at": record.UpdatedAt.Format("2006-01-02 15:04:05"),
	})
	r.alertOrderFailure(ctx, order, CodeStaleProcessing, message+". Check the provider before retrying manually.")
	return true, nil
}
