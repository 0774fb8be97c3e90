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
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty/internal/apierror"
	"github.com/paysplit/royalty/model"
)

// Precondition is the reason an order was not settled.
type Precondition string

const (
	PreconditionNotPaid          Precondition = "not_paid"
	PreconditionPayeeMissing     Precondition = "payee_missing"
	PreconditionPayeeDisabled    Precondition = "payee_disabled"
	PreconditionRoyaltyDisabled  Precondition = "royalty_disabled"
	PreconditionAlreadySucceeded Precondition = "already_succeeded"
	PreconditionInvalidSplit     Precondition = "invalid_split"
)

// Code is the error code stored on snapshot records.
func (p Precondition) Code() string {
	return strings.ToUpper(string(p))
}

var preconditionMessages = map[Precondition]string{
	PreconditionPayeeMissing:    "payee entity not found",
	PreconditionPayeeDisabled:   "payee entity is disabled",
	PreconditionRoyaltyDisabled: "royalty is not enabled for the payee entity",
	PreconditionInvalidSplit:    "royalty split could not be computed",
}

// ensureSnapshot makes sure an order that failed a precondition is visible as a
// FAILED settlement record. A SUCCESS record is never touched.
func (r *Royalty) ensureSnapshot(ctx context.Context, order *model.Order, subject *model.Subject, reason Precondition, detail string) (*model.SettlementRecord, error) {
	message := preconditionMessages[reason]
	if detail != "" {
		message += ": " + detail
	}

	latest, err := r.datasource.LatestSettlementRecord(ctx, order.OrderID)
	if err != nil && !apierror.IsNotFound(err) {
		return nil, err
	}

	if latest != nil {
		if latest.IsFinal() {
			return latest, nil
		}
		if err := r.datasource.MarkSettlementFailed(ctx, latest.RecordID, reason.Code(), message); err != nil {
			return nil, err
		}
		latest.Status = model.SettlementStatusFailed
		latest.ErrorCode = reason.Code()
		latest.ErrorMessage = message
		r.auditCompensation(ctx, order, latest, reason, false)
		return latest, nil
	}

	total := order.Amount.Shift(2).Round(0).IntPart()
	snapshot := &model.SettlementRecord{
		OrderID:         order.OrderID,
		PlatformOrderNo: order.PlatformOrderNo,
		TradeNo:         order.TradeNo,
		SubjectID:       order.SubjectID,
		TotalAmount:     total,
		PrincipalAmount: total,
		Status:          model.SettlementStatusFailed,
		ErrorCode:       reason.Code(),
		ErrorMessage:    message,
	}
	if subject != nil {
		snapshot.RoyaltyMode = subject.RoyaltyMode
		snapshot.RoyaltyRate = subject.RoyaltyRate
	}

	created, err := r.datasource.CreateSettlementRecord(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	r.auditCompensation(ctx, order, created, reason, true)
	return created, nil
}

func (r *Royalty) auditCompensation(ctx context.Context, order *model.Order, record *model.SettlementRecord, reason Precondition, created bool) {
	logrus.WithFields(logrus.Fields{
		"order":  order.OrderID,
		"record": record.RecordID,
		"reason": reason,
	}).Info("settlement snapshot recorded")

	r.audit(ctx, order, model.LogLevelWarning, NodeCompensation, map[string]interface{}{
		"record_id":  record.RecordID,
		"reason":     string(reason),
		"created":    created,
		"checked_at": time.Now().Format(time.RFC3339),
	})
}
