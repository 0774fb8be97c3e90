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
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paysplit/royalty/gateway"
	"github.com/paysplit/royalty/internal/apierror"
	redlock "github.com/paysplit/royalty/internal/lock"
	"github.com/paysplit/royalty/internal/notification"
	"github.com/paysplit/royalty/model"
)

var (
	ErrMissingTradeReference = errors.New("order has no trade reference")
	ErrInvalidPayeeAccount   = errors.New("payee account is incomplete")
	ErrSettlementInProgress  = errors.New("settlement already in progress for order")
	ErrRecordNotRetryable    = errors.New("settlement record is not in a retryable state")
)

// Error codes stored on records for failures detected before or around the provider call.
const (
	CodeConfigurationError = "CONFIGURATION_ERROR"
	CodeStaleProcessing    = "STALE_PROCESSING"
)

// Outcome is where a single attempt ended.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeFailedRetryable  Outcome = "failed_retryable"
	OutcomeFailedTerminal   Outcome = "failed_terminal"
	OutcomeAlreadySucceeded Outcome = "already_succeeded"
	OutcomePending          Outcome = "pending"
	OutcomeDropped          Outcome = "dropped"
	OutcomeSnapshot         Outcome = "snapshot"
	OutcomeSkipped          Outcome = "skipped"
)

// AttemptResult describes one processed order.
type AttemptResult struct {
	Outcome        Outcome                 `json:"outcome"`
	Record         *model.SettlementRecord `json:"record,omitempty"`
	Classification *Classification        `json:"-"`
}

type attemptOptions struct {
	operator        string
	retryCount      int
	pendingAttempts int
	bypassCap       bool
	// replaceRecordID is the FAILED record the attempt supersedes. It is
	// deleted once the new record exists.
	replaceRecordID string
}

// Enqueue pushes an order onto the main queue.
func (r *Royalty) Enqueue(ctx context.Context, orderID, operator string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "order id is required", nil)
	}
	task := model.MainTask{OrderID: orderID, Operator: operator, EnqueuedAt: r.now()}
	if err := r.queues.Main.Push(ctx, task); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue order for settlement", err)
	}
	logrus.WithFields(logrus.Fields{"order": orderID, "operator": operator}).Info("order enqueued for settlement")
	return nil
}

// QueryStatus returns the latest settlement record of an order.
func (r *Royalty) QueryStatus(ctx context.Context, orderID string) (*model.SettlementRecord, error) {
	return r.datasource.LatestSettlementRecord(ctx, orderID)
}

// ManualRetry runs a new attempt for the order of a FAILED record right away.
// The automatic failure cap does not apply. The FAILED record is only removed
// once the attempt has created its replacement; outcomes that stop earlier
// leave it in place and return it with the outcome.
func (r *Royalty) ManualRetry(ctx context.Context, recordID, operator string) (*AttemptResult, error) {
	record, err := r.datasource.GetSettlementRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != model.SettlementStatusFailed {
		return nil, fmt.Errorf("%w: record %s is %s", ErrRecordNotRetryable, recordID, record.Status)
	}

	lease, err := r.locker.Acquire(ctx, record.OrderID)
	if err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, fmt.Errorf("%w: %s", ErrSettlementInProgress, record.OrderID)
		}
		return nil, err
	}
	defer r.release(ctx, lease)

	r.audit(ctx, &model.Order{OrderID: record.OrderID, PlatformOrderNo: record.PlatformOrderNo}, model.LogLevelInfo, NodeManualRetry, map[string]interface{}{
		"record_id":  recordID,
		"operator":   operator,
		"error_code": record.ErrorCode,
	})

	result, err := r.attempt(ctx, record.OrderID, attemptOptions{operator: operator, bypassCap: true, replaceRecordID: recordID})
	if err != nil {
		return nil, err
	}
	if result.Record == nil {
		result.Record = record
	}
	return result, nil
}

func (r *Royalty) release(ctx context.Context, lease *redlock.Lease) {
	if err := lease.Release(ctx); err != nil {
		logrus.WithField("lock", lease.Key()).Warnf("failed to release settlement lock: %v", err)
	}
}

// attempt runs one settlement attempt for orderID. The caller holds the order lock.
func (r *Royalty) attempt(ctx context.Context, orderID string, opts attemptOptions) (*AttemptResult, error) {
	ctx, span := otel.Tracer("royalty").Start(ctx, "SettlementAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("retry.count", opts.retryCount))

	log := logrus.WithField("order", orderID)

	order, err := r.datasource.GetOrder(ctx, orderID)
	if err != nil {
		if apierror.IsNotFound(err) {
			log.Warn("order not found, dropping settlement task")
			return &AttemptResult{Outcome: OutcomeDropped}, nil
		}
		span.RecordError(err)
		return nil, err
	}

	succeeded, err := r.datasource.HasSuccessfulSettlement(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if succeeded {
		log.Info("order already settled, nothing to do")
		return &AttemptResult{Outcome: OutcomeAlreadySucceeded}, nil
	}

	if !order.IsPaid() {
		return r.schedulePending(ctx, order, opts.pendingAttempts, PreconditionNotPaid)
	}

	subject, err := r.datasource.GetSubject(ctx, order.SubjectID)
	if err != nil && !apierror.IsNotFound(err) {
		span.RecordError(err)
		return nil, err
	}
	switch {
	case subject == nil:
		return r.snapshot(ctx, order, nil, PreconditionPayeeMissing, "")
	case !subject.IsEnabled():
		return r.snapshot(ctx, order, subject, PreconditionPayeeDisabled, subject.DisabledReason)
	case !subject.RoyaltyEnabled():
		return r.snapshot(ctx, order, subject, PreconditionRoyaltyDisabled, "")
	}

	if !opts.bypassCap {
		failures, err := r.datasource.CountFailedSettlements(ctx, orderID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if opts.replaceRecordID != "" && failures > 0 {
			failures--
		}
		if failures >= r.cfg.MaxAutoFailures {
			log.Warnf("order has %d failed settlements, skipping until retried manually", failures)
			r.audit(ctx, order, model.LogLevelWarning, NodeSettlementSkipped, map[string]interface{}{
				"failed_settlements": failures,
				"limit":              r.cfg.MaxAutoFailures,
			})
			return &AttemptResult{Outcome: OutcomeSkipped}, nil
		}
	}

	split, err := CalculateSplit(order.Amount, subject.RoyaltyMode, subject.RoyaltyRate, r.cfg.HandlingFeePermille)
	if err != nil {
		log.Errorf("split calculation failed: %v", err)
		return r.snapshot(ctx, order, subject, PreconditionInvalidSplit, err.Error())
	}
	if split.RoyaltyCents == 0 {
		return r.snapshot(ctx, order, subject, PreconditionRoyaltyDisabled, "computed royalty is zero")
	}

	payee, err := r.datasource.GetPayeeAccount(ctx, subject.AgentID)
	if err != nil && !apierror.IsNotFound(err) {
		span.RecordError(err)
		return nil, err
	}

	record, err := r.prepareRecord(ctx, order, subject, payee, split, opts.operator)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	r.dropReplacedRecord(ctx, record, opts.replaceRecordID)

	if order.TradeReference() == "" {
		return r.failConfiguration(ctx, order, record, ErrMissingTradeReference)
	}
	if !payee.IsComplete() {
		return r.failConfiguration(ctx, order, record, ErrInvalidPayeeAccount)
	}

	if err := r.datasource.MarkSettlementProcessing(ctx, record.RecordID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	record.Status = model.SettlementStatusProcessing

	r.audit(ctx, order, model.LogLevelInfo, NodeSettlementStarted, map[string]interface{}{
		"record_id":      record.RecordID,
		"royalty_amount": model.FormatCents(split.RoyaltyCents),
		"total_amount":   model.FormatCents(split.TotalCents),
		"payee_account":  payee.PayeeAccount,
		"retry_count":    opts.retryCount,
		"operator":       opts.operator,
	})

	result, err := r.gateway.Settle(ctx, model.SettleRequest{
		TradeReference: order.TradeReference(),
		OrderReference: order.PlatformOrderNo,
		AmountCents:    split.RoyaltyCents,
		PayeeAccount:   payee.PayeeAccount,
		PayeeName:      payee.PayeeName,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidRequest) {
			return r.failConfiguration(ctx, order, record, err)
		}
		span.RecordError(err)
		return nil, err
	}

	if result.Success {
		return r.succeed(ctx, order, record, result)
	}
	return r.fail(ctx, order, subject, record, result, opts)
}

// prepareRecord reuses the latest PENDING record of the order or creates a new one.
func (r *Royalty) prepareRecord(ctx context.Context, order *model.Order, subject *model.Subject, payee *model.PayeeAccount, split Split, operator string) (*model.SettlementRecord, error) {
	record := &model.SettlementRecord{
		OrderID:         order.OrderID,
		PlatformOrderNo: order.PlatformOrderNo,
		TradeNo:         order.TradeNo,
		SubjectID:       subject.SubjectID,
		RoyaltyMode:     subject.RoyaltyMode,
		RoyaltyRate:     subject.RoyaltyRate,
		TotalAmount:     split.TotalCents,
		FeeAmount:       split.FeeCents,
		RoyaltyAmount:   split.RoyaltyCents,
		PrincipalAmount: split.PrincipalCents,
		Status:          model.SettlementStatusPending,
		Operator:        operator,
	}
	if payee != nil {
		record.PayeeName = payee.PayeeName
		record.PayeeAccount = payee.PayeeAccount
	}

	latest, err := r.datasource.LatestSettlementRecord(ctx, order.OrderID)
	if err != nil && !apierror.IsNotFound(err) {
		return nil, err
	}
	if latest != nil && latest.Status == model.SettlementStatusPending {
		record.RecordID = latest.RecordID
		record.CreatedAt = latest.CreatedAt
		if err := r.datasource.UpdateSettlementAttempt(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}
	return r.datasource.CreateSettlementRecord(ctx, record)
}

func (r *Royalty) dropReplacedRecord(ctx context.Context, record *model.SettlementRecord, replaced string) {
	if replaced == "" || replaced == record.RecordID {
		return
	}
	if err := r.datasource.DeleteSettlementRecord(ctx, replaced); err != nil && !apierror.IsNotFound(err) {
		logrus.WithFields(logrus.Fields{"order": record.OrderID, "record": record.RecordID, "replaced": replaced}).
			Warnf("superseded settlement record could not be removed: %v", err)
	}
}

func (r *Royalty) failConfiguration(ctx context.Context, order *model.Order, record *model.SettlementRecord, cause error) (*AttemptResult, error) {
	logrus.WithFields(logrus.Fields{"order": order.OrderID, "record": record.RecordID}).Errorf("settlement configuration error: %v", cause)

	if err := r.markFailed(ctx, record, CodeConfigurationError, cause.Error()); err != nil {
		return nil, err
	}
	r.audit(ctx, order, model.LogLevelError, NodeSettlementResult, map[string]interface{}{
		"record_id":  record.RecordID,
		"status":     string(model.SettlementStatusFailed),
		"error_code": CodeConfigurationError,
		"message":    cause.Error(),
	})
	return &AttemptResult{Outcome: OutcomeFailedTerminal, Record: record}, nil
}

func (r *Royalty) markFailed(ctx context.Context, record *model.SettlementRecord, code, message string) error {
	if err := r.datasource.MarkSettlementFailed(ctx, record.RecordID, code, message); err != nil {
		return err
	}
	record.Status = model.SettlementStatusFailed
	record.ErrorCode = code
	record.ErrorMessage = message
	return nil
}

func (r *Royalty) succeed(ctx context.Context, order *model.Order, record *model.SettlementRecord, result *model.SettleResult) (*AttemptResult, error) {
	if err := r.datasource.MarkSettlementSuccess(ctx, record.RecordID, result.ProviderRef); err != nil {
		logrus.WithFields(logrus.Fields{"order": order.OrderID, "record": record.RecordID, "provider_ref": result.ProviderRef}).
			Errorf("provider accepted the settlement but the record could not be updated: %v", err)
		notification.NotifyError(fmt.Errorf("order %s settled with provider ref %s but record %s was not updated: %w",
			order.OrderID, result.ProviderRef, record.RecordID, err))
		return nil, err
	}
	record.Status = model.SettlementStatusSuccess
	record.ProviderRef = result.ProviderRef

	logrus.WithFields(logrus.Fields{
		"order":        order.OrderID,
		"record":       record.RecordID,
		"provider_ref": result.ProviderRef,
		"royalty":      model.FormatCents(record.RoyaltyAmount),
	}).Info("royalty settled")

	r.audit(ctx, order, model.LogLevelInfo, NodeSettlementResult, map[string]interface{}{
		"record_id":    record.RecordID,
		"status":       string(model.SettlementStatusSuccess),
		"provider_ref": result.ProviderRef,
	})
	return &AttemptResult{Outcome: OutcomeSucceeded, Record: record}, nil
}

func (r *Royalty) fail(ctx context.Context, order *model.Order, subject *model.Subject, record *model.SettlementRecord, result *model.SettleResult, opts attemptOptions) (*AttemptResult, error) {
	class := Classify(result.SubCode, result.Message)
	code := class.Code
	if code == "" {
		code = result.SubCode
	}

	if err := r.markFailed(ctx, record, code, result.Message); err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"order":  order.OrderID,
		"record": record.RecordID,
		"code":   code,
		"class":  class.Class.String(),
	})
	log.Warnf("settlement failed: %s", result.Message)

	r.audit(ctx, order, model.LogLevelError, NodeSettlementResult, map[string]interface{}{
		"record_id":   record.RecordID,
		"status":      string(model.SettlementStatusFailed),
		"error_code":  code,
		"message":     result.Message,
		"class":       class.Class.String(),
		"retry_count": opts.retryCount,
	})

	outcome := &AttemptResult{Outcome: OutcomeFailedTerminal, Record: record, Classification: &class}

	switch {
	case class.Retryable():
		if opts.retryCount < r.cfg.MaxRetries {
			if err := r.scheduleRetry(ctx, order, record, opts.retryCount+1); err != nil {
				return nil, err
			}
			outcome.Outcome = OutcomeFailedRetryable
			return outcome, nil
		}
		log.Warnf("retry limit of %d reached", r.cfg.MaxRetries)
		r.alertOrderFailure(ctx, order, code, fmt.Sprintf("retry limit reached: %s", result.Message))
	case class.DisablesSubject():
		reason := fmt.Sprintf("auto disabled after settlement error %s: %s", code, result.Message)
		if _, err := r.disableSubject(ctx, subject, order, code, reason); err != nil {
			log.Errorf("subject could not be disabled: %v", err)
		}
		r.alertSubjectDisabled(ctx, subject, order, code, result.Message)
	case class.Class == ClassPermission:
		r.alertSubjectError(ctx, subject, order, code, result.Message)
	default:
		r.alertOrderFailure(ctx, order, code, result.Message)
	}
	return outcome, nil
}

func (r *Royalty) scheduleRetry(ctx context.Context, order *model.Order, record *model.SettlementRecord, retryCount int) error {
	delay := r.cfg.RetryDelay()
	task := model.RetryTask{
		OrderID:            order.OrderID,
		SettlementRecordID: record.RecordID,
		RetryCount:         retryCount,
		NextAttemptAt:      r.now().Add(delay),
	}
	if err := r.queues.Retry.Push(ctx, task); err != nil {
		return err
	}

	r.audit(ctx, order, model.LogLevelInfo, NodeRetryScheduled, map[string]interface{}{
		"record_id":       record.RecordID,
		"retry_count":     retryCount,
		"next_attempt_at": task.NextAttemptAt.Format("2006-01-02 15:04:05"),
	})
	return nil
}

func (r *Royalty) schedulePending(ctx context.Context, order *model.Order, attempts int, reason Precondition) (*AttemptResult, error) {
	log := logrus.WithFields(logrus.Fields{"order": order.OrderID, "pay_status": order.PayStatus, "attempts": attempts})

	if attempts >= r.cfg.MaxPendingAttempts {
		log.Warn("order is still not payable after the last pending check, giving up")
		r.audit(ctx, order, model.LogLevelWarning, NodePendingDropped, map[string]interface{}{
			"reason":           string(reason),
			"pending_attempts": attempts,
		})
		return &AttemptResult{Outcome: OutcomeDropped}, nil
	}

	now := r.now()
	task := model.PendingTask{
		OrderID:         order.OrderID,
		PendingAttempts: attempts + 1,
		Reason:          string(reason),
		ScheduledAt:     now,
		NextAttemptAt:   now.Add(r.cfg.PendingDelay()),
	}
	if err := r.queues.Pending.Push(ctx, task); err != nil {
		return nil, err
	}

	log.Info("order not payable yet, parked on the pending queue")
	r.audit(ctx, order, model.LogLevelInfo, NodePendingScheduled, map[string]interface{}{
		"reason":           string(reason),
		"pending_attempts": task.PendingAttempts,
	})
	return &AttemptResult{Outcome: OutcomePending}, nil
}

func (r *Royalty) snapshot(ctx context.Context, order *model.Order, subject *model.Subject, reason Precondition, detail string) (*AttemptResult, error) {
	record, err := r.ensureSnapshot(ctx, order, subject, reason, detail)
	if err != nil {
		return nil, err
	}
	return &AttemptResult{Outcome: OutcomeSnapshot, Record: record}, nil
}
