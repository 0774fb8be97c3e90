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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty/internal/apierror"
	redlock "github.com/paysplit/royalty/internal/lock"
	"github.com/paysplit/royalty/model"
)

// DrainMainQueue processes one batch of the main queue and returns the number
// of orders that were attempted. Orders whose lock is busy go back to the queue.
func (r *Royalty) DrainMainQueue(ctx context.Context) int {
	tasks, err := r.queues.Main.PopDue(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		logrus.Errorf("failed to pop main queue: %v", err)
	}

	processed := 0
	for _, task := range tasks {
		lease, ok := r.acquireOrPushBack(ctx, task.OrderID, func() error {
			return r.queues.Main.PushBack(ctx, task)
		})
		if !ok {
			continue
		}

		_, err := r.attempt(ctx, task.OrderID, attemptOptions{
			operator:        task.Operator,
			pendingAttempts: task.PendingAttempts,
		})
		if err != nil {
			logrus.WithField("order", task.OrderID).Errorf("settlement attempt abandoned: %v", err)
		}
		r.release(ctx, lease)
		processed++
	}
	return processed
}

// DrainRetryQueue processes the due head of the retry queue. An entry runs only
// while its FAILED record is still the latest record of the order; the new
// attempt replaces that record. Stale entries are dropped.
func (r *Royalty) DrainRetryQueue(ctx context.Context) int {
	tasks, err := r.queues.Retry.PopDue(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		logrus.Errorf("failed to pop retry queue: %v", err)
	}

	processed := 0
	for _, task := range tasks {
		lease, ok := r.acquireOrPushBack(ctx, task.OrderID, func() error {
			return r.queues.Retry.PushBack(ctx, task)
		})
		if !ok {
			continue
		}

		reason, err := r.staleRetryReason(ctx, task)
		if err != nil {
			logrus.WithField("order", task.OrderID).Errorf("retry abandoned, previous record could not be checked: %v", err)
			r.release(ctx, lease)
			continue
		}
		if reason != "" {
			r.dropRetry(ctx, task, reason)
			r.release(ctx, lease)
			processed++
			continue
		}

		_, err = r.attempt(ctx, task.OrderID, attemptOptions{retryCount: task.RetryCount, replaceRecordID: task.SettlementRecordID})
		if err != nil {
			logrus.WithField("order", task.OrderID).Errorf("settlement retry abandoned: %v", err)
		}
		r.release(ctx, lease)
		processed++
	}
	return processed
}

// DrainPendingQueue moves due pending entries back onto the main queue.
func (r *Royalty) DrainPendingQueue(ctx context.Context) int {
	tasks, err := r.queues.Pending.PopDue(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		logrus.Errorf("failed to pop pending queue: %v", err)
	}

	moved := 0
	for _, task := range tasks {
		main := model.MainTask{OrderID: task.OrderID, PendingAttempts: task.PendingAttempts, EnqueuedAt: r.now()}
		if err := r.queues.Main.Push(ctx, main); err != nil {
			logrus.WithField("order", task.OrderID).Errorf("failed to move pending order to the main queue: %v", err)
			if err := r.queues.Pending.PushBack(ctx, task); err != nil {
				logrus.WithField("order", task.OrderID).Errorf("pending entry lost: %v", err)
			}
			continue
		}
		moved++
	}
	return moved
}

// acquireOrPushBack takes the order lock. On a busy lock or a redis error the
// task is handed back through pushBack and false is returned.
func (r *Royalty) acquireOrPushBack(ctx context.Context, orderID string, pushBack func() error) (*redlock.Lease, bool) {
	lease, err := r.locker.Acquire(ctx, orderID)
	if err == nil {
		return lease, true
	}

	log := logrus.WithField("order", orderID)
	if errors.Is(err, redlock.ErrLockHeld) {
		log.Debug("order is locked by another worker, pushing back")
	} else {
		log.Errorf("failed to acquire settlement lock: %v", err)
	}
	if err := pushBack(); err != nil {
		log.Errorf("failed to push order back onto the queue: %v", err)
	}
	return nil, false
}

// Reasons a retry entry no longer applies.
const (
	retryRecordMissing    = "record_missing"
	retryRecordNotFailed  = "record_not_failed"
	retryRecordSuperseded = "record_superseded"
)

// staleRetryReason returns an empty reason when the entry's record is still
// the order's latest FAILED record.
func (r *Royalty) staleRetryReason(ctx context.Context, task model.RetryTask) (string, error) {
	if task.SettlementRecordID == "" {
		return "", nil
	}
	record, err := r.datasource.GetSettlementRecord(ctx, task.SettlementRecordID)
	if err != nil {
		if apierror.IsNotFound(err) {
			return retryRecordMissing, nil
		}
		return "", err
	}
	if record.Status != model.SettlementStatusFailed {
		return retryRecordNotFailed, nil
	}

	latest, err := r.datasource.LatestSettlementRecord(ctx, task.OrderID)
	if err != nil {
		return "", err
	}
	if latest.RecordID != record.RecordID {
		return retryRecordSuperseded, nil
	}
	return "", nil
}

func (r *Royalty) dropRetry(ctx context.Context, task model.RetryTask, reason string) {
	logrus.WithFields(logrus.Fields{
		"order":       task.OrderID,
		"record":      task.SettlementRecordID,
		"retry_count": task.RetryCount,
		"reason":      reason,
	}).Warn("retry entry no longer applies, dropping it")
	r.audit(ctx, &model.Order{OrderID: task.OrderID}, model.LogLevelWarning, NodeRetryDropped, map[string]interface{}{
		"record_id":   task.SettlementRecordID,
		"retry_count": task.RetryCount,
		"reason":      reason,
	})
}

// SettlementProcessor runs the queue drains on independent tickers.
type SettlementProcessor struct {
	royalty *Royalty
	loops   []processorLoop
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

type processorLoop struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)
}

func NewSettlementProcessor(r *Royalty) *SettlementProcessor {
	loops := []processorLoop{
		{name: "main", interval: r.cfg.MainPollInterval(), run: func(ctx context.Context) { r.DrainMainQueue(ctx) }},
		{name: "retry", interval: r.cfg.RetryPollInterval(), run: func(ctx context.Context) { r.DrainRetryQueue(ctx) }},
		{name: "pending", interval: r.cfg.PendingPollInterval(), run: func(ctx context.Context) { r.DrainPendingQueue(ctx) }},
	}
	if r.cfg.EnableReconcile {
		loops = append(loops, processorLoop{name: "reconcile", interval: r.cfg.ReconcilePollInterval(), run: func(ctx context.Context) { r.Reconcile(ctx) }})
	}

	return &SettlementProcessor{
		royalty: r,
		loops:   loops,
		stopCh:  make(chan struct{}),
	}
}

func (p *SettlementProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	for _, loop := range p.loops {
		p.wg.Add(1)
		go func(loop processorLoop) {
			defer p.wg.Done()
			p.run(ctx, loop)
		}(loop)
	}

	logrus.Info("Settlement processor started")
}

func (p *SettlementProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Settlement processor stopped")
}

func (p *SettlementProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SettlementProcessor) run(ctx context.Context, loop processorLoop) {
	ticker := time.NewTicker(loop.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Settlement %s loop context cancelled", loop.name)
			return
		case <-p.stopCh:
			logrus.Infof("Settlement %s loop stop signal received", loop.name)
			return
		case <-ticker.C:
			loop.run(ctx)
		}
	}
}
