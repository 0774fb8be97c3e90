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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/notification"
	"github.com/paysplit/royalty/model"
)

// TypeRoyaltyAlert is the asynq task type of operator alerts.
const TypeRoyaltyAlert = "royalty:alert"

const (
	orderFailureAlertTTL    = 30 * 24 * time.Hour
	subjectDisabledAlertTTL = 7 * 24 * time.Hour
)

// AlertSink accepts operator alerts. Delivery happens elsewhere and is retried there.
type AlertSink interface {
	EnqueueAlert(ctx context.Context, alert model.Alert) error
}

// AlertQueue publishes alerts as asynq tasks. Critical alerts go to their own queue.
type AlertQueue struct {
	client        *asynq.Client
	queue         string
	criticalQueue string
	maxRetry      int
}

func NewAlertQueue(client *asynq.Client, conf config.QueueConfig) *AlertQueue {
	return &AlertQueue{
		client:        client,
		queue:         conf.AlertQueue,
		criticalQueue: conf.CriticalAlertQueue,
		maxRetry:      conf.AlertMaxRetry,
	}
}

func (q *AlertQueue) newTask(alert model.Alert) (*asynq.Task, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeRoyaltyAlert, payload, asynq.Queue(q.queueFor(alert.Priority)), asynq.MaxRetry(q.maxRetry)), nil
}

func (q *AlertQueue) queueFor(priority model.AlertPriority) string {
	if priority == model.AlertPriorityCritical {
		return q.criticalQueue
	}
	return q.queue
}

func (q *AlertQueue) EnqueueAlert(ctx context.Context, alert model.Alert) error {
	task, err := q.newTask(alert)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	logrus.Infof(" [*] Successfully enqueued alert %q on %s", alert.Title, info.Queue)
	return nil
}

// ProcessAlert delivers an alert task to the notification channel.
func ProcessAlert(ctx context.Context, t *asynq.Task) error {
	var alert model.Alert
	if err := json.Unmarshal(t.Payload(), &alert); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return notification.SendAlert(ctx, alert)
}

func orderFailureAlertKey(orderID string) string {
	return "royalty:failure:notify:" + orderID
}

func subjectDisabledAlertKey(subjectID string) string {
	return "subject:disabled:notify:" + subjectID
}

func subjectErrorAlertKey(subjectID, code string) string {
	return fmt.Sprintf("subject:error:notify:%s:%s", subjectID, strings.ToLower(code))
}

// alertOnce enqueues alert unless key was already claimed. A zero ttl keeps the
// claim forever. The claim is dropped again when the enqueue fails.
func (r *Royalty) alertOnce(ctx context.Context, key string, ttl time.Duration, alert model.Alert) bool {
	claimed, err := r.redis.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		logrus.WithField("key", key).Errorf("alert dedup check failed: %v", err)
		return false
	}
	if !claimed {
		logrus.WithField("key", key).Debug("alert already sent, skipping")
		return false
	}

	if err := r.alerts.EnqueueAlert(ctx, alert); err != nil {
		logrus.WithField("key", key).Errorf("failed to enqueue alert: %v", err)
		if delErr := r.redis.Del(ctx, key).Err(); delErr != nil {
			logrus.WithField("key", key).Warnf("failed to clear alert dedup key: %v", delErr)
		}
		return false
	}
	return true
}

func (r *Royalty) alertOrderFailure(ctx context.Context, order *model.Order, code, message string) bool {
	body := fmt.Sprintf("Order: %s\nPlatform order: %s\nError code: %s\nReason: %s\nTime: %s",
		order.OrderID, order.PlatformOrderNo, valueOrDash(code), message, time.Now().Format(time.DateTime))
	return r.alertOnce(ctx, orderFailureAlertKey(order.OrderID), orderFailureAlertTTL, model.Alert{
		Title:    "Royalty settlement failed",
		Body:     body,
		Priority: model.AlertPriorityHigh,
	})
}

func (r *Royalty) alertSubjectDisabled(ctx context.Context, subject *model.Subject, order *model.Order, code, reason string) bool {
	body := fmt.Sprintf("Subject: %s (%s)\nOrder: %s\nError code: %s\nReason: %s\nTime: %s",
		subject.Name, subject.SubjectID, order.PlatformOrderNo, valueOrDash(code), reason, time.Now().Format(time.DateTime))
	return r.alertOnce(ctx, subjectDisabledAlertKey(subject.SubjectID), subjectDisabledAlertTTL, model.Alert{
		Title:    "Royalty subject disabled",
		Body:     body,
		Priority: model.AlertPriorityCritical,
	})
}

func (r *Royalty) alertSubjectError(ctx context.Context, subject *model.Subject, order *model.Order, code, message string) bool {
	body := fmt.Sprintf("Subject: %s (%s)\nOrder: %s\nError code: %s\nReason: %s\nAction: grant the transfer permission to the merchant application",
		subject.Name, subject.SubjectID, order.PlatformOrderNo, code, message)
	return r.alertOnce(ctx, subjectErrorAlertKey(subject.SubjectID, code), 0, model.Alert{
		Title:    "Royalty permission missing",
		Body:     body,
		Priority: model.AlertPriorityCritical,
	})
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
