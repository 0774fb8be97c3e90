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
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/model"
)

func TestAlertOnce_Dedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alert := model.Alert{Title: "t", Body: "b", Priority: model.AlertPriorityHigh}

	assert.True(t, env.royalty.alertOnce(ctx, "dedup:key", time.Hour, alert))
	assert.False(t, env.royalty.alertOnce(ctx, "dedup:key", time.Hour, alert))
	assert.Equal(t, 1, env.alerts.count())
	assert.Equal(t, time.Hour, env.mr.TTL("dedup:key"))

	env.mr.FastForward(2 * time.Hour)
	assert.True(t, env.royalty.alertOnce(ctx, "dedup:key", time.Hour, alert), "claim expires with its ttl")
	assert.Equal(t, 2, env.alerts.count())
}

func TestAlertOnce_FailedEnqueueReleasesClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.alerts.err = errors.New("queue down")

	assert.False(t, env.royalty.alertOnce(ctx, "dedup:key", 0, model.Alert{Title: "t"}))
	assert.False(t, env.mr.Exists("dedup:key"))

	env.alerts.err = nil
	assert.True(t, env.royalty.alertOnce(ctx, "dedup:key", 0, model.Alert{Title: "t"}))
	assert.Equal(t, 1, env.alerts.count())
}

func TestAlertSubjectDisabled_OncePerWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder("o1", "s1")
	subject, err := env.store.GetSubject(ctx, "s1")
	require.NoError(t, err)

	assert.True(t, env.royalty.alertSubjectDisabled(ctx, subject, order, "ACCOUNT_FROZEN", "frozen"))
	assert.False(t, env.royalty.alertSubjectDisabled(ctx, subject, order, "ACCOUNT_FROZEN", "frozen"))
	require.Equal(t, 1, env.alerts.count())

	body := env.alerts.alerts[0].Body
	assert.Contains(t, body, "s1")
	assert.Contains(t, body, "Po1")
	assert.Contains(t, body, "ACCOUNT_FROZEN")
	assert.Contains(t, body, "frozen")
}

func TestAlertKeys(t *testing.T) {
	assert.Equal(t, "royalty:failure:notify:o1", orderFailureAlertKey("o1"))
	assert.Equal(t, "subject:disabled:notify:s1", subjectDisabledAlertKey("s1"))
	assert.Equal(t, "subject:error:notify:s1:isv.insufficient-isv-permissions", subjectErrorAlertKey("s1", "ISV.INSUFFICIENT-ISV-PERMISSIONS"))
}

func TestAlertQueue_Routing(t *testing.T) {
	q := NewAlertQueue(nil, config.QueueConfig{AlertQueue: "alerts", CriticalAlertQueue: "alerts_critical", AlertMaxRetry: 3})

	assert.Equal(t, "alerts", q.queueFor(model.AlertPriorityNormal))
	assert.Equal(t, "alerts", q.queueFor(model.AlertPriorityHigh))
	assert.Equal(t, "alerts_critical", q.queueFor(model.AlertPriorityCritical))

	task, err := q.newTask(model.Alert{Title: "t", Body: "b", Priority: model.AlertPriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, TypeRoyaltyAlert, task.Type())

	var decoded model.Alert
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "t", decoded.Title)
	assert.False(t, decoded.CreatedAt.IsZero())
}

func TestProcessAlert(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: "https://hooks.slack.test/services/x"}},
	})
	httpmock.RegisterResponder(http.MethodPost, "https://hooks.slack.test/services/x", httpmock.NewStringResponder(http.StatusOK, "ok"))

	payload, err := json.Marshal(model.Alert{Title: "Royalty settlement failed", Body: "Order: o1", Priority: model.AlertPriorityHigh})
	require.NoError(t, err)

	err = ProcessAlert(context.Background(), asynq.NewTask(TypeRoyaltyAlert, payload))
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	err = ProcessAlert(context.Background(), asynq.NewTask(TypeRoyaltyAlert, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
