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

package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/request"
	"github.com/paysplit/royalty/model"
)

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func field(label, value string) slackBlock {
	return slackBlock{
		Type:   "section",
		Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", label, value)}},
	}
}

func buildSlackMessage(title, body, priority string, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: title, Emoji: true}},
		field("Details", body),
		field("Priority", priority),
		field("Time", at.Format(time.RFC822)),
	}}
}

// maxSlackAttempts bounds delivery retries of a single Slack post.
const maxSlackAttempts = 3

func postSlack(ctx context.Context, webhookURL string, msg slackMessage) error {
	operation := func() error {
		payload, err := request.ToJsonReq(&msg)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		_, err = request.Call(req, nil)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxSlackAttempts-1), ctx)
	return backoff.Retry(operation, policy)
}

// SendAlert delivers an operator alert to the configured Slack webhook.
// It is a no-op when Slack is not configured.
func SendAlert(ctx context.Context, alert model.Alert) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		logrus.Warnf("slack is not configured, alert %q only logged: %s", alert.Title, alert.Body)
		return nil
	}

	at := alert.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	msg := buildSlackMessage(alert.Title, alert.Body, alert.Priority.String(), at)
	return postSlack(ctx, conf.Notification.Slack.WebhookUrl, msg)
}

// SlackNotification sends an error message to the Slack webhook.
func SlackNotification(err error) {
	conf, cfgErr := config.Fetch()
	if cfgErr != nil {
		log.Println(cfgErr)
		return
	}

	msg := buildSlackMessage("Error From Royalty Settlement", err.Error(), model.AlertPriorityHigh.String(), time.Now())
	if postErr := postSlack(context.Background(), conf.Notification.Slack.WebhookUrl, msg); postErr != nil {
		log.Println(postErr)
	}
}

// NotifyError logs systemError and reports it to Slack in the background when configured.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}
	}(systemError)
}
