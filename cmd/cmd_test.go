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

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysplit/royalty/config"
)

func TestNeedsEngine(t *testing.T) {
	cli := NewCLI()

	find := func(args ...string) *cobra.Command {
		c, _, err := cli.cmd.Find(args)
		require.NoError(t, err)
		return c
	}

	assert.True(t, needsEngine(find("workers")))
	assert.True(t, needsEngine(find("server")))
	assert.True(t, needsEngine(find("retry")))
	assert.False(t, needsEngine(find("migrate", "up")))
	assert.False(t, needsEngine(find("config")))
}

func TestRedactConfig(t *testing.T) {
	cnf := config.Configuration{
		ProjectName:  "royalty",
		Server:       config.ServerConfig{SecretKey: "s3cret", Port: "5004"},
		Gateway:      config.GatewayConfig{Secret: "app-secret", BaseUrl: "https://openapi.example.com"},
		DataSource:   config.DataSourceConfig{Dns: "postgres://u:p@db/royalty"},
		Redis:        config.RedisConfig{Dns: "redis://:pw@cache:6379"},
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: "https://hooks.slack.com/x"}},
	}

	out := redactConfig(cnf)
	assert.Equal(t, redacted, out.Server.SecretKey)
	assert.Equal(t, redacted, out.Gateway.Secret)
	assert.Equal(t, redacted, out.DataSource.Dns)
	assert.Equal(t, redacted, out.Redis.Dns)
	assert.Equal(t, redacted, out.Notification.Slack.WebhookUrl)
	assert.Equal(t, "5004", out.Server.Port)
	assert.Equal(t, "https://openapi.example.com", out.Gateway.BaseUrl)
	assert.Equal(t, "s3cret", cnf.Server.SecretKey, "the original is untouched")
}

func TestInitializeQueues(t *testing.T) {
	conf := &config.Configuration{Queue: config.QueueConfig{AlertQueue: "royalty_alerts", CriticalAlertQueue: "royalty_alerts_critical"}}
	queues := initializeQueues(conf)
	assert.Equal(t, 3, queues["royalty_alerts_critical"])
	assert.Equal(t, 1, queues["royalty_alerts"])
}
