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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"ROYALTY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ROYALTY_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"ROYALTY_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ROYALTY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"ROYALTY_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"ROYALTY_REDIS_SKIP_TLS_VERIFY"`
}

// SettlementConfig holds the cadences and caps of the settlement engine.
// Durations are expressed in seconds.
type SettlementConfig struct {
	MainInterval        int  `json:"main_interval" envconfig:"ROYALTY_SETTLEMENT_MAIN_INTERVAL"`
	RetryInterval       int  `json:"retry_interval" envconfig:"ROYALTY_SETTLEMENT_RETRY_INTERVAL"`
	PendingInterval     int  `json:"pending_interval" envconfig:"ROYALTY_SETTLEMENT_PENDING_INTERVAL"`
	BatchSize           int  `json:"batch_size" envconfig:"ROYALTY_SETTLEMENT_BATCH_SIZE"`
	LockTTL             int  `json:"lock_ttl" envconfig:"ROYALTY_SETTLEMENT_LOCK_TTL"`
	MaxAutoFailures     int  `json:"max_auto_failures" envconfig:"ROYALTY_SETTLEMENT_MAX_AUTO_FAILURES"`
	MaxRetries          int  `json:"max_retries" envconfig:"ROYALTY_SETTLEMENT_MAX_RETRIES"`
	RetryBackoff        int  `json:"retry_backoff" envconfig:"ROYALTY_SETTLEMENT_RETRY_BACKOFF"`
	PendingBackoff      int  `json:"pending_backoff" envconfig:"ROYALTY_SETTLEMENT_PENDING_BACKOFF"`
	MaxPendingAttempts  int  `json:"max_pending_attempts" envconfig:"ROYALTY_SETTLEMENT_MAX_PENDING_ATTEMPTS"`
	HandlingFeePermille int  `json:"handling_fee_permille" envconfig:"ROYALTY_SETTLEMENT_HANDLING_FEE_PERMILLE"`
	EnableReconcile     bool `json:"enable_reconcile" envconfig:"ROYALTY_SETTLEMENT_ENABLE_RECONCILE"`
	ReconcileInterval   int  `json:"reconcile_interval" envconfig:"ROYALTY_SETTLEMENT_RECONCILE_INTERVAL"`
	ReconcileBatchSize  int  `json:"reconcile_batch_size" envconfig:"ROYALTY_SETTLEMENT_RECONCILE_BATCH_SIZE"`
	ReconcilePaidGrace  int  `json:"reconcile_paid_grace" envconfig:"ROYALTY_SETTLEMENT_RECONCILE_PAID_GRACE"`
	StaleProcessingAge  int  `json:"stale_processing_age" envconfig:"ROYALTY_SETTLEMENT_STALE_PROCESSING_AGE"`
}

type GatewayConfig struct {
	BaseUrl string `json:"base_url" envconfig:"ROYALTY_GATEWAY_BASE_URL"`
	AppId   string `json:"app_id" envconfig:"ROYALTY_GATEWAY_APP_ID"`
	Secret  string `json:"secret" envconfig:"ROYALTY_GATEWAY_SECRET"`
	Timeout int    `json:"timeout" envconfig:"ROYALTY_GATEWAY_TIMEOUT"`
}

type QueueConfig struct {
	AlertQueue         string `json:"alert_queue" envconfig:"ROYALTY_QUEUE_ALERT_QUEUE"`
	CriticalAlertQueue string `json:"critical_alert_queue" envconfig:"ROYALTY_QUEUE_CRITICAL_ALERT_QUEUE"`
	AlertMaxRetry      int    `json:"alert_max_retry" envconfig:"ROYALTY_QUEUE_ALERT_MAX_RETRY"`
	WorkerConcurrency  int    `json:"worker_concurrency" envconfig:"ROYALTY_QUEUE_WORKER_CONCURRENCY"`
	MonitoringPort     string `json:"monitoring_port" envconfig:"ROYALTY_QUEUE_MONITORING_PORT"`
}

type CacheConfig struct {
	Size int `json:"size" envconfig:"ROYALTY_CACHE_SIZE"`
	TTL  int `json:"ttl" envconfig:"ROYALTY_CACHE_TTL"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ROYALTY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ROYALTY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ROYALTY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"ROYALTY_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type OtelConfig struct {
	Endpoint string `json:"endpoint" envconfig:"ROYALTY_OTEL_ENDPOINT"`
	Insecure bool   `json:"insecure" envconfig:"ROYALTY_OTEL_INSECURE"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"ROYALTY_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"ROYALTY_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Settlement      SettlementConfig `json:"settlement"`
	Gateway         GatewayConfig    `json:"gateway"`
	Queue           QueueConfig      `json:"queue"`
	Cache           CacheConfig      `json:"cache"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Otel            OtelConfig       `json:"otel"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("royalty", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called royalty.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Royalty Settlement"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Gateway.BaseUrl = strings.TrimRight(strings.TrimSpace(cnf.Gateway.BaseUrl), "/")

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Settlement.applyDefaults()
	cnf.Queue.applyDefaults()

	if cnf.Gateway.Timeout <= 0 {
		cnf.Gateway.Timeout = 15
	}
	if cnf.Cache.Size <= 0 {
		cnf.Cache.Size = 1000
	}
	if cnf.Cache.TTL <= 0 {
		cnf.Cache.TTL = 300
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (s *SettlementConfig) applyDefaults() {
	setDefault(&s.MainInterval, 1)
	setDefault(&s.RetryInterval, 30)
	setDefault(&s.PendingInterval, 15)
	setDefault(&s.BatchSize, 10)
	setDefault(&s.LockTTL, 60)
	setDefault(&s.MaxAutoFailures, 5)
	setDefault(&s.MaxRetries, 3)
	setDefault(&s.RetryBackoff, 300)
	setDefault(&s.PendingBackoff, 30)
	setDefault(&s.MaxPendingAttempts, 5)
	setDefault(&s.HandlingFeePermille, 6)
	setDefault(&s.ReconcileInterval, 600)
	setDefault(&s.ReconcileBatchSize, 50)
	setDefault(&s.ReconcilePaidGrace, 300)
	setDefault(&s.StaleProcessingAge, 600)

	if s.RetryBackoff < MinRetryBackoff {
		log.Printf("Warning: retry backoff %ds is below the %ds floor. Using the floor.", s.RetryBackoff, MinRetryBackoff)
		s.RetryBackoff = MinRetryBackoff
	}
}

func (q *QueueConfig) applyDefaults() {
	if q.AlertQueue == "" {
		q.AlertQueue = "royalty_alerts"
	}
	if q.CriticalAlertQueue == "" {
		q.CriticalAlertQueue = "royalty_alerts_critical"
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = "5005"
	}
	setDefault(&q.AlertMaxRetry, 3)
	setDefault(&q.WorkerConcurrency, 2)
}

// MinRetryBackoff is the floor, in seconds, applied to the retry queue delay.
const MinRetryBackoff = 30

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (s SettlementConfig) MainPollInterval() time.Duration {
	return seconds(s.MainInterval)
}

func (s SettlementConfig) RetryPollInterval() time.Duration {
	return seconds(s.RetryInterval)
}

func (s SettlementConfig) PendingPollInterval() time.Duration {
	return seconds(s.PendingInterval)
}

func (s SettlementConfig) ReconcilePollInterval() time.Duration {
	return seconds(s.ReconcileInterval)
}

func (s SettlementConfig) LockDuration() time.Duration {
	return seconds(s.LockTTL)
}

func (s SettlementConfig) RetryDelay() time.Duration {
	return seconds(s.RetryBackoff)
}

func (s SettlementConfig) PendingDelay() time.Duration {
	return seconds(s.PendingBackoff)
}

func (s SettlementConfig) PaidGrace() time.Duration {
	return seconds(s.ReconcilePaidGrace)
}

func (s SettlementConfig) StaleThreshold() time.Duration {
	return seconds(s.StaleProcessingAge)
}

// DefaultSettlement returns a settlement section with every default applied.
func DefaultSettlement() SettlementConfig {
	var s SettlementConfig
	s.applyDefaults()
	return s
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
