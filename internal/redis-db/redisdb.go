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

package redis_db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis holds the shared client used by the queue fabric, the lease lock and the caches.
type Redis struct {
	addresses []string
	client    redis.UniversalClient
}

// ParseRedisURL accepts docker style "host:port" addresses as well as redis:// and rediss:// URLs.
// A URL carrying only a password ("redis://secret@host:6379") is normalised first.
func ParseRedisURL(rawURL string, skipTLSVerify bool) (*redis.Options, error) {
	if rawURL == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	if strings.Count(rawURL, ":") == 1 && !strings.Contains(rawURL, "@") && !strings.Contains(rawURL, "//") {
		return &redis.Options{Addr: rawURL}, nil
	}

	if strings.HasPrefix(rawURL, "redis://") && strings.Contains(rawURL, "@") {
		parts := strings.SplitN(strings.TrimPrefix(rawURL, "redis://"), "@", 2)
		if len(parts) == 2 && !strings.Contains(parts[0], ":") {
			rawURL = fmt.Sprintf("redis://:%s@%s", parts[0], parts[1])
		}
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if opts.TLSConfig != nil && skipTLSVerify {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true,
		}
	}
	return opts, nil
}

// AsynqOpt converts a redis address into asynq connection options.
func AsynqOpt(rawURL string, skipTLSVerify bool) (asynq.RedisClientOpt, error) {
	opts, err := ParseRedisURL(rawURL, skipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// NewRedisClient creates a standalone client for one address or a cluster client for several.
// The connection is verified with a bounded exponential backoff.
func NewRedisClient(addresses []string, skipTLSVerify bool) (*Redis, error) {
	if len(addresses) == 0 {
		return nil, errors.New("redis addresses list cannot be empty")
	}

	var client redis.UniversalClient
	if len(addresses) == 1 {
		opts, err := ParseRedisURL(addresses[0], skipTLSVerify)
		if err != nil {
			return nil, err
		}
		client = redis.NewClient(opts)
	} else {
		var clusterAddrs []string
		var password string
		var tlsConfig *tls.Config
		for _, addr := range addresses {
			opts, err := ParseRedisURL(addr, skipTLSVerify)
			if err != nil {
				return nil, err
			}
			clusterAddrs = append(clusterAddrs, opts.Addr)
			if password == "" {
				password = opts.Password
			}
			if opts.TLSConfig != nil && tlsConfig == nil {
				tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: skipTLSVerify}
			}
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:     clusterAddrs,
			Password:  password,
			TLSConfig: tlsConfig,
		})
	}

	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{addresses: addresses, client: client}, nil
}

func ping(client redis.UniversalClient) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	return backoff.RetryNotify(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		return client.Ping(ctx).Err()
	}, policy, func(err error, next time.Duration) {
		logrus.Warnf("redis not reachable yet, retrying in %v: %v", next, err)
	})
}

// Client returns the universal client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

func (r *Redis) Close() error {
	return r.client.Close()
}
