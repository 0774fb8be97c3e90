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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantAddr     string
		wantPassword string
		wantErr      bool
	}{
		{name: "docker style", url: "redis:6379", wantAddr: "redis:6379"},
		{name: "url with password", url: "redis://:password123@localhost:6379", wantAddr: "localhost:6379", wantPassword: "password123"},
		{name: "password without colon", url: "redis://secret@localhost:6379", wantAddr: "localhost:6379", wantPassword: "secret"},
		{name: "tls url", url: "rediss://user:pw@cache.internal:6380", wantAddr: "cache.internal:6380", wantPassword: "pw"},
		{name: "empty", url: "", wantErr: true},
		{name: "bad scheme", url: "http://localhost:6379/0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.url, false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantAddr, got.Addr)
			assert.Equal(t, tt.wantPassword, got.Password)
		})
	}
}

func TestParseRedisURL_SkipTLSVerify(t *testing.T) {
	got, err := ParseRedisURL("rediss://cache.internal:6380", true)
	require.NoError(t, err)
	require.NotNil(t, got.TLSConfig)
	assert.True(t, got.TLSConfig.InsecureSkipVerify)
}

func TestAsynqOpt(t *testing.T) {
	opt, err := AsynqOpt("redis://:pw@localhost:6379/2", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	_, err = NewRedisClient([]string{}, false)
	assert.Error(t, err)

	r, err := NewRedisClient([]string{mr.Addr()}, false)
	require.NoError(t, err)
	defer r.Close()

	assert.NoError(t, r.Client().Set(context.Background(), "k", "v", 0).Err())
	value, err := mr.Get("k")
	assert.NoError(t, err)
	assert.Equal(t, "v", value)
}
