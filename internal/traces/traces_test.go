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

package traces

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/paysplit/royalty/config"
)

func TestSetupOTelSDK(t *testing.T) {
	ctx := context.Background()
	shutdown, err := SetupOTelSDK(ctx, "royalty-test", config.OtelConfig{Endpoint: "localhost:4318", Insecure: true})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	_, span := otel.Tracer("royalty-test").Start(ctx, "export-check")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// a second call is a no-op
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = shutdown(cancelled)
	assert.NoError(t, shutdown(ctx))
}
