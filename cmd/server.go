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
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/paysplit/royalty/api"
	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/traces"
)

func initializeRouter(b *royaltyInstance) *gin.Engine {
	return api.NewAPI(b.royalty).Router()
}

// initializeObservability starts the OpenTelemetry pipeline when telemetry is enabled.
// The returned shutdown is never nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration, service string) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}

	shutdown, err := traces.SetupOTelSDK(ctx, service, cfg.Otel)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the command that serves the admin HTTP surface.
func serverCommands(b *royaltyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "start the royalty admin server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			shutdown, err := initializeObservability(ctx, b.cnf, "ROYALTY")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			router := initializeRouter(b)
			if err := startServer(router, b.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
