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

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/paysplit/royalty"
	"github.com/paysplit/royalty/api/middleware"
	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/model"
)

// Engine is the part of the settlement engine exposed over HTTP.
type Engine interface {
	Enqueue(ctx context.Context, orderID, operator string) error
	ManualRetry(ctx context.Context, recordID, operator string) (*royalty.AttemptResult, error)
	QueryStatus(ctx context.Context, orderID string) (*model.SettlementRecord, error)
}

type Api struct {
	royalty Engine
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/health", a.Health)

	router.POST("/settlements", a.EnqueueSettlement)
	router.POST("/settlements/:id/retry", a.RetrySettlement)
	router.GET("/orders/:id/settlement", a.GetOrderSettlement)
	return a.router
}

func NewAPI(engine Engine) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{royalty: engine, router: r}
}

func (a Api) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
