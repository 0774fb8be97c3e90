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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty"
	model2 "github.com/paysplit/royalty/api/model"
	"github.com/paysplit/royalty/internal/apierror"
)

// settlementErrorStatus maps engine errors onto HTTP status codes.
func settlementErrorStatus(err error) int {
	switch {
	case errors.Is(err, royalty.ErrRecordNotRetryable):
		return http.StatusConflict
	case errors.Is(err, royalty.ErrSettlementInProgress):
		return http.StatusLocked
	default:
		return apierror.MapErrorToHTTPStatus(err)
	}
}

func (a Api) EnqueueSettlement(c *gin.Context) {
	var req model2.EnqueueSettlement
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := req.ValidateEnqueueSettlement(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.royalty.Enqueue(c.Request.Context(), req.OrderID, req.Operator); err != nil {
		logrus.Error(err)
		c.JSON(settlementErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"order_id": req.OrderID, "status": "queued"})
}

// RetrySettlement runs a manual retry of a FAILED settlement record and
// returns the outcome with the resulting record.
func (a Api) RetrySettlement(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.RetrySettlement
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := req.ValidateRetrySettlement(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	result, err := a.royalty.ManualRetry(c.Request.Context(), id, req.Operator)
	if err != nil {
		c.JSON(settlementErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a Api) GetOrderSettlement(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	record, err := a.royalty.QueryStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(settlementErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}
