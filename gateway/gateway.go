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

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/request"
	"github.com/paysplit/royalty/model"
)

const (
	transferMethod   = "alipay.fund.trans.uni.transfer"
	responseNode     = "alipay_fund_trans_uni_transfer_response"
	productCode      = "TRANS_ACCOUNT_NO_PWD"
	bizScene         = "DIRECT_TRANSFER"
	identityUserID   = "ALIPAY_USER_ID"
	identityLogonID  = "ALIPAY_LOGON_ID"
	codeSuccess      = "10000"
	statusSuccess    = "SUCCESS"
	statusDealing    = "DEALING"
	signatureHeader  = "X-Signature"
	permissionSubErr = "isv.insufficient-isv-permissions"
)

// Provider-side failure codes synthesised by the client itself.
const (
	SubCodeNetworkError   = "NETWORK_ERROR"
	SubCodeEmptyBody      = "EMPTY_BODY"
	SubCodeJSONParseError = "JSON_PARSE_ERROR"
	SubCodeInvalidFormat  = "INVALID_FORMAT"
	SubCodeDealing        = "DEALING"
)

var (
	ErrInvalidRequest = errors.New("invalid settlement request")

	userIDPattern = regexp.MustCompile(`^2088\d{12}$`)
)

// Gateway moves a royalty amount to a payee through the payment provider.
// Provider failures are reported through the result; an error is returned
// only when the request itself is malformed.
type Gateway interface {
	Settle(ctx context.Context, req model.SettleRequest) (*model.SettleResult, error)
}

type Client struct {
	baseURL    string
	appID      string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = request.DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseUrl, "/"),
		appID:      cfg.AppId,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type payeeInfo struct {
	Identity     string `json:"identity"`
	IdentityType string `json:"identity_type"`
	Name         string `json:"name,omitempty"`
}

type bizContent struct {
	OutBizNo        string    `json:"out_biz_no"`
	TransAmount     string    `json:"trans_amount"`
	ProductCode     string    `json:"product_code"`
	BizScene        string    `json:"biz_scene"`
	OriginalOrderID string    `json:"original_order_id,omitempty"`
	PayeeInfo       payeeInfo `json:"payee_info"`
	Remark          string    `json:"remark"`
}

type transferRequest struct {
	AppID      string     `json:"app_id"`
	Method     string     `json:"method"`
	Timestamp  string     `json:"timestamp"`
	BizContent bizContent `json:"biz_content"`
}

type transferResponse struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	SubCode string `json:"sub_code"`
	SubMsg  string `json:"sub_msg"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func identityType(account string) string {
	if userIDPattern.MatchString(account) {
		return identityUserID
	}
	return identityLogonID
}

func (c *Client) buildRequest(req model.SettleRequest) transferRequest {
	now := c.now()
	payee := payeeInfo{
		Identity:     req.PayeeAccount,
		IdentityType: identityType(req.PayeeAccount),
		Name:         req.PayeeName,
	}
	remark := "royalty-" + req.OrderReference
	if req.PayeeName != "" {
		remark += "-" + req.PayeeName
	}

	return transferRequest{
		AppID:     c.appID,
		Method:    transferMethod,
		Timestamp: now.Format("2006-01-02 15:04:05"),
		BizContent: bizContent{
			OutBizNo:        req.OrderReference + "_" + strconv.FormatInt(now.Unix(), 10),
			TransAmount:     model.FormatCents(req.AmountCents),
			ProductCode:     productCode,
			BizScene:        bizScene,
			OriginalOrderID: req.TradeReference,
			PayeeInfo:       payee,
			Remark:          remark,
		},
	}
}

func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validate(req model.SettleRequest) error {
	if strings.TrimSpace(req.PayeeAccount) == "" {
		return fmt.Errorf("%w: payee account is empty", ErrInvalidRequest)
	}
	if req.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.OrderReference) == "" {
		return fmt.Errorf("%w: order reference is empty", ErrInvalidRequest)
	}
	return nil
}

func failure(subCode, message, raw string) *model.SettleResult {
	return &model.SettleResult{Success: false, SubCode: subCode, Message: message, Raw: raw}
}

// Settle submits a single transfer and interprets the provider response.
func (c *Client) Settle(ctx context.Context, req model.SettleRequest) (*model.SettleResult, error) {
	ctx, span := otel.Tracer("royalty.gateway").Start(ctx, "Settle", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.reference", req.OrderReference),
		attribute.Int64("amount.cents", req.AmountCents),
	)

	if err := validate(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/gateway.do", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(signatureHeader, c.sign(body))

	respBody, _, err := request.Do(c.httpClient, httpReq)
	if err != nil {
		logrus.WithField("order", req.OrderReference).Errorf("settlement transport error: %v", err)
		span.RecordError(err)
		return failure(SubCodeNetworkError, fmt.Sprintf("settlement request failed: %v", err), ""), nil
	}

	result := parseResponse(respBody)
	span.SetAttributes(attribute.Bool("settle.success", result.Success), attribute.String("settle.sub_code", result.SubCode))
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
	}
	return result, nil
}

func parseResponse(body []byte) *model.SettleResult {
	raw := string(body)
	if len(bytes.TrimSpace(body)) == 0 {
		return failure(SubCodeEmptyBody, "settlement response is empty", raw)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return failure(SubCodeJSONParseError, fmt.Sprintf("settlement response could not be parsed: %v", err), raw)
	}

	node, ok := envelope[responseNode]
	if !ok {
		return failure(SubCodeInvalidFormat, "settlement response has an unexpected format", raw)
	}

	var resp transferResponse
	if err := json.Unmarshal(node, &resp); err != nil {
		return failure(SubCodeJSONParseError, fmt.Sprintf("settlement response could not be parsed: %v", err), raw)
	}

	if resp.Code != codeSuccess {
		message := fmt.Sprintf("settlement failed: %s - %s (code: %s, sub code: %s)", resp.Msg, resp.SubMsg, resp.Code, resp.SubCode)
		if resp.SubCode == permissionSubErr {
			message += " [" + permissionSubErr + "]"
		}
		return failure(resp.SubCode, message, raw)
	}

	switch resp.Status {
	case statusSuccess:
		return &model.SettleResult{Success: true, ProviderRef: resp.OrderID, Message: resp.Msg, Raw: raw}
	case statusDealing:
		return failure(SubCodeDealing, "settlement is still being processed by the provider", raw)
	default:
		message := resp.SubMsg
		if message == "" {
			message = fmt.Sprintf("settlement returned status %q", resp.Status)
		}
		return failure(resp.SubCode, message, raw)
	}
}
