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

package royalty

import (
	"regexp"
	"strings"
)

// ErrorClass is the outcome category of a failed settlement call.
type ErrorClass int

const (
	// ClassTerminal failures are recorded and alerted once per order.
	ClassTerminal ErrorClass = iota
	// ClassRetryable failures are scheduled on the retry queue.
	ClassRetryable
	// ClassStructural failures disable the payee entity.
	ClassStructural
	// ClassPermission failures need an operator to fix the merchant setup.
	ClassPermission
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassStructural:
		return "structural"
	case ClassPermission:
		return "permission"
	default:
		return "terminal"
	}
}

// PermissionErrorCode is returned when the merchant application lacks the transfer permission.
const PermissionErrorCode = "isv.insufficient-isv-permissions"

var retryableCodes = codeSet(
	"SYSTEM_ERROR",
	"UNKNOWN_ERROR",
	"UNKNOW_ERROR",
	"ACQ.SYSTEM_ERROR",
	"isp.unknow-error",
	"DEALING",
	"NETWORK_ERROR",
	"EMPTY_BODY",
	"JSON_PARSE_ERROR",
	"INVALID_FORMAT",
)

var retryableKeywords = []string{
	"timeout",
	"timed out",
	"system busy",
	"system error",
	"系统繁忙",
	"系统错误",
}

// structuralCodes mean the payee entity itself cannot move funds.
var structuralCodes = []string{
	"BLOCK_USER_FORBBIDEN_RECIEVE",
	"BLOCK_USER_FORBBIDEN_SEND",
	"NO_ACCOUNT_USER_FORBBIDEN_RECIEVE",
	"ACQ.USER_ACCOUNT_HAD_FREEZEN",
	"USER_RISK_FREEZE",
	"JUDICIAL_FREEZE",
	"EXCEED_LIMIT_DM_AMOUNT",
	"EXCEED_LIMIT_DM_MAX_AMOUNT",
	"EXCEED_LIMIT_MM_AMOUNT",
	"EXCEED_LIMIT_MM_MAX_AMOUNT",
	"PERM_PAY_CUSTOMER_DAILY_QUOTA_ORG_BALANCE_LIMIT",
	"MONEY_PAY_CLOSED",
	"NO_AVAILABLE_PAYMENT_TOOLS",
	"PAYCARD_UNABLE_PAYMENT",
	"PERMIT_CHECK_PERM_IDENTITY_THEFT",
	"PERMIT_CHECK_PERM_LIMITED",
	"PERMIT_NON_BANK_LIMIT_PAYEE",
	"PAYER_STATUS_ERROR",
	"SECURITY_CHECK_FAILED",
	"ACCOUNT_FROZEN",
}

var structuralCodeSet = codeSet(structuralCodes...)

var (
	bracketCodePattern = regexp.MustCompile(`\[([A-Za-z][A-Za-z0-9_.\-]*)\]`)
	subCodePattern     = regexp.MustCompile(`(?i)(?:sub code|子错误码)[:：\s]+([A-Za-z][A-Za-z0-9_.\-]*)`)
)

func codeSet(codes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[normalizeCode(c)] = struct{}{}
	}
	return set
}

func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimSuffix(strings.TrimPrefix(code, "["), "]")
	return strings.ToUpper(code)
}

// Classification is the verdict for one failed settlement call.
type Classification struct {
	Class ErrorClass
	// Code is the provider sub-code, or the code recovered from the message.
	Code string
}

// Retryable reports whether the order is queued for another attempt.
func (c Classification) Retryable() bool {
	return c.Class == ClassRetryable
}

// DisablesSubject reports whether the payee entity must be switched off.
func (c Classification) DisablesSubject() bool {
	return c.Class == ClassStructural
}

// ExtractErrorCode returns subCode when set, otherwise the first code found in
// message: bracket markup, then "sub code:" text, then any structural code.
func ExtractErrorCode(subCode, message string) string {
	if code := strings.TrimSpace(subCode); code != "" {
		return code
	}
	if m := bracketCodePattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := subCodePattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	upper := strings.ToUpper(message)
	for _, code := range structuralCodes {
		if strings.Contains(upper, code) {
			return code
		}
	}
	return ""
}

// Classify maps a provider failure to its handling class. The checks run in a
// fixed order and the first match wins.
func Classify(subCode, message string) Classification {
	code := ExtractErrorCode(subCode, message)
	normalized := normalizeCode(code)
	lowerMessage := strings.ToLower(message)

	if normalized == strings.ToUpper(PermissionErrorCode) || strings.Contains(lowerMessage, PermissionErrorCode) {
		return Classification{Class: ClassPermission, Code: PermissionErrorCode}
	}

	if _, ok := retryableCodes[normalized]; ok {
		return Classification{Class: ClassRetryable, Code: code}
	}

	for _, keyword := range retryableKeywords {
		if strings.Contains(lowerMessage, keyword) {
			return Classification{Class: ClassRetryable, Code: code}
		}
	}

	if _, ok := structuralCodeSet[normalized]; ok {
		return Classification{Class: ClassStructural, Code: code}
	}
	upperMessage := strings.ToUpper(message)
	for _, c := range structuralCodes {
		if strings.Contains(upperMessage, c) {
			return Classification{Class: ClassStructural, Code: c}
		}
	}

	return Classification{Class: ClassTerminal, Code: code}
}
