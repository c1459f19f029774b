package clients

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed backend call. Callers switch on the kind
// instead of matching message text.
type ErrorKind string

const (
	KindUnknown            ErrorKind = "unknown"
	KindValidation         ErrorKind = "validation"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindInsufficientCredit ErrorKind = "insufficient_credit"
	KindAccountDisabled    ErrorKind = "account_disabled"
	KindServer             ErrorKind = "server"
	KindNetwork            ErrorKind = "network"
	KindDecode             ErrorKind = "decode"
)

// Error is returned by every Client method that fails.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode != 0:
		return fmt.Sprintf("omnisafe api: %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("omnisafe api: %s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("omnisafe api: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("omnisafe api: %s (status %d)", e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether the backend no longer knows the resource.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInsufficientCredit reports whether the account cannot pay for the call.
func IsInsufficientCredit(err error) bool {
	return KindOf(err) == KindInsufficientCredit
}

// creditMarkers are the phrases the backend uses in credit errors. Matching
// them here keeps message parsing at the client boundary.
var creditMarkers = []string{"credit", "额度不足", "余额不足"}

func isCreditMessage(detail string) bool {
	lower := strings.ToLower(detail)
	for _, marker := range creditMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func classify(status int, detail string) ErrorKind {
	if strings.Contains(detail, "Account disabled") {
		return KindAccountDisabled
	}

	if status == http.StatusPaymentRequired {
		return KindInsufficientCredit
	}
	if status >= 400 && status < 500 && status != http.StatusNotFound && isCreditMessage(detail) {
		return KindInsufficientCredit
	}

	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500:
		return KindServer
	}
	return KindUnknown
}
