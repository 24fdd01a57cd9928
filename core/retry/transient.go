package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/lib/pq"
)

var throttleCodes = map[string]struct{}{
	"SlowDown":                 {},
	"Throttling":               {},
	"ThrottlingException":      {},
	"RequestTimeout":           {},
	"RequestTimeTooSkewed":     {},
	"InternalError":            {},
	"ServiceUnavailable":       {},
	"RequestLimitExceeded":     {},
	"TooManyRequestsException": {},
}

// IsTransient reports whether err is worth retrying: network hiccups,
// dropped or serialization-failed postgres sessions, redis loading, S3 throttling and 5xx.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if isNetworkTransient(err) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection exception
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01", "57P01", "57P03":
			return true
		}
		return false
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == http.StatusTooManyRequests || status >= 500 {
			return true
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := throttleCodes[apiErr.ErrorCode()]; ok {
			return true
		}
		return false
	}

	msg := err.Error()
	for _, prefix := range []string{"LOADING ", "TRYAGAIN ", "CLUSTERDOWN ", "MASTERDOWN "} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// isNetworkTransient covers dial failures and timeouts produced by net and net/http.
func isNetworkTransient(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && urlErr.Err != err {
			return isNetworkTransient(urlErr.Err)
		}
	}
	return false
}
