package telegram

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/storebot/core/retry"
)

const (
	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	idleTimeout     = 30 * time.Second
	headerTimeout   = 5 * time.Second
	requestTimeout  = 30 * time.Second
	keepAlivePeriod = 30 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. A long poll keeps
// each getUpdates request open, so its timeout is added on top of the limits.
// Failures that happen before a response arrives are repeated under policy.
func BuildHTTPClient(longPollSeconds int, policy retry.Policy) *http.Client {
	poll := time.Duration(longPollTimeout(longPollSeconds)) * time.Second
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlivePeriod}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: headerTimeout + poll,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   requestTimeout + poll,
		Transport: &retryTransport{base: base, policy: policy},
	}
}

var errBodyNotReplayable = errors.New("telegram: request body cannot be replayed")

type retryTransport struct {
	base   http.RoundTripper
	policy retry.Policy
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	var (
		resp  *http.Response
		tries int
	)
	err := t.policy.Do(req.Context(), "tg.http", func(ctx context.Context) error {
		tries++
		attempt := req
		if tries > 1 {
			body, err := rewind(req)
			if err != nil {
				return retry.Permanent(err)
			}
			attempt = req.Clone(ctx)
			attempt.Body = body
		}
		var err error
		resp, err = base.RoundTrip(attempt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// rewind returns a fresh copy of the request body for a repeated attempt.
func rewind(req *http.Request) (io.ReadCloser, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Body, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	return req.GetBody()
}
