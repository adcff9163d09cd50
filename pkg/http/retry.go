// Package http provides a retrying HTTP client shared by outbound API
// callers. Retries are driven by an error classifier so every caller applies
// the same transient/permanent policy instead of growing its own.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultMaxRetries          = 3
	DefaultBaseBackoff         = time.Millisecond * 500
	DefaultRateLimitMultiplier = 4
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorClass buckets a request outcome for retry purposes.
type ErrorClass int

const (
	// ClassOK means the request succeeded.
	ClassOK ErrorClass = iota
	// ClassTransient covers network errors, timeouts and 5xx responses.
	ClassTransient
	// ClassRateLimited is a 429; retried with a longer backoff.
	ClassRateLimited
	// ClassPermanent covers 4xx auth/validation failures; never retried.
	ClassPermanent
)

// Classifier maps a request outcome to an ErrorClass.
type Classifier func(resp *http.Response, err error) ErrorClass

// DefaultClassifier implements the standard policy: transport errors and
// timeouts are transient, 429 is rate limited, 5xx is transient, all other
// non-2xx are permanent.
func DefaultClassifier(resp *http.Response, err error) ErrorClass {
	if err != nil {
		// transport errors and timeouts are all worth one more try
		return ClassTransient
	}

	switch {
	case resp.StatusCode < 400:
		return ClassOK
	case resp.StatusCode == http.StatusTooManyRequests:
		return ClassRateLimited
	case resp.StatusCode >= 500:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// RetryClient wraps an HTTPClient with classified retries and exponential
// backoff. Safe for concurrent use.
type RetryClient struct {
	client              HTTPClient
	classify            Classifier
	baseBackoff         time.Duration
	rateLimitMultiplier int
	maxRetries          int
	sleep               func(time.Duration)
}

// ClientOption configures a RetryClient.
type ClientOption func(*RetryClient)

// NewRetryClient creates a RetryClient with the default policy.
func NewRetryClient(opts ...ClientOption) *RetryClient {
	c := &RetryClient{
		client:              http.DefaultClient,
		classify:            DefaultClassifier,
		maxRetries:          DefaultMaxRetries,
		baseBackoff:         DefaultBaseBackoff,
		rateLimitMultiplier: DefaultRateLimitMultiplier,
		sleep:               time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithMaxRetries sets the maximum number of attempts for the client.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *RetryClient) {
		c.maxRetries = maxRetries
	}
}

// WithBaseBackoff sets the base backoff time for the client.
func WithBaseBackoff(baseBackoff time.Duration) ClientOption {
	return func(c *RetryClient) {
		c.baseBackoff = baseBackoff
	}
}

// WithHTTPClient sets the underlying http client.
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *RetryClient) {
		c.client = client
	}
}

// WithClassifier overrides the retry classification policy.
func WithClassifier(classify Classifier) ClientOption {
	return func(c *RetryClient) {
		c.classify = classify
	}
}

// WithSleep overrides the sleep function. Used by tests.
func WithSleep(sleep func(time.Duration)) ClientOption {
	return func(c *RetryClient) {
		c.sleep = sleep
	}
}

// ErrRetriesExhausted is returned together with the last response when every
// attempt failed with a retriable class.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Do executes the request, retrying transient and rate-limited failures with
// exponential backoff. Permanent failures return the response immediately
// with no error so callers can inspect the status code. This is a blocking
// call; backoff sleeps happen on the calling goroutine.
func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			req.Body = body
		}

		resp, err = c.client.Do(req)
		class := c.classify(resp, err)

		switch class {
		case ClassOK, ClassPermanent:
			return resp, err
		}

		if resp != nil {
			backoff := c.retryAfter(resp, attempt, class)
			resp.Body.Close()
			c.sleep(backoff)
			continue
		}

		c.sleep(c.backoff(attempt, class))
	}

	if err != nil {
		return nil, err
	}

	return resp, ErrRetriesExhausted
}

// retryAfter honors the Retry-After header when present, otherwise falls
// back to exponential backoff.
func (c *RetryClient) retryAfter(resp *http.Response, attempt int, class ErrorClass) time.Duration {
	retryAfterHeader := resp.Header.Get("Retry-After")

	if retryAfterHeader != "" {
		seconds, err := strconv.Atoi(retryAfterHeader)
		if err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	return c.backoff(attempt, class)
}

func (c *RetryClient) backoff(attempt int, class ErrorClass) time.Duration {
	// 2^n backoff
	d := time.Duration(1<<attempt) * c.baseBackoff
	if class == ClassRateLimited {
		d *= time.Duration(c.rateLimitMultiplier)
	}
	return d
}
