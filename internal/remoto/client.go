// Package remoto wraps outbound HTTP calls to collaborator services with a
// per-call timeout, linear-backoff retries and a per-destination circuit
// breaker.
package remoto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the destination's circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitOpenError reports which destination short-circuited and until when.
type CircuitOpenError struct {
	Service string
	Until   time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open para %s hasta %s", e.Service, e.Until.Format(time.RFC3339))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// CommError reports that every attempt against a destination failed.
type CommError struct {
	Service string
	Err     error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("fallo de comunicacion con %s: %v", e.Service, e.Err)
}

func (e *CommError) Unwrap() error { return e.Err }

// Response is a delivered HTTP exchange. Any status below 500 is delivered
// to the caller; 4xx branching is the caller's business.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Config configures a Client.
type Config struct {
	Token       string
	Timeout     time.Duration
	MaxRetries  int
	MaxFailures int
	OpenFor     time.Duration
	Logf        func(format string, args ...any)
}

type breakerState struct {
	failures  int
	openUntil time.Time
}

// Client issues JSON calls to named destinations. One breaker per
// destination name, shared by all goroutines using the client.
type Client struct {
	httpc       *http.Client
	token       string
	timeout     time.Duration
	maxRetries  int
	maxFailures int
	openFor     time.Duration
	logf        func(format string, args ...any)

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu       sync.Mutex
	breakers map[string]*breakerState
}

// New constructs a Client with sane defaults for anything left zero.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	maxFailures := cfg.MaxFailures
	if maxFailures < 1 {
		maxFailures = 3
	}
	openFor := cfg.OpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Client{
		httpc:       &http.Client{},
		token:       cfg.Token,
		timeout:     timeout,
		maxRetries:  cfg.MaxRetries,
		maxFailures: maxFailures,
		openFor:     openFor,
		logf:        logf,
		now:         time.Now,
		sleep:       sleepWithContext,
		breakers:    make(map[string]*breakerState),
	}
}

// Get issues a GET against the destination.
func (c *Client) Get(ctx context.Context, service, url string) (*Response, error) {
	return c.Invoke(ctx, service, http.MethodGet, url, nil)
}

// Post issues a POST with a JSON body against the destination.
func (c *Client) Post(ctx context.Context, service, url string, body any) (*Response, error) {
	return c.Invoke(ctx, service, http.MethodPost, url, body)
}

// Invoke performs one logical call: an initial attempt plus up to MaxRetries
// further attempts with a blocking linear backoff. A transport error, a
// timeout or a status >= 500 counts as a failed attempt; any delivered
// response below 500 is a success and resets the destination's breaker.
// Exhausting all attempts records exactly one failure against the breaker
// and returns a *CommError wrapping the last cause.
func (c *Client) Invoke(ctx context.Context, service, method, url string, body any) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if until, open := c.breakerOpen(service); open {
		return nil, &CircuitOpenError{Service: service, Until: until}
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal body for %s: %w", service, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, method, url, payload)
		if err == nil {
			c.recordSuccess(service)
			return resp, nil
		}
		lastErr = err

		if attempt < c.maxRetries {
			backoff := 500 * time.Millisecond * time.Duration(attempt+1)
			c.logf("[retry] %s fallo: %v. reintentando en %s", service, err, backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	c.recordFailure(service)
	return nil, &CommError{Service: service, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func (c *Client) breakerOpen(service string) (time.Time, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.breakers[service]
	if !ok {
		return time.Time{}, false
	}
	if now.Before(state.openUntil) {
		return state.openUntil, true
	}
	return time.Time{}, false
}

func (c *Client) recordSuccess(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.ensureBreaker(service)
	state.failures = 0
	state.openUntil = time.Time{}
}

func (c *Client) recordFailure(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.ensureBreaker(service)
	state.failures++
	if state.failures >= c.maxFailures {
		state.openUntil = c.now().Add(c.openFor)
		c.logf("[CB] servicio %s en estado OPEN por %s", service, c.openFor)
	}
}

func (c *Client) ensureBreaker(service string) *breakerState {
	state, ok := c.breakers[service]
	if !ok {
		state = &breakerState{}
		c.breakers[service] = state
	}
	return state
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
