package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/arkofgod/ark/core"
)

const (
	defaultChunkSize = 100
	defaultSound     = "default"
)

// DispatcherConfig bounds the fan-out. Zero values fall back to sane defaults.
type DispatcherConfig struct {
	ChunkSize     int
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Timeout       time.Duration
	Concurrency   int
	RatePerSecond float64 // gateway calls per second; 0 means unlimited
}

func NewDispatcherConfig(conf core.PushConfig) DispatcherConfig {
	return DispatcherConfig{
		ChunkSize:     conf.ChunkSize,
		MaxAttempts:   conf.MaxAttempts,
		BaseDelay:     conf.BaseDelay,
		MaxDelay:      conf.MaxDelay,
		Timeout:       conf.Timeout,
		Concurrency:   conf.Concurrency,
		RatePerSecond: conf.RatePerSecond,
	}
}

func (c *DispatcherConfig) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = 10 * c.BaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
}

// Dispatcher fans a Notification out to device tokens through a Gateway.
// Chunks are independent: a failed chunk is reported and never aborts the others.
type Dispatcher struct {
	gateway Gateway
	store   TokenStore
	logger  core.Logger
	conf    DispatcherConfig
	limiter *rate.Limiter
}

func NewDispatcher(gateway Gateway, store TokenStore, logger core.Logger, conf DispatcherConfig) *Dispatcher {
	conf.setDefaults()
	d := &Dispatcher{
		gateway: gateway,
		store:   store,
		logger:  logger,
		conf:    conf,
	}
	if conf.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(conf.RatePerSecond), 1)
	}
	return d
}

type chunkResult struct {
	delivered    []string
	unregistered []string
	errors       []TokenError
}

// Dispatch sends n to tokens; nil tokens means every registered device.
// Having no recipient is reported in the Result, not returned as an error.
// An error is only returned when the registry cannot be read.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification, tokens []string) (Result, error) {
	if tokens == nil {
		var err error
		if tokens, err = d.store.ListTokens(ctx); err != nil {
			return Result{}, errors.Wrap(err, "listing device tokens")
		}
		if len(tokens) == 0 {
			return noRecipients("No device tokens available"), nil
		}
	}

	tokens = cleanTokens(tokens)
	if len(tokens) == 0 {
		return noRecipients("No valid device tokens available"), nil
	}
	if n.Sound == "" {
		n.Sound = defaultSound
	}
	if n.Data == nil {
		n.Data = map[string]interface{}{}
	}

	chunks := chunkTokens(tokens, d.conf.ChunkSize)
	results := make([]chunkResult, len(chunks)) // one slot per chunk, merged below

	var g errgroup.Group
	g.SetLimit(d.conf.Concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			results[i] = d.sendChunk(ctx, n, chunk)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Errors: make([]TokenError, 0)}
	var delivered, unregistered []string
	for _, cr := range results {
		res.SuccessCount += len(cr.delivered)
		res.Errors = append(res.Errors, cr.errors...)
		delivered = append(delivered, cr.delivered...)
		unregistered = append(unregistered, cr.unregistered...)
	}
	res.ErrorCount = len(res.Errors)
	res.TotalSent = res.SuccessCount + res.ErrorCount

	switch {
	case res.ErrorCount == 0:
		res.Status = StatusSuccess
		res.Message = fmt.Sprintf("Successfully sent %d notifications", res.SuccessCount)
	case res.SuccessCount == 0:
		res.Status = StatusError
		res.Message = fmt.Sprintf("Sent %d notifications with %d errors", res.SuccessCount, res.ErrorCount)
	default:
		res.Status = StatusPartial
		res.Message = fmt.Sprintf("Sent %d notifications with %d errors", res.SuccessCount, res.ErrorCount)
	}
	notificationsSent.WithLabelValues("delivered").Add(float64(res.SuccessCount))
	notificationsSent.WithLabelValues("failed").Add(float64(res.ErrorCount))

	// bookkeeping must not fail the dispatch
	if err := d.store.Touch(ctx, delivered); err != nil {
		d.logger.Warn(fmt.Sprintf("touching device tokens: %v", err), err)
	}
	if err := d.store.Remove(ctx, unregistered); err != nil {
		d.logger.Warn(fmt.Sprintf("removing unregistered device tokens: %v", err), err)
	}
	return res, nil
}

func noRecipients(msg string) Result {
	return Result{
		Status:       StatusError,
		Errors:       make([]TokenError, 0),
		Message:      msg,
		NoRecipients: true,
	}
}

// cleanTokens drops blank and duplicate tokens, keeping the first occurrence order.
func cleanTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	cleaned := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	return cleaned
}

func chunkTokens(tokens []string, size int) [][]string {
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}

func (d *Dispatcher) sendChunk(ctx context.Context, n Notification, tokens []string) chunkResult {
	msgs := make([]Message, len(tokens))
	for i, token := range tokens {
		msgs[i] = Message{To: token, Title: n.Title, Body: n.Body, Sound: n.Sound, Data: n.Data}
	}

	tickets, err := d.sendWithRetry(ctx, msgs)
	if err != nil {
		d.logger.Error(fmt.Sprintf("sending push notification chunk of %d: %v", len(tokens), err), err)
		cr := chunkResult{errors: make([]TokenError, 0, len(tokens))}
		for _, token := range tokens {
			cr.errors = append(cr.errors, TokenError{Token: token, Message: err.Error()})
		}
		return cr
	}

	var cr chunkResult
	for i, token := range tokens {
		if i >= len(tickets) {
			cr.errors = append(cr.errors, TokenError{Token: token, Message: "no ticket returned by the push gateway"})
			continue
		}
		ticket := tickets[i]
		switch ticket.Status {
		case TicketOK:
			cr.delivered = append(cr.delivered, token)
		default:
			msg := ticket.Message
			if msg == "" {
				msg = "Unknown error"
			}
			cr.errors = append(cr.errors, TokenError{Token: token, Message: msg, Details: ticket.Details})
			if ticket.ErrorCode() == DeviceNotRegistered {
				cr.unregistered = append(cr.unregistered, token)
			}
		}
	}
	return cr
}

// sendWithRetry submits msgs in one gateway call, retrying transient failures with exponential backoff.
func (d *Dispatcher) sendWithRetry(ctx context.Context, msgs []Message) ([]Ticket, error) {
	var lastErr error
	for attempt := 1; attempt <= d.conf.MaxAttempts; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "waiting for rate limiter")
			}
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, d.conf.Timeout)
		tickets, err := d.gateway.Send(callCtx, msgs)
		cancel()
		gatewayDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			gatewayCalls.WithLabelValues("ok").Inc()
			return tickets, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			gatewayCalls.WithLabelValues("canceled").Inc()
			return nil, lastErr
		}
		if !IsRetryable(err) {
			gatewayCalls.WithLabelValues("failed").Inc()
			return nil, lastErr
		}
		gatewayCalls.WithLabelValues("retryable").Inc()

		if attempt < d.conf.MaxAttempts {
			delay := d.backoff(attempt)
			d.logger.Warn(fmt.Sprintf("push gateway attempt %d/%d failed, retrying in %s: %v", attempt, d.conf.MaxAttempts, delay, err))
			if err := sleep(ctx, delay); err != nil {
				return nil, lastErr
			}
		}
	}
	return nil, errors.Wrapf(lastErr, "giving up after %d attempts", d.conf.MaxAttempts)
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.conf.BaseDelay << uint(attempt-1)
	if delay > d.conf.MaxDelay || delay <= 0 {
		return d.conf.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
