package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Gateway submits one batch of messages to a push service.
// The returned tickets are index-aligned with msgs.
type Gateway interface {
	Send(ctx context.Context, msgs []Message) ([]Ticket, error)
}

// GatewayError is a failed gateway call. Retryable errors are worth another attempt.
type GatewayError struct {
	StatusCode int
	Body       string
	Retryable  bool
	Err        error
}

func (err GatewayError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return fmt.Sprintf("Unexpected status code: %d", err.StatusCode)
}

func (err GatewayError) Unwrap() error { return err.Err }

// NewStatusError classifies a non-200 gateway response.
func NewStatusError(code int, body string) *GatewayError {
	return &GatewayError{
		StatusCode: code,
		Body:       body,
		Retryable:  code == http.StatusTooManyRequests || code >= http.StatusInternalServerError,
	}
}

// IsRetryable reports whether a failed call may be attempted again.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
