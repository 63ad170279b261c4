package bigquery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

var transientHTTP = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

var transientGRPC = map[codes.Code]struct{}{
	codes.Aborted:           {},
	codes.DeadlineExceeded:  {},
	codes.Internal:          {},
	codes.ResourceExhausted: {},
	codes.Unavailable:       {},
}

// IsRetryable reports whether an insert failure is worth another attempt.
// Insert errors can bundle one failure per row; the bundle is retryable only
// if every failure inside it is.
func IsRetryable(err error) bool {
	leaves := flatten(err)
	if len(leaves) == 0 {
		return false
	}
	for _, leaf := range leaves {
		if !transient(leaf) {
			return false
		}
	}
	return true
}

// flatten unpacks bigquery.MultiError and bigquery.PutMultiError into the
// individual failures they carry.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	var multi bigquery.MultiError
	if errors.As(err, &multi) {
		var out []error
		for _, inner := range multi {
			out = append(out, flatten(inner)...)
		}
		return out
	}
	var rows bigquery.PutMultiError
	if errors.As(err, &rows) {
		var out []error
		for _, row := range rows {
			if len(row.Errors) == 0 {
				// a row failure without a cause cannot be classified
				out = append(out, errors.New(row.Error()))
				continue
			}
			out = append(out, flatten(row.Errors)...)
		}
		return out
	}
	return []error{err}
}

func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		_, ok := transientHTTP[apiErr.Code]
		return ok
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		_, ok := transientGRPC[st.Code()]
		return ok
	}
	return false
}

// RetryPolicy bounds how often, and how far apart, a failed call is retried.
// Zero fields take package defaults.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(defaultMaximumBackoff, p.InitialBackoff)
	}
	return p
}

// Retry calls fn until it succeeds, fails permanently, or the attempts run
// out. The wait doubles after each transient failure.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	policy = policy.normalized()
	wait := policy.InitialBackoff
	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return multierr.Combine(err, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(2*wait, policy.MaximumBackoff)
	}
	return err
}
