package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// Network retry defaults. These cover transient transport faults only;
// parse-failure retry is a separate axis handled by the gateway.
const (
	defaultNetworkAttempts = 4
	defaultBackoffBase     = 500 * time.Millisecond
	defaultBackoffCap      = 8 * time.Second
)

// isRetryableNetworkError reports whether an error is a transient
// transport-level fault worth retrying with backoff.
func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
	}

	return false
}

// callWithNetworkRetry runs the raw generation call, retrying transient
// network failures with exponential backoff. Non-network errors and an
// exhausted attempt budget surface the raw underlying error.
func (g *Gateway) callWithNetworkRetry(ctx context.Context, req Request) (*Result, error) {
	delay := g.backoffBase
	for attempt := 1; ; attempt++ {
		result, err := g.client.Generate(ctx, req)
		if err == nil {
			return result, nil
		}
		if !isRetryableNetworkError(err) || attempt >= g.networkAttempts {
			return nil, err
		}

		g.logger.Warn("transient network failure, backing off",
			zap.String("role", string(req.Role)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > g.backoffCap {
			delay = g.backoffCap
		}
	}
}
