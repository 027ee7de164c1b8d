package gemini

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// isTransient reports whether err is a rate-limit or overload response
// worth retrying: HTTP 429 / RESOURCE_EXHAUSTED or HTTP 503 / UNAVAILABLE.
// Only API errors from the model service qualify.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code, apiErr.Status)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return transientStatus(apiErrPtr.Code, apiErrPtr.Status)
	}
	return false
}

func transientStatus(code int, status string) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return status == "RESOURCE_EXHAUSTED" || status == "UNAVAILABLE"
}

// backoff returns the wait before retry number n (1-based): initial, 2x, 4x, ...
func backoff(initial time.Duration, n int) time.Duration {
	return initial << (n - 1)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
