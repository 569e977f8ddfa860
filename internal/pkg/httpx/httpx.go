package httpx

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

const maxErrorBodyBytes = 2048

// IsUnreachable reports whether err means the upstream never gave a usable
// answer (timeout, refused connection, canceled dial) as opposed to a
// definitive rejection carried in a response.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// ErrorBody reads at most maxErrorBodyBytes of a non-2xx response body for
// inclusion in error messages.
func ErrorBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// DrainAndClose discards the remainder of a response body so the underlying
// connection can be reused.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
}
