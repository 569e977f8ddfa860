package ctxutil

import (
	"context"

	"github.com/asterlab/mission-gateway/internal/domain/identity"
)

type traceDataKey struct{}
type principalKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns the resolved caller, or nil when no auth middleware ran.
func GetPrincipal(ctx context.Context) *identity.Principal {
	if p, ok := ctx.Value(principalKey{}).(*identity.Principal); ok {
		return p
	}
	return nil
}
