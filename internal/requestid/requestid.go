// Package requestid carries the request identifier through context.Context so
// outbound calls can forward it.
package requestid

import "context"

// Header is the HTTP header used to propagate request identifiers.
const Header = "X-Request-ID"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request identifier stored in ctx, if any.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
