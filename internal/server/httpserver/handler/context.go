package handler

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

type callerKey struct{}

// WithCaller records the identity acting on a request.
func WithCaller(ctx context.Context, caller solana.PublicKey) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the identity recorded by WithCaller.
func CallerFromContext(ctx context.Context) (solana.PublicKey, bool) {
	c, ok := ctx.Value(callerKey{}).(solana.PublicKey)
	return c, ok
}
