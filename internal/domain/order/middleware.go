package order

import "context"

// Middleware is a registered callback chain around line-level mutations.
// Each Should* method returns an empty string to let the mutation proceed or
// a non-empty rejection reason to veto it. The Ledger invokes middlewares in
// registration order and short-circuits on the first veto; later middlewares
// may rely on side effects of earlier ones.
//
// Embed BaseMiddleware to implement only the callbacks you care about.
type Middleware interface {
	// Name identifies the middleware in veto errors and logs.
	Name() string
	ShouldAddItem(ctx context.Context, o *Order, variantID string, quantity int) string
	ShouldAdjustLine(ctx context.Context, o *Order, l *Line, newQuantity int) string
	ShouldRemoveLine(ctx context.Context, o *Order, l *Line) string
	ShouldApplyCoupon(ctx context.Context, o *Order, code string) string
	ShouldRemoveCoupon(ctx context.Context, o *Order, code string) string
}

// BaseMiddleware is a no-op Middleware for embedding.
type BaseMiddleware struct{}

func (BaseMiddleware) ShouldAddItem(context.Context, *Order, string, int) string { return "" }
func (BaseMiddleware) ShouldAdjustLine(context.Context, *Order, *Line, int) string { return "" }
func (BaseMiddleware) ShouldRemoveLine(context.Context, *Order, *Line) string      { return "" }
func (BaseMiddleware) ShouldApplyCoupon(context.Context, *Order, string) string    { return "" }
func (BaseMiddleware) ShouldRemoveCoupon(context.Context, *Order, string) string   { return "" }
