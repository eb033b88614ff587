package service

import "context"

// PassthroughTx runs the callback on the caller's context without opening a
// transaction. In-memory stores hold their own locks across Execute, so unit
// tests (and single-store deployments) get the same serialization guarantees
// without a database.
type PassthroughTx struct{}

func (PassthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
