package txn

import "context"

// Manager runs fn inside one transaction. Repositories called with the ctx
// passed to fn take part in that transaction; a nested WithTransaction joins
// the outer one. A non-nil error from fn rolls everything back.
type Manager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
