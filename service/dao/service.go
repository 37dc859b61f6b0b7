package dao

import "context"

// Service abstracts entity persistence so that the ledger can run against
// an in-memory store in tests and a filesystem store in deployments.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context) ([]*T, error)
}
