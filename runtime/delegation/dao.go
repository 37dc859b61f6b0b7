package delegation

import "context"

// DAO abstracts persistence of correlation entries so that the channel can
// recover its in-flight state after a restart.
type DAO interface {
	Save(ctx context.Context, entry *Entry) error
	Load(ctx context.Context, remoteID string) (*Entry, error)
	Delete(ctx context.Context, remoteID string) error
	List(ctx context.Context) ([]*Entry, error)
}
