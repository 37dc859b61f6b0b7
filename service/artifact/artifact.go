// Package artifact defines how binary step products are published to
// durable storage and referenced by locator from task records.
package artifact

import (
	"context"
	"errors"
)

// ErrPublish indicates an artifact could not be published.
var ErrPublish = errors.New("failed to publish artifact")

// Publisher stores a binary artifact and returns a stable locator for it.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
