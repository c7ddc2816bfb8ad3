package ports

import "context"

// SecretStore resolves credentials such as the billing API key. Backends may
// be read-only; a read-only Put fails rather than silently dropping writes.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
