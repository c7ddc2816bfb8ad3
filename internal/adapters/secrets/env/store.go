// Package env reads secrets from process environment variables. The store is
// read-only: Put and Delete always fail so a chain falls through to a
// writable backend.
package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/billingops/account-rescue-cli/internal/domain"
	"github.com/billingops/account-rescue-cli/internal/ports"
)

var ErrReadOnly = errors.New("environment secret store is read-only")

type Store struct {
	prefix string
}

var _ ports.SecretStore = (*Store)(nil)

// NewStore maps secret keys to environment variables. A key "api_key" with
// prefix "RESCUE" resolves to RESCUE_API_KEY.
func NewStore(prefix string) *Store {
	return &Store{prefix: strings.ToUpper(strings.TrimSpace(prefix))}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := s.variableName(key)
	if err != nil {
		return "", err
	}

	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("environment variable %s: %w", name, domain.ErrSecretNotFound)
	}

	return strings.TrimSpace(value), nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("put secret %q: %w", key, ErrReadOnly)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("delete secret %q: %w", key, ErrReadOnly)
}

func (s *Store) variableName(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}

	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(trimmed))
	if s.prefix != "" {
		name = s.prefix + "_" + name
	}

	return name, nil
}
