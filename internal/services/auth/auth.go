// Package auth stores Linode API keys.
package auth

import (
	"errors"
	"os"
	"strings"

	"nathanbeddoewebdev/linops/internal/util"
)

const ServiceName = "linops"

// EnvAPIKey overrides the stored key when set.
const EnvAPIKey = "LINODE_API_KEY"

var ErrTokenNotFound = errors.New("auth token not found")

// Store keeps one API key per account name.
type Store interface {
	SetToken(account string, token string) error
	GetToken(account string) (string, error)
	DeleteToken(account string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeAccount normalizes an account name for consistent key lookup.
func NormalizeAccount(account string) string {
	return util.NormalizeKey(account)
}

// ResolveToken returns the API key for account, preferring the
// LINODE_API_KEY environment variable over the store.
func ResolveToken(store Store, account string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		return key, nil
	}
	return store.GetToken(account)
}
