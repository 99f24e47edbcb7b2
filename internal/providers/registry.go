package providers

import (
	"fmt"
	"sort"
	"sync"

	"nathanbeddoewebdev/linops/internal/linodeapi"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/util"
)

// DefaultAccount is the account name used when none is given.
const DefaultAccount = "linode"

// Factory builds a provider for one account, reading credentials from store.
type Factory func(store auth.Store) (*LinodeProvider, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("providers: empty account name")
	}
	if factory == nil {
		panic("providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("providers: account %q already registered", name))
	}

	registry[normalizedName] = factory
}

func Get(name string, store auth.Store) (*LinodeProvider, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("providers: unknown account %q", name)
	}

	return factory(store)
}

// Reset clears the provider registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// RegisterLinode registers the production API under DefaultAccount. The
// API key comes from LINODE_API_KEY or the auth store.
func RegisterLinode(opts ...Option) {
	Register(DefaultAccount, func(store auth.Store) (*LinodeProvider, error) {
		key, err := auth.ResolveToken(store, DefaultAccount)
		if err != nil {
			return nil, fmt.Errorf("linode auth: %w", err)
		}
		return NewLinodeProvider(linodeapi.NewClient(key), opts...), nil
	})
}
