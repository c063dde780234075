package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/stockgate/internal/core/domain"
)

// Directory is an in-memory set of user accounts and API keys.
// Usernames are matched case-insensitively.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	keys  map[string]*domain.APIKey
}

// NewDirectory builds a Directory, rejecting duplicate usernames or key ids
// and secrets that are not argon2id hashes.
func NewDirectory(users []domain.User, keys []domain.APIKey) (*Directory, error) {
	d := &Directory{}
	if err := d.Replace(users, keys); err != nil {
		return nil, err
	}
	return d, nil
}

// Replace atomically swaps the directory contents. On error the previous
// contents are kept.
func (d *Directory) Replace(users []domain.User, keys []domain.APIKey) error {
	um := make(map[string]*domain.User, len(users))
	for i := range users {
		u := users[i]
		name := strings.ToLower(strings.TrimSpace(u.Username))
		if name == "" {
			return domain.ErrConfiguration.WithDetails(fmt.Sprintf("user %d has no username", i))
		}
		if _, dup := um[name]; dup {
			return domain.ErrConfiguration.WithDetails("duplicate username " + u.Username)
		}
		if !domain.IsPasswordHash(u.PasswordHash) {
			return domain.ErrConfiguration.WithDetails("user " + u.Username + " has no argon2id or bcrypt password hash")
		}
		if u.ID == "" {
			u.ID = u.Username
		}
		um[name] = cloneUser(&u)
	}

	km := make(map[string]*domain.APIKey, len(keys))
	for i := range keys {
		k := keys[i]
		if k.KeyID == "" {
			return domain.ErrConfiguration.WithDetails(fmt.Sprintf("api key %d has no key_id", i))
		}
		if _, dup := km[k.KeyID]; dup {
			return domain.ErrConfiguration.WithDetails("duplicate api key id " + k.KeyID)
		}
		if !domain.IsArgon2Hash(k.SecretHash) {
			return domain.ErrConfiguration.WithDetails("api key " + k.KeyID + " has no argon2id secret hash")
		}
		km[k.KeyID] = cloneKey(&k)
	}

	d.mu.Lock()
	d.users = um
	d.keys = km
	d.mu.Unlock()
	return nil
}

// FindUser implements service.UserDirectory.
func (d *Directory) FindUser(_ context.Context, username string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, domain.ErrNotFound.WithDetails("user")
	}
	return cloneUser(u), nil
}

// FindAPIKey implements service.APIKeyDirectory.
func (d *Directory) FindAPIKey(_ context.Context, keyID string) (*domain.APIKey, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	k, ok := d.keys[keyID]
	if !ok {
		return nil, domain.ErrNotFound.WithDetails("api key")
	}
	return cloneKey(k), nil
}

// PutAPIKey adds or replaces an API key.
func (d *Directory) PutAPIKey(key domain.APIKey) error {
	if key.KeyID == "" {
		return domain.ErrMissingArgument.WithDetails("key_id")
	}
	if !domain.IsArgon2Hash(key.SecretHash) {
		return domain.ErrBadRequest.WithDetails("secret hash is not argon2id")
	}
	d.mu.Lock()
	d.keys[key.KeyID] = cloneKey(&key)
	d.mu.Unlock()
	return nil
}

// SetAPIKeyEnabled enables or disables a key.
func (d *Directory) SetAPIKeyEnabled(keyID string, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.keys[keyID]
	if !ok {
		return domain.ErrNotFound.WithDetails("api key")
	}
	k.Enabled = enabled
	return nil
}

// Counts returns the number of users and API keys.
func (d *Directory) Counts() (users, keys int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users), len(d.keys)
}

// ListAPIKeys returns copies of all keys ordered by id.
func (d *Directory) ListAPIKeys() []domain.APIKey {
	d.mu.RLock()
	out := make([]domain.APIKey, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, *cloneKey(k))
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

func cloneKey(k *domain.APIKey) *domain.APIKey {
	c := *k
	c.Roles = slices.Clone(k.Roles)
	return &c
}
