package services

import (
	"context"
	"strings"
	"sync"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
)

// StaticIdentityProvider authenticates against a fixed credential table. It
// backs local development and tests.
type StaticIdentityProvider struct {
	mu       sync.RWMutex
	accounts map[string]staticAccount
}

type staticAccount struct {
	password string
	identity types.Identity
}

func NewStaticIdentityProvider() *StaticIdentityProvider {
	return &StaticIdentityProvider{accounts: map[string]staticAccount{}}
}

// Add registers an account; the uid defaults to the email.
func (p *StaticIdentityProvider) Add(id types.Identity, password string) {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	if id.UID == "" {
		id.UID = id.Email
	}
	p.mu.Lock()
	p.accounts[id.Email] = staticAccount{password: password, identity: id}
	p.mu.Unlock()
}

func (p *StaticIdentityProvider) AuthenticatePassword(_ context.Context, email string, password string) (types.Identity, error) {
	p.mu.RLock()
	acc, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	p.mu.RUnlock()
	if !ok || acc.password != password {
		return types.Identity{}, ports.ErrInvalidCredentials
	}
	return acc.identity, nil
}
