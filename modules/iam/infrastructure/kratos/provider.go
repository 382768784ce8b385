package kratos

import (
	"context"
	"errors"
	"strings"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
)

// IdentityProvider adapts the client to the console's sign-in port. The
// identity schema carries email, name and picture traits.
type IdentityProvider struct {
	client *Client
}

func NewIdentityProvider(c *Client) *IdentityProvider {
	return &IdentityProvider{client: c}
}

func (p *IdentityProvider) AuthenticatePassword(ctx context.Context, email string, password string) (types.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	sess, err := p.client.LoginPassword(ctx, email, password)
	if err != nil {
		if he, ok := errors.AsType[*HTTPError](err); ok && he.Rejected() {
			return types.Identity{}, ports.ErrInvalidCredentials
		}
		return types.Identity{}, err
	}
	// The console issues its own sid.
	_ = p.client.Logout(ctx, sess.Token)

	if sess.Identity.ID == "" {
		return types.Identity{}, errors.New("kratos: missing identity id")
	}
	emailTrait, ok := stringTrait(sess.Identity.Traits, "email")
	if !ok || strings.ToLower(emailTrait) != email {
		return types.Identity{}, errors.New("kratos: email mismatch")
	}
	name, _ := stringTrait(sess.Identity.Traits, "name")
	picture, _ := stringTrait(sess.Identity.Traits, "picture")
	return types.Identity{
		UID:         sess.Identity.ID,
		Email:       email,
		DisplayName: name,
		PhotoURL:    picture,
	}, nil
}

func stringTrait(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
