package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"

	"almaconnector/internal/constants"
	apperrors "almaconnector/pkg/errors"
)

// Identity is the repository user a workflow acts for.
type Identity struct {
	UserID int
	Email  string
}

func SystemIdentity() Identity {
	return Identity{UserID: SystemUserID}
}

func (i Identity) IsSystem() bool {
	return i.Email == ""
}

type userFinder interface {
	findUser(ctx context.Context, email string) (*user, error)
}

// IdentityResolver maps e-mail addresses to identities and caches the
// answers for constants.IdentityCacheTTL.
type IdentityResolver struct {
	finder userFinder
	cache  *cache.Cache
}

func NewIdentityResolver(client *Client) *IdentityResolver {
	return newIdentityResolver(client)
}

func newIdentityResolver(finder userFinder) *IdentityResolver {
	return &IdentityResolver{
		finder: finder,
		cache:  cache.New(constants.IdentityCacheTTL, 2*constants.IdentityCacheTTL),
	}
}

// Resolve returns the system identity for an empty address and a lookup
// error for an unknown one.
func (r *IdentityResolver) Resolve(ctx context.Context, email string) (Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return SystemIdentity(), nil
	}

	key := strings.ToLower(email)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(Identity), nil
	}

	u, err := r.finder.findUser(ctx, email)
	if err != nil {
		return Identity{}, err
	}

	id, err := strconv.Atoi(u.ID.String())
	if err != nil {
		return Identity{}, apperrors.ErrService.WithMessagef("repository returned invalid user id %q", u.ID).WithCause(err)
	}

	identity := Identity{UserID: id, Email: u.Email}
	r.cache.SetDefault(key, identity)
	return identity, nil
}
