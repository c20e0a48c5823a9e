package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "almaconnector/pkg/errors"
)

type fakeFinder struct {
	users map[string]string
	calls int
}

func (f *fakeFinder) findUser(_ context.Context, email string) (*user, error) {
	f.calls++
	id, ok := f.users[email]
	if !ok {
		return nil, apperrors.ErrNotFound.WithMessagef("user not found: %s", email)
	}
	return &user{ID: json.Number(id), Email: email}, nil
}

func TestIdentityResolver_EmptyEmailIsSystem(t *testing.T) {
	finder := &fakeFinder{}
	r := newIdentityResolver(finder)

	identity, err := r.Resolve(context.Background(), "  ")
	require.NoError(t, err)
	assert.True(t, identity.IsSystem())
	assert.Equal(t, SystemUserID, identity.UserID)
	assert.Zero(t, finder.calls)
}

func TestIdentityResolver_CachesUsers(t *testing.T) {
	finder := &fakeFinder{users: map[string]string{"alma@tugraz.at": "7"}}
	r := newIdentityResolver(finder)

	for i := 0; i < 3; i++ {
		identity, err := r.Resolve(context.Background(), "alma@tugraz.at")
		require.NoError(t, err)
		assert.Equal(t, 7, identity.UserID)
	}
	assert.Equal(t, 1, finder.calls)
}

func TestIdentityResolver_UnknownUser(t *testing.T) {
	r := newIdentityResolver(&fakeFinder{users: map[string]string{}})

	_, err := r.Resolve(context.Background(), "nobody@example.org")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
