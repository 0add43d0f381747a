package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/shelfauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createReader(t *testing.T, s *Store, id, phone, email string) shelfauth.UserRecord {
	t.Helper()
	u, err := s.CreateUser(context.Background(), shelfauth.CreateUserInput{
		UserID:       id,
		Username:     "reader-" + id,
		Phone:        phone,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		Role:         shelfauth.RoleReader,
		Status:       shelfauth.AccountActive,
	})
	require.NoError(t, err)
	return u
}

func TestCreateThenLookupByEitherIdentifier(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	created := createReader(t, s, "u1", "13800000000", "reader@example.com")

	byPhone, err := s.GetUserByIdentifier(ctx, "13800000000")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, byPhone.UserID)
	assert.Equal(t, created.PasswordHash, byPhone.PasswordHash)
	assert.True(t, created.CreatedAt.Equal(byPhone.CreatedAt))

	byEmail, err := s.GetUserByIdentifier(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.UserID)

	byID, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "reader-u1", byID.Username)
	assert.False(t, byID.Deleted)
	assert.WithinDuration(t, time.Now(), byID.CreatedAt, time.Minute)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, shelfauth.ErrUserNotFound)

	_, err = s.GetUserByIdentifier(ctx, "nobody@example.com")
	require.ErrorIs(t, err, shelfauth.ErrUserNotFound)

	require.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", "x"), shelfauth.ErrUserNotFound)
}

func TestDuplicateIdentifierRejected(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createReader(t, s, "u1", "13800000000", "")

	_, err := s.CreateUser(ctx, shelfauth.CreateUserInput{UserID: "u2", Username: "b", Phone: "13800000000", PasswordHash: "h"})
	require.ErrorIs(t, err, shelfauth.ErrProviderDuplicateIdentifier)

	_, err = s.CreateUser(ctx, shelfauth.CreateUserInput{UserID: "u1", Username: "c", Email: "c@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, shelfauth.ErrProviderDuplicateIdentifier)
}

func TestPhoneOnlyUsersDoNotCollideOnEmptyEmail(t *testing.T) {
	s := setupStore(t)
	createReader(t, s, "u1", "13800000001", "")
	createReader(t, s, "u2", "13800000002", "")

	u, err := s.GetUserByID(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, u.Email)
}

func TestUpdatesPersist(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createReader(t, s, "u1", "13800000000", "")

	require.NoError(t, s.UpdatePasswordHash(ctx, "u1", "new-hash"))
	_, err := s.db.ExecContext(ctx, `UPDATE users SET status = ?, deleted = 1 WHERE id = ?`, uint8(shelfauth.AccountDisabled), "u1")
	require.NoError(t, err)

	u, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", u.PasswordHash)
	assert.Equal(t, shelfauth.AccountDisabled, u.Status)
	assert.True(t, u.Deleted)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}
