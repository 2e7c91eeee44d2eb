package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/repository"
	"github.com/cortexlab/neuroscan/common/logger"
	commonredis "github.com/cortexlab/neuroscan/common/redis"
)

type fakeUsers struct {
	byLogin map[string]*models.User
	nextID  int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byLogin: make(map[string]*models.User), nextID: 1}
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	u.ID = f.nextID
	f.nextID++
	f.byLogin[u.Username] = u
	f.byLogin[u.Email] = u
	return nil
}

func (f *fakeUsers) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	if u, ok := f.byLogin[usernameOrEmail]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) Exists(ctx context.Context, username, email string) (bool, error) {
	_, hasName := f.byLogin[username]
	_, hasEmail := f.byLogin[email]
	return hasName || hasEmail, nil
}

type fakeSessions struct {
	values  map[string]string
	expires map[string]time.Duration
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{values: make(map[string]string), expires: make(map[string]time.Duration)}
}

func (f *fakeSessions) SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error {
	f.values[key] = value
	f.expires[key] = expiry
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", commonredis.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeSessions) Expire(ctx context.Context, key string, expiry time.Duration) error {
	f.expires[key] = expiry
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
		delete(f.expires, k)
	}
	return nil
}

func newAuthService(users UserStore, sessions SessionStore) *AuthService {
	return NewAuthService(users, sessions, time.Hour, logger.New("error", "text"))
}

func validInput() RegisterInput {
	return RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "correct-horse",
		BirthYear: 1985,
	}
}

func TestRegisterStoresBcryptHash(t *testing.T) {
	users := newFakeUsers()
	svc := newAuthService(users, newFakeSessions())

	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(newFakeUsers(), newFakeSessions())

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"short username", func(in *RegisterInput) { in.Username = "ab" }, "username"},
		{"short password", func(in *RegisterInput) { in.Password = "12345" }, "password"},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"birth year out of range", func(in *RegisterInput) { in.BirthYear = 1850 }, "birth_year"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)

			_, err := svc.Register(context.Background(), input)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	users := newFakeUsers()
	svc := newAuthService(users, newFakeSessions())

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLoginOpensSession(t *testing.T) {
	users := newFakeUsers()
	sessions := newFakeSessions()
	svc := newAuthService(users, sessions)

	registered, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, token)

	// The token resolves back to the same user
	userID, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, userID)
}

func TestLoginByEmail(t *testing.T) {
	svc := newAuthService(newFakeUsers(), newFakeSessions())
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, token, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(newFakeUsers(), newFakeSessions())
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateSlidesExpiry(t *testing.T) {
	sessions := newFakeSessions()
	svc := newAuthService(newFakeUsers(), sessions)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, token, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	key := sessionKeyPrefix + token
	sessions.expires[key] = time.Minute // simulate time passing

	_, err = svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, sessions.expires[key])
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	svc := newAuthService(newFakeUsers(), newFakeSessions())

	_, err := svc.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = svc.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestLogoutRemovesSession(t *testing.T) {
	sessions := newFakeSessions()
	svc := newAuthService(newFakeUsers(), sessions)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, token, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))

	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
