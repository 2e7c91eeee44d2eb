package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/repository"
	"github.com/cortexlab/neuroscan/common/logger"
	commonredis "github.com/cortexlab/neuroscan/common/redis"
)

var (
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords
	// so login responses never reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountExists is returned when the username or email is taken.
	ErrAccountExists = errors.New("username or email already registered")

	// ErrSessionInvalid is returned for missing, expired, or malformed sessions.
	ErrSessionInvalid = errors.New("session invalid or expired")
)

// ValidationError reports a rejected registration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

const (
	minUsernameLen = 3
	minPasswordLen = 6

	sessionKeyPrefix = "session:"
)

// UserStore is the account persistence consumed by AuthService.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*models.User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
}

// SessionStore keeps session tokens with a sliding expiry.
type SessionStore interface {
	SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Expire(ctx context.Context, key string, expiry time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	BirthYear  int
	Gender     string
	BloodGroup string
	Address    string
}

// AuthService handles registration, login, and session lifecycle.
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	sessionTTL time.Duration
	log        *logger.Logger
}

// NewAuthService creates the auth service.
func NewAuthService(users UserStore, sessions SessionStore, sessionTTL time.Duration, log *logger.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Register validates the input, hashes the password, and creates the account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	taken, err := s.users.Exists(ctx, input.Username, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check account uniqueness: %w", err)
	}
	if taken {
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		BirthYear:    input.BirthYear,
		Gender:       input.Gender,
		BloodGroup:   input.BloodGroup,
		Address:      input.Address,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Info("account registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login checks credentials against the account matching the username or
// email and opens a new session. Returns the session token.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, string, error) {
	user, err := s.users.GetByUsernameOrEmail(ctx, strings.TrimSpace(usernameOrEmail))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	key := sessionKeyPrefix + token
	if err := s.sessions.SetWithExpiry(ctx, key, strconv.FormatInt(user.ID, 10), s.sessionTTL); err != nil {
		return nil, "", fmt.Errorf("failed to open session: %w", err)
	}

	s.log.Info("session opened", "user_id", user.ID)
	return user, token, nil
}

// Validate resolves a session token to its user id and slides the expiry
// forward so active sessions stay alive.
func (s *AuthService) Validate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrSessionInvalid
	}

	key := sessionKeyPrefix + token
	value, err := s.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, commonredis.ErrKeyNotFound) {
			return 0, ErrSessionInvalid
		}
		return 0, fmt.Errorf("failed to read session: %w", err)
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, ErrSessionInvalid
	}

	if err := s.sessions.Expire(ctx, key, s.sessionTTL); err != nil {
		s.log.Warn("failed to refresh session expiry", "error", err)
	}

	return userID, nil
}

// Logout removes the session. Missing tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionKeyPrefix+token)
}

func validateRegistration(input RegisterInput) error {
	if len(input.Username) < minUsernameLen {
		return &ValidationError{Field: "username", Reason: fmt.Sprintf("must be at least %d characters", minUsernameLen)}
	}
	if len(input.Password) < minPasswordLen {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if input.BirthYear != 0 {
		currentYear := time.Now().Year()
		if input.BirthYear < 1900 || input.BirthYear > currentYear {
			return &ValidationError{Field: "birth_year", Reason: "out of range"}
		}
	}
	return nil
}
