package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

const sessionKeyPrefix = "auth:session:"

// Service wraps authentication business rules. Sessions are opaque bearer
// tokens stored in Redis with a TTL.
type Service struct {
	repo     Repository
	sessions *redis.Client
	ttl      time.Duration
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *redis.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, sessions: sessions, ttl: ttl}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	identity := shared.Identity{UserID: user.ID, CompanyID: user.CompanyID, Role: user.Role}
	payload, err := json.Marshal(identity)
	if err != nil {
		return "", nil, fmt.Errorf("auth: encode session: %w", err)
	}
	token := uuid.NewString()
	if err := s.sessions.Set(ctx, sessionKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", nil, fmt.Errorf("auth: store session: %w", err)
	}
	return token, user, nil
}

// Verify resolves a bearer token into the identity it was issued for.
func (s *Service) Verify(ctx context.Context, token string) (shared.Identity, error) {
	payload, err := s.sessions.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return shared.Identity{}, shared.ErrInvalidCredentials
	}
	if err != nil {
		return shared.Identity{}, fmt.Errorf("auth: load session: %w", err)
	}
	var identity shared.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return shared.Identity{}, fmt.Errorf("auth: decode session: %w", err)
	}
	return identity, nil
}

// Logout revokes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, sessionKeyPrefix+token).Err()
}
