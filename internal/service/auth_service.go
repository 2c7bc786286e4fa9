package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/id"
)

// APIKeyRepository defines API key repository operations
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	// GetByDigest looks up a non-expired key by its deterministic digest.
	GetByDigest(ctx context.Context, digest string) (*domain.APIKey, error)
	Update(ctx context.Context, key *domain.APIKey) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.APIKey, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

// AuthService handles API-key authentication. Keys are shown once at
// creation; the store keeps a SHA-256 digest for lookup and a bcrypt hash
// for verification. A verified key can be exchanged for a short-lived JWT
// so browser clients can authenticate SSE streams without carrying the key.
type AuthService struct {
	cfg     *config.Config
	apiKeys APIKeyRepository
	logger  *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(logger *zap.Logger, cfg *config.Config, apiKeys APIKeyRepository) *AuthService {
	return &AuthService{
		logger:  logger.Named("auth"),
		cfg:     cfg,
		apiKeys: apiKeys,
	}
}

// CreateAPIKey creates a new API key. The raw secret appears only in the
// returned result and is never stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, input *domain.APIKeyInput) (*domain.APIKeyCreateResult, error) {
	rawKey := id.NewAPIKey()

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API key: %w", err)
	}

	scopes := input.Scopes
	if len(scopes) == 0 {
		scopes = domain.DefaultScopes()
	}

	now := time.Now().UTC()
	key := &domain.APIKey{
		ID:         uuid.New(),
		Name:       input.Name,
		KeyDigest:  keyDigest(rawKey),
		KeyHash:    string(hash),
		KeyPreview: keyPreview(rawKey),
		Scopes:     scopes,
		ExpiresAt:  input.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.apiKeys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", err)
	}

	s.logger.Info("API key created",
		zap.String("key_id", key.ID.String()),
		zap.String("name", key.Name),
	)

	return &domain.APIKeyCreateResult{
		APIKey:    key,
		SecretKey: rawKey,
	}, nil
}

// VerifyAPIKey authenticates a raw API key. On success the key's last-used
// timestamp is refreshed asynchronously.
func (s *AuthService) VerifyAPIKey(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	if rawKey == "" {
		return nil, apperrors.Unauthorized("API key required")
	}

	key, err := s.apiKeys.GetByDigest(ctx, keyDigest(rawKey))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("invalid API key")
		}
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)); err != nil {
		return nil, apperrors.Unauthorized("invalid API key")
	}

	go func() {
		if err := s.apiKeys.UpdateLastUsed(context.Background(), key.ID); err != nil {
			s.logger.Warn("failed to update key last used",
				zap.String("key_id", key.ID.String()),
				zap.Error(err),
			)
		}
	}()

	return key, nil
}

// sessionClaims carries the verified key identity inside the JWT
type sessionClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// ExchangeToken verifies a raw API key and issues a short-lived JWT bound
// to the key's scopes.
func (s *AuthService) ExchangeToken(ctx context.Context, rawKey string) (string, time.Time, error) {
	key, err := s.VerifyAPIKey(ctx, rawKey)
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(s.cfg.JWT.Expiry)
	claims := sessionClaims{
		Scopes: key.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key.ID.String(),
			Issuer:    s.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateToken parses and verifies a session JWT, returning the key
// context it was issued for.
func (s *AuthService) ValidateToken(tokenString string) (*domain.APIKeyContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok {
		return nil, apperrors.Unauthorized("invalid token claims")
	}

	keyID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token subject")
	}

	return &domain.APIKeyContext{
		APIKeyID: keyID,
		Scopes:   claims.Scopes,
	}, nil
}

// GetAPIKey retrieves an API key by ID
func (s *AuthService) GetAPIKey(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error) {
	return s.apiKeys.GetByID(ctx, keyID)
}

// ListAPIKeys lists all API keys
func (s *AuthService) ListAPIKeys(ctx context.Context) (*domain.APIKeyList, error) {
	keys, err := s.apiKeys.List(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.apiKeys.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.APIKeyList{APIKeys: keys, TotalCount: count}, nil
}

// UpdateAPIKey updates a key's name, scopes or expiry
func (s *AuthService) UpdateAPIKey(ctx context.Context, keyID uuid.UUID, input *domain.APIKeyInput) (*domain.APIKey, error) {
	key, err := s.apiKeys.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		key.Name = input.Name
	}
	if len(input.Scopes) > 0 {
		key.Scopes = input.Scopes
	}
	if input.ExpiresAt != nil {
		key.ExpiresAt = input.ExpiresAt
	}
	key.UpdatedAt = time.Now().UTC()

	if err := s.apiKeys.Update(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// RevokeAPIKey deletes an API key
func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID uuid.UUID) error {
	if err := s.apiKeys.Delete(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("API key revoked", zap.String("key_id", keyID.String()))
	return nil
}

// keyDigest is the deterministic lookup digest of a raw key
func keyDigest(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// keyPreview keeps the prefix and first few characters for display
func keyPreview(rawKey string) string {
	if len(rawKey) <= 7 {
		return rawKey
	}
	return rawKey[:7] + "..."
}
