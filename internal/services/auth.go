package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/argon2"

	"github.com/bookwarden/bookwarden/internal/database/queries"
	"github.com/bookwarden/bookwarden/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidPassword    = errors.New("invalid password format")
)

// AuthQuerier defines the interface for auth database operations.
type AuthQuerier interface {
	GetAccountByEmail(ctx context.Context, email string) (queries.Account, error)
	GetAccountByID(ctx context.Context, id int32) (queries.Account, error)
}

// AuthService issues and validates access tokens and hashes passwords.
// Tokens are HS256 JWTs carrying account id, email and role.
type AuthService struct {
	queries      AuthQuerier
	secret       []byte
	tokenExpiry  time.Duration
	argon2Config *Argon2Config
	logger       *slog.Logger
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func NewAuthService(querier AuthQuerier, secret string, tokenExpiry time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		queries:     querier,
		secret:      []byte(secret),
		tokenExpiry: tokenExpiry,
		argon2Config: &Argon2Config{
			Memory:      64 * 1024,
			Iterations:  3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		logger: logger,
	}
}

// Login validates credentials and returns the account plus an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	account, err := s.queries.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !account.IsActive.Bool {
		return nil, ErrAccountInactive
	}

	match, err := s.VerifyPassword(account.PasswordHash, password)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(&account)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("account logged in", "account_id", account.ID, "role", account.Role)

	return &models.LoginResponse{
		Account:     accountResponseFromRow(account),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenExpiry.Seconds()),
	}, nil
}

// GenerateToken signs an access token for the account.
func (s *AuthService) GenerateToken(account *queries.Account) (string, error) {
	now := time.Now()
	claims := &models.JWTClaims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      models.AccountRole(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("account_%d", account.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResolveActor loads the current account state for the token's subject. The
// active flag and fine balance are read fresh on every request so a
// deactivation or an accrued fine takes effect immediately.
func (s *AuthService) ResolveActor(ctx context.Context, claims *models.JWTClaims) (models.Actor, error) {
	account, err := s.queries.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Actor{}, ErrInvalidToken
		}
		return models.Actor{}, fmt.Errorf("failed to resolve actor: %w", err)
	}

	return models.Actor{
		ID:          account.ID,
		Role:        models.AccountRole(account.Role),
		IsActive:    account.IsActive.Bool,
		FineBalance: decimalFromNumeric(account.FineBalance),
	}, nil
}

// HashPassword derives an argon2id hash in the standard encoded format.
func (s *AuthService) HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrInvalidPassword
	}

	salt := make([]byte, s.argon2Config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		s.argon2Config.Iterations,
		s.argon2Config.Memory,
		s.argon2Config.Parallelism,
		s.argon2Config.KeyLength,
	)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		s.argon2Config.Memory,
		s.argon2Config.Iterations,
		s.argon2Config.Parallelism,
		b64Salt,
		b64Hash,
	), nil
}

// VerifyPassword checks a password against an encoded argon2id hash.
func (s *AuthService) VerifyPassword(hashedPassword, password string) (bool, error) {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 6 {
		return false, errors.New("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, errors.New("invalid hash type")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return false, errors.New("incompatible argon2 version")
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("invalid parameters: %w", err)
	}

	decodedSalt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("error decoding salt: %w", err)
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("error decoding hash: %w", err)
	}

	computedHash := argon2.IDKey(
		[]byte(password),
		decodedSalt,
		iterations,
		memory,
		parallelism,
		uint32(len(decodedHash)),
	)

	return subtle.ConstantTimeCompare(decodedHash, computedHash) == 1, nil
}
