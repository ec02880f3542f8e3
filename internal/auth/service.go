package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
)

type Config struct {
	BCryptCost  int
	SignupBonus int64
}

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGenerator
	bcryptCost     int
	signupBonus    int64
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, tokenGen TokenGenerator, cfg Config, logger *slog.Logger) *Service {
	cost := cfg.BCryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     cost,
		signupBonus:    cfg.SignupBonus,
		logger:         logger,
	}
}

func NewJWTTokenGenerator(secret string, accessTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		AccessTokenTTL: accessTTL,
		Issuer:         "credit-marketplace",
	}
}

// Register creates the account with the signup grant and logs it in.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*Session, error) {
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password", err)
	}

	u := &userDatamodel.User{
		Email:         dto.Email,
		Name:          dto.Name,
		PasswordHash:  hash,
		CreditBalance: s.signupBonus,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if stderrors.Is(err, errors.ErrEmailTaken) {
			return nil, errors.ErrEmailTaken
		}
		return nil, errors.NewInternalError("failed to create user", err)
	}

	token, err := s.tokenGenerator.GenerateAccessToken(u.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "signup_bonus", s.signupBonus)
	return &Session{UserID: u.ID, Name: u.Name, Token: token}, nil
}

// Authenticate validates credentials and returns a session token.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*Session, error) {
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	u, err := s.repo.GetByEmail(ctx, dto.Email)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, errors.NewInternalError("failed to load user", err)
	}

	if err := VerifyPassword(u.PasswordHash, dto.Password); err != nil {
		return nil, errors.ErrInvalidCredentials
	}

	token, err := s.tokenGenerator.GenerateAccessToken(u.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	return &Session{UserID: u.ID, Name: u.Name, Token: token}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID int64) (string, error) {
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, errors.ErrInvalidToken
	}

	return claims, nil
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
