package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
)

// TokenGenerator issues and checks access tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID int64) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// RepositoryAPI is the account storage used by register and login.
type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
}

// ServiceAPI is what the handler and middleware need.
type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*Session, error)
	Authenticate(ctx context.Context, dto LoginDTO) (*Session, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// Session is the result of a successful register or login.
type Session struct {
	UserID int64
	Name   string
	Token  string
}

type UserSummary struct {
	Name string `json:"name"`
}

type SessionResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    UserSummary `json:"user"`
}

func (s *Session) ToResponse() SessionResponse {
	return SessionResponse{
		Success: true,
		Token:   s.Token,
		User:    UserSummary{Name: s.Name},
	}
}

// Claims carries the user id as the JWT subject.
type Claims struct {
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	Secret         []byte
	AccessTokenTTL time.Duration
	Issuer         string
}
