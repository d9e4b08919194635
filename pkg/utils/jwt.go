package utils

import (
	"fmt"
	"time"

	"github.com/ballotbox/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSecret          = []byte("change-me-in-production")
	accessTokenExpiry  = 15 * time.Minute
	refreshTokenExpiry = 7 * 24 * time.Hour
)

// TokenPair is the credential set issued on successful authentication: a
// short-lived access token and a longer-lived refresh token.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type Claims struct {
	UserID         uuid.UUID       `json:"userID"`
	Email          string          `json:"email"`
	Role           models.UserRole `json:"role"`
	OrganizationID *uuid.UUID      `json:"organizationID,omitempty"`
	TokenType      string          `json:"tokenType"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, accessExpiry, refreshExpiry time.Duration) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if accessExpiry > 0 {
		accessTokenExpiry = accessExpiry
	}
	if refreshExpiry > 0 {
		refreshTokenExpiry = refreshExpiry
	}
}

func GenerateTokenPair(user *models.User) (*TokenPair, error) {
	now := time.Now()
	accessExpiresAt := now.Add(accessTokenExpiry)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:         user.ID,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		TokenType:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	})
	accessToken, err := access.SignedString(jwtSecret)
	if err != nil {
		return nil, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(refreshTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
			Subject:   user.ID.String(),
		},
	})
	refreshToken, err := refresh.SignedString(jwtSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExpiresAt,
	}, nil
}

func ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, fmt.Errorf("invalid token type")
	}
	return claims, nil
}

// ValidateRefreshToken returns the account identity bound to a refresh
// credential, or an error on tamper or expiry.
func ValidateRefreshToken(tokenString string) (uuid.UUID, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.TokenType != "refresh" {
		return uuid.Nil, fmt.Errorf("invalid token type")
	}
	return claims.UserID, nil
}

func parseClaims(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
