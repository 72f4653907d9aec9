package authUtils

import (
	"errors"
	"fmt"
	"time"

	"civic-issues/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/spf13/cast"
)

const DefaultTokenTTL = 72 * time.Hour

// GenerateToken signs an HS256 token carrying the actor's identity and role claims.
func GenerateToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret is not set")
	}
	if actor.ID == "" {
		return "", fmt.Errorf("%w: actor id is empty", models.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": actor.ID,
		"name":    actor.DisplayName,
		"email":   actor.Email,
		"picture": actor.AvatarURL,
		"roles":   actor.Roles,
		"exp":     time.Now().Add(ttl).Unix(),
	})

	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and rebuilds the actor from its claims.
func ParseToken(secret, tokenString string) (models.Actor, error) {
	if secret == "" {
		return models.Actor{}, fmt.Errorf("JWT secret is not set")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, fmt.Errorf("%w: invalid token: %v", models.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, fmt.Errorf("%w: invalid token claims", models.ErrUnauthorized)
	}

	userID := cast.ToString(claims["user_id"])
	if userID == "" {
		return models.Actor{}, errors.Join(models.ErrUnauthorized, errors.New("token has no user_id claim"))
	}

	return models.Actor{
		ID:          userID,
		DisplayName: cast.ToString(claims["name"]),
		Email:       cast.ToString(claims["email"]),
		AvatarURL:   cast.ToString(claims["picture"]),
		Roles:       cast.ToStringSlice(claims["roles"]),
	}, nil
}
