// Package auth turns bearer tokens into caller identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/golang-jwt/jwt"
)

// Identity is the externally verified caller: the identity provider's
// subject and the phone number it vouches for.
type Identity struct {
	UID   string
	Phone string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier accepts HS256 tokens carrying sub and phone_number claims.
// Without a secret it rejects every token and issues none.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, apperr.E(apperr.InvalidCredential, "missing token")
	}
	if len(v.secret) == 0 {
		return Identity{}, apperr.E(apperr.InvalidCredential, "token verification is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	var ve *jwt.ValidationError
	if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
		return Identity{}, apperr.Wrap(apperr.ExpiredCredential, err, "token expired")
	}
	if err != nil || !token.Valid {
		return Identity{}, apperr.Wrap(apperr.InvalidCredential, err, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, apperr.E(apperr.InvalidCredential, "invalid claims")
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		return Identity{}, apperr.E(apperr.InvalidCredential, "token has no subject")
	}
	phone, _ := claims["phone_number"].(string)

	return Identity{UID: uid, Phone: phone}, nil
}

// Issue signs a token for id that expires after ttl.
func (v *JWTVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": id.UID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if id.Phone != "" {
		claims["phone_number"] = id.Phone
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
