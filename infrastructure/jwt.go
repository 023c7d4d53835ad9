package infrastructure

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hr-evaluator/domain"
)

// JWTResolver resolves HS256 bearer tokens into callers. Tokens carry the
// person id in "sub" and the role in "role".
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) ResolveCaller(credential string) (domain.Caller, error) {
	if credential == "" {
		return domain.Caller{}, domain.Unauthenticated("missing bearer token")
	}
	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.Caller{}, unauthenticated(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Caller{}, domain.Unauthenticated("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Caller{}, domain.Unauthenticated("token has no subject")
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return domain.Caller{}, domain.Unauthenticated("token subject is not a person id")
	}
	roleClaim, _ := claims["role"].(string)
	role, err := domain.ParseRole(roleClaim)
	if err != nil {
		return domain.Caller{}, domain.Unauthenticated("token role is invalid")
	}
	return domain.Caller{ID: uint(id), Role: role}, nil
}

// IssueToken signs a token for the caller. Used by tooling and tests.
func (r *JWTResolver) IssueToken(caller domain.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(caller.ID), 10),
		"role": string(caller.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func unauthenticated(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return domain.Unauthenticated("token expired")
	}
	return domain.Unauthenticated("invalid token")
}
