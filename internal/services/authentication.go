package services

import (
	"errors"
	"strconv"
	"time"

	"spinwheel/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token claims")

type CustomClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Authentication struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthentication(secret string) (*Authentication, error) {
	if secret == "" {
		return nil, errors.New("empty jwt secret")
	}
	return &Authentication{[]byte(secret), 24 * time.Hour}, nil
}

func (authentication *Authentication) CreateToken(account *models.AccountFromAuth) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Username: account.Username,
		Role:     account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(authentication.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(authentication.secret)
}

func (authentication *Authentication) Validate(token string) (*models.AccountFromAuth, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return authentication.secret, nil
	}
	jwtToken, err := jwt.ParseWithClaims(token, &CustomClaims{}, keyFunc, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := jwtToken.Claims.(*CustomClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = models.ROLE_USER
	}

	return &models.AccountFromAuth{
		ID:       id,
		Username: claims.Username,
		Role:     role,
	}, nil
}
