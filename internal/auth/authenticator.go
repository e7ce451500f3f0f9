package auth

import (
	"context"
	"errors"
	"log"

	"studybuddy-chat/internal/models"
)

// ErrUnauthenticated is the only error surfaced to clients; it does not say
// whether the token or the account was the problem.
var ErrUnauthenticated = errors.New("authentication error")

type tokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type userFinder interface {
	FindUserByID(ctx context.Context, userID string) (models.User, error)
}

// Authenticator resolves handshake credentials to a user record.
type Authenticator struct {
	tokens tokenValidator
	users  userFinder
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens tokenValidator, users userFinder) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate validates the bearer token found in the auth field or the
// Authorization header and loads the user it names.
func (a *Authenticator) Authenticate(ctx context.Context, authField, header string) (models.User, error) {
	token := ExtractToken(authField, header)
	if token == "" {
		return models.User{}, ErrUnauthenticated
	}

	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		log.Printf("auth: token rejected: %v", err)
		return models.User{}, ErrUnauthenticated
	}

	user, err := a.users.FindUserByID(ctx, claims.SubjectID())
	if err != nil {
		log.Printf("auth: user lookup failed user_id=%s: %v", claims.SubjectID(), err)
		return models.User{}, ErrUnauthenticated
	}
	return user, nil
}
