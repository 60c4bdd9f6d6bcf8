package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// TokenTTL bounds how long a linking handshake may take. Both the linking
// token and the validation token expire after it.
const TokenTTL = 5 * time.Minute

// Token purposes. Scoping the signing secret per purpose ensures a token
// issued for one step of the handshake cannot be replayed as the other.
const (
	purposeLinking    = "federated-identities"
	purposeValidation = "identity-token-validation"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const (
	userIdClaim  = "user_id"
	stateClaim   = "state"
	fedUserClaim = "fed_user"
	tokenClaim   = "token"
)

// TokenManager signs and verifies the handshake tokens for one purpose.
type TokenManager struct {
	auth *jwtauth.JWTAuth
}

func NewTokenManager(secret []byte, purpose string) *TokenManager {
	return &TokenManager{auth: jwtauth.New("HS256", slices.Concat(secret, []byte(purpose)), nil)}
}

func (m *TokenManager) createToken(claims map[string]interface{}) (string, error) {
	claims["exp"] = time.Now().Add(TokenTTL)
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return token, nil
}

func (m *TokenManager) verify(tokenString string) (map[string]interface{}, error) {
	token, err := jwtauth.VerifyToken(m.auth, tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func stringClaim(claims map[string]interface{}, key string) (string, error) {
	value, ok := claims[key].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return value, nil
}

func intClaim(claims map[string]interface{}, key string) (int, error) {
	value, err := stringClaim(claims, key)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// CreateLinkToken issues the first handshake token, binding the local user id
// to the session nonce.
func (m *TokenManager) CreateLinkToken(userId int, nonce string) (string, error) {
	return m.createToken(map[string]interface{}{
		userIdClaim: strconv.Itoa(userId),
		stateClaim:  nonce,
	})
}

func (m *TokenManager) VerifyLinkToken(tokenString string) (userId int, nonce string, err error) {
	claims, err := m.verify(tokenString)
	if err != nil {
		return 0, "", err
	}
	if userId, err = intClaim(claims, userIdClaim); err != nil {
		return 0, "", err
	}
	if nonce, err = stringClaim(claims, stateClaim); err != nil {
		return 0, "", err
	}
	return userId, nonce, nil
}

// CreateValidationToken issues the second handshake token, binding this
// deployment's user id to the opaque token received from the initiating peer.
func (m *TokenManager) CreateValidationToken(fedUserId int, receivedToken string) (string, error) {
	return m.createToken(map[string]interface{}{
		fedUserClaim: strconv.Itoa(fedUserId),
		tokenClaim:   receivedToken,
	})
}

func (m *TokenManager) VerifyValidationToken(tokenString string) (fedUserId int, innerToken string, err error) {
	claims, err := m.verify(tokenString)
	if err != nil {
		return 0, "", err
	}
	if fedUserId, err = intClaim(claims, fedUserClaim); err != nil {
		return 0, "", err
	}
	if innerToken, err = stringClaim(claims, tokenClaim); err != nil {
		return 0, "", err
	}
	return fedUserId, innerToken, nil
}
