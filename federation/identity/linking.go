package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNonceMismatch           = errors.New("link state does not match session state")
	ErrMissingComponentAddress = errors.New("component has no address configured")
	ErrPeerValidationFailed    = errors.New("peer rejected the identity token")
)

// Linker drives the identity linking handshake. It signs the outbound linking
// token, validates tokens presented by peers and completes confirmed links.
type Linker struct {
	db      *gorm.DB
	ownUUID uuid.UUID

	linking    *TokenManager
	validation *TokenManager
}

func NewLinker(db *gorm.DB, ownUUID uuid.UUID, secret []byte) *Linker {
	return &Linker{
		db:         db,
		ownUUID:    ownUUID,
		linking:    NewTokenManager(secret, purposeLinking),
		validation: NewTokenManager(secret, purposeValidation),
	}
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// StartLink issues the linking token and builds the redirect to the peer's
// link-identity page. The returned nonce must be stored in the initiating
// user's session and checked again in CompleteLink.
func (l *Linker) StartLink(component schema.Component, userId int) (redirectURL, nonce string, err error) {
	if component.Address == nil {
		return "", "", ErrMissingComponentAddress
	}
	nonce, err = newNonce()
	if err != nil {
		return "", "", err
	}
	token, err := l.linking.CreateLinkToken(userId, nonce)
	if err != nil {
		return "", "", err
	}
	query := url.Values{}
	query.Set("source_db", l.ownUUID.String())
	query.Set("token", token)
	query.Set("state", nonce)
	redirectURL = strings.TrimRight(*component.Address, "/") + "/other-databases/link-identity?" + query.Encode()
	return redirectURL, nonce, nil
}

// ConfirmLink runs on the confirming side: the local user accepts the link
// and receives the validation token to hand back to the initiating peer.
func (l *Linker) ConfirmLink(userId int, receivedToken string) (string, error) {
	return l.validation.CreateValidationToken(userId, receivedToken)
}

// ValidationResult is the decoded content of a validation token, as served by
// the identity validation endpoint.
type ValidationResult struct {
	FedUser int    `json:"fed_user"`
	Token   string `json:"token"`
}

// ValidateToken decodes a validation token this deployment issued.
func (l *Linker) ValidateToken(tokenString string) (ValidationResult, error) {
	fedUserId, innerToken, err := l.validation.VerifyValidationToken(tokenString)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{FedUser: fedUserId, Token: innerToken}, nil
}

// fetchValidation asks the issuing peer to decode the validation token. The
// initiating side cannot verify the peer's signature itself, so it delegates
// verification to the peer's validation endpoint.
func fetchValidation(ctx context.Context, component schema.Component, validationToken string) (ValidationResult, error) {
	if component.Address == nil {
		return ValidationResult{}, ErrMissingComponentAddress
	}
	endpoint := strings.TrimRight(*component.Address, "/") + "/federation/v1/users/identity/validate?" +
		url.Values{"token": []string{validationToken}}.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ValidationResult{}, err
	}
	client := &http.Client{Timeout: 60 * time.Second}
	response, err := client.Do(request)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %v", ErrPeerValidationFailed, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return ValidationResult{}, fmt.Errorf("%w: status %d", ErrPeerValidationFailed, response.StatusCode)
	}
	var result ValidationResult
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %v", ErrPeerValidationFailed, err)
	}
	return result, nil
}

// CompleteLink finishes the handshake on the initiating side: the peer
// decodes the validation token, the embedded linking token is verified
// against this deployment's own signature and expiry, the nonce is checked
// against the session state and only then is the bidirectional link created.
func (l *Linker) CompleteLink(ctx context.Context, component schema.Component, validationToken, expectedNonce string) (schema.FederatedIdentity, error) {
	validated, err := fetchValidation(ctx, component, validationToken)
	if err != nil {
		return schema.FederatedIdentity{}, err
	}
	userId, nonce, err := l.linking.VerifyLinkToken(validated.Token)
	if err != nil {
		return schema.FederatedIdentity{}, err
	}
	if expectedNonce == "" || nonce != expectedNonce {
		return schema.FederatedIdentity{}, ErrNonceMismatch
	}

	var identity schema.FederatedIdentity
	err = l.db.Transaction(func(txn *gorm.DB) error {
		fedUser, err := schema.GetFedUser(validated.FedUser, component.Id, txn)
		if errors.Is(err, schema.ErrUserNotFound) {
			// the peer user may never have been synced yet
			fedUser = schema.User{FedId: &validated.FedUser, ComponentId: &component.Id}
			if err := txn.Create(&fedUser).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		identity, err = CreateFederatedIdentity(txn, userId, fedUser.Id)
		return err
	})
	return identity, err
}
