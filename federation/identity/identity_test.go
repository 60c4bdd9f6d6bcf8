package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func createLocalUser(t *testing.T, db *gorm.DB, name string) schema.User {
	user := schema.User{Name: &name}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	return user
}

func createShadowUser(t *testing.T, db *gorm.DB, fedId, componentId int) schema.User {
	user := schema.User{FedId: &fedId, ComponentId: &componentId}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	return user
}

func createComponent(t *testing.T, db *gorm.DB, address *string) schema.Component {
	component := schema.Component{UUID: uuid.New(), Address: address}
	if err := db.Create(&component).Error; err != nil {
		t.Fatal(err)
	}
	return component
}

func TestLinkTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager([]byte("test-secret"), purposeLinking)

	token, err := manager.CreateLinkToken(42, "nonce-abc")
	if err != nil {
		t.Fatal(err)
	}

	userId, nonce, err := manager.VerifyLinkToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if userId != 42 || nonce != "nonce-abc" {
		t.Fatalf("bad claims: %d %q", userId, nonce)
	}

	if _, _, err := manager.VerifyLinkToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token should be rejected, got %v", err)
	}
}

func TestTokenPurposeScoping(t *testing.T) {
	linking := NewTokenManager([]byte("test-secret"), purposeLinking)
	validation := NewTokenManager([]byte("test-secret"), purposeValidation)

	token, err := linking.CreateLinkToken(42, "nonce-abc")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := validation.VerifyValidationToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token must not verify under a different purpose, got %v", err)
	}
}

func TestValidationTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager([]byte("test-secret"), purposeValidation)

	token, err := manager.CreateValidationToken(7, "inner-token")
	if err != nil {
		t.Fatal(err)
	}
	fedUserId, innerToken, err := manager.VerifyValidationToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if fedUserId != 7 || innerToken != "inner-token" {
		t.Fatalf("bad claims: %d %q", fedUserId, innerToken)
	}
}

func encodeStaleToken(t *testing.T, manager *TokenManager, claims map[string]interface{}) string {
	claims["exp"] = time.Now().Add(-time.Minute)
	_, token, err := manager.auth.Encode(claims)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestExpiredTokensRejected(t *testing.T) {
	linking := NewTokenManager([]byte("test-secret"), purposeLinking)
	validation := NewTokenManager([]byte("test-secret"), purposeValidation)

	stale := encodeStaleToken(t, linking, map[string]interface{}{
		userIdClaim: "42",
		stateClaim:  "nonce-abc",
	})
	if _, _, err := linking.VerifyLinkToken(stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired link token must be rejected, got %v", err)
	}

	stale = encodeStaleToken(t, validation, map[string]interface{}{
		fedUserClaim: "7",
		tokenClaim:   "inner-token",
	})
	if _, _, err := validation.VerifyValidationToken(stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired validation token must be rejected, got %v", err)
	}
}

func TestCreateFederatedIdentity(t *testing.T) {
	db := setupDb(t)
	component := createComponent(t, db, nil)
	user := createLocalUser(t, db, "Jane Doe")
	shadow := createShadowUser(t, db, 7, component.Id)

	identity, err := CreateFederatedIdentity(db, user.Id, shadow.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !identity.Active || identity.UserId != user.Id || identity.LocalFedId != shadow.Id {
		t.Fatalf("bad identity %+v", identity)
	}

	other := createLocalUser(t, db, "John Doe")
	if _, err := CreateFederatedIdentity(db, other.Id, shadow.Id); !errors.Is(err, ErrFederatedUserInFederatedIdentity) {
		t.Fatalf("a shadow user can be linked at most once, got %v", err)
	}

	if _, err := CreateFederatedIdentity(db, user.Id, other.Id); !errors.Is(err, ErrNotAFederatedUser) {
		t.Fatalf("linking to a local user should be rejected, got %v", err)
	}
}

func TestRelinkAfterRevoke(t *testing.T) {
	db := setupDb(t)
	component := createComponent(t, db, nil)
	user := createLocalUser(t, db, "Jane Doe")
	shadow := createShadowUser(t, db, 7, component.Id)

	created, err := CreateFederatedIdentity(db, user.Id, shadow.Id)
	if err != nil {
		t.Fatal(err)
	}

	// An active link is never replaced, not even for the same pair.
	if _, err := CreateFederatedIdentity(db, user.Id, shadow.Id); !errors.Is(err, ErrFederatedUserInFederatedIdentity) {
		t.Fatalf("active link must not be recreated, got %v", err)
	}

	if err := RevokeFederatedIdentity(db, user.Id, shadow.Id); err != nil {
		t.Fatal(err)
	}

	// A fresh handshake for the same pair re-activates the revoked link.
	relinked, err := CreateFederatedIdentity(db, user.Id, shadow.Id)
	if err != nil {
		t.Fatalf("re-linking the revoked pair failed: %v", err)
	}
	if !relinked.Active {
		t.Fatal("re-linked identity should be active")
	}
	if relinked.Id != created.Id {
		t.Fatalf("re-linking must reuse the existing link, got id %d want %d", relinked.Id, created.Id)
	}
	all, err := GetFederatedIdentities(db, user.Id, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one link, got %d", len(all))
	}

	// A revoked link still blocks linking the shadow user to someone else.
	if err := RevokeFederatedIdentity(db, user.Id, shadow.Id); err != nil {
		t.Fatal(err)
	}
	other := createLocalUser(t, db, "John Doe")
	if _, err := CreateFederatedIdentity(db, other.Id, shadow.Id); !errors.Is(err, ErrFederatedUserInFederatedIdentity) {
		t.Fatalf("revoked link to a different user must not be taken over, got %v", err)
	}
}

func TestRevokeEnableDelete(t *testing.T) {
	db := setupDb(t)
	component := createComponent(t, db, nil)
	user := createLocalUser(t, db, "Jane Doe")
	shadow := createShadowUser(t, db, 7, component.Id)

	if _, err := CreateFederatedIdentity(db, user.Id, shadow.Id); err != nil {
		t.Fatal(err)
	}

	if err := RevokeFederatedIdentity(db, user.Id, shadow.Id); err != nil {
		t.Fatal(err)
	}
	active, err := GetFederatedIdentities(db, user.Id, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatal("revoked identity should not be listed as active")
	}
	all, err := GetFederatedIdentities(db, user.Id, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatal("revoked identity must be kept")
	}

	if err := EnableFederatedIdentity(db, user.Id, shadow.Id); err != nil {
		t.Fatal(err)
	}
	active, err = GetFederatedIdentities(db, user.Id, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatal("re-enabled identity should be active again")
	}
	if active[0].FedUser == nil || active[0].FedUser.Id != shadow.Id {
		t.Fatalf("fed user should be preloaded, got %+v", active[0])
	}

	if err := DeleteFederatedIdentity(db, user.Id, shadow.Id); err != nil {
		t.Fatal(err)
	}
	all, err = GetFederatedIdentities(db, user.Id, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatal("deleted identity must be gone")
	}

	if err := RevokeFederatedIdentity(db, user.Id, shadow.Id); !errors.Is(err, schema.ErrFederatedIdentityNotFound) {
		t.Fatalf("expected ErrFederatedIdentityNotFound, got %v", err)
	}
}

func TestStartLink(t *testing.T) {
	db := setupDb(t)
	linker := NewLinker(db, uuid.New(), []byte("test-secret"))

	component := createComponent(t, db, strPtr("https://peer-a.example.org/"))
	user := createLocalUser(t, db, "Jane Doe")

	redirect, nonce, err := linker.StartLink(component, user.Id)
	if err != nil {
		t.Fatal(err)
	}
	if nonce == "" {
		t.Fatal("nonce must not be empty")
	}
	if !strings.HasPrefix(redirect, "https://peer-a.example.org/other-databases/link-identity?") {
		t.Fatalf("bad redirect %q", redirect)
	}

	parsed, err := url.Parse(redirect)
	if err != nil {
		t.Fatal(err)
	}
	query := parsed.Query()
	if query.Get("state") != nonce || query.Get("source_db") != linker.ownUUID.String() {
		t.Fatalf("bad redirect query %v", query)
	}

	userId, tokenNonce, err := linker.linking.VerifyLinkToken(query.Get("token"))
	if err != nil {
		t.Fatal(err)
	}
	if userId != user.Id || tokenNonce != nonce {
		t.Fatalf("bad link token claims: %d %q", userId, tokenNonce)
	}

	noAddress := createComponent(t, db, nil)
	if _, _, err := linker.StartLink(noAddress, user.Id); !errors.Is(err, ErrMissingComponentAddress) {
		t.Fatalf("expected ErrMissingComponentAddress, got %v", err)
	}
}

// TestCompleteLink drives the full handshake: this deployment starts the
// link, the peer confirms it and serves the validation endpoint, and the
// handshake completes with a bidirectional identity.
func TestCompleteLink(t *testing.T) {
	db := setupDb(t)
	linker := NewLinker(db, uuid.New(), []byte("test-secret"))

	peerDb := setupDb(t)
	peerLinker := NewLinker(peerDb, uuid.New(), []byte("peer-secret"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := peerLinker.ValidateToken(r.URL.Query().Get("token"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(result)
	}))
	defer server.Close()

	component := createComponent(t, db, &server.URL)
	user := createLocalUser(t, db, "Jane Doe")

	redirect, nonce, err := linker.StartLink(component, user.Id)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := url.Parse(redirect)
	if err != nil {
		t.Fatal(err)
	}
	linkToken := parsed.Query().Get("token")

	// The peer user with id 7 confirms the link.
	validationToken, err := peerLinker.ConfirmLink(7, linkToken)
	if err != nil {
		t.Fatal(err)
	}

	identity, err := linker.CompleteLink(context.Background(), component, validationToken, nonce)
	if err != nil {
		t.Fatal(err)
	}
	if identity.UserId != user.Id || !identity.Active {
		t.Fatalf("bad identity %+v", identity)
	}

	// A shadow user for the peer identity was created on the fly.
	shadow, err := schema.GetFedUser(7, component.Id, db)
	if err != nil {
		t.Fatal(err)
	}
	if identity.LocalFedId != shadow.Id {
		t.Fatalf("identity not linked to the shadow user: %+v", identity)
	}

	// Completing again must fail: the shadow user is already linked.
	validationToken2, err := peerLinker.ConfirmLink(7, linkToken)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := linker.CompleteLink(context.Background(), component, validationToken2, nonce); !errors.Is(err, ErrFederatedUserInFederatedIdentity) {
		t.Fatalf("expected ErrFederatedUserInFederatedIdentity, got %v", err)
	}
}

func TestCompleteLinkNonceMismatch(t *testing.T) {
	db := setupDb(t)
	linker := NewLinker(db, uuid.New(), []byte("test-secret"))

	peerDb := setupDb(t)
	peerLinker := NewLinker(peerDb, uuid.New(), []byte("peer-secret"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := peerLinker.ValidateToken(r.URL.Query().Get("token"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(result)
	}))
	defer server.Close()

	component := createComponent(t, db, &server.URL)
	user := createLocalUser(t, db, "Jane Doe")

	redirect, _, err := linker.StartLink(component, user.Id)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := url.Parse(redirect)
	if err != nil {
		t.Fatal(err)
	}
	validationToken, err := peerLinker.ConfirmLink(7, parsed.Query().Get("token"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := linker.CompleteLink(context.Background(), component, validationToken, "wrong-nonce"); !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected ErrNonceMismatch, got %v", err)
	}
	if _, err := linker.CompleteLink(context.Background(), component, validationToken, ""); !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("an empty session nonce must never match, got %v", err)
	}
}

func TestUserAliases(t *testing.T) {
	db := setupDb(t)
	component := createComponent(t, db, nil)
	user := createLocalUser(t, db, "Jane Doe")

	alias, err := SetUserAlias(db, user.Id, component.Id, AliasSettings{
		Name:         strPtr("J. D."),
		UseRealEmail: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if alias.Name == nil || *alias.Name != "J. D." || !alias.UseRealEmail {
		t.Fatalf("bad alias %+v", alias)
	}
	if alias.LastModified.IsZero() {
		t.Fatal("last modified should be set")
	}

	// Setting again replaces the alias.
	alias, err = SetUserAlias(db, user.Id, component.Id, AliasSettings{Name: strPtr("Dr. D.")})
	if err != nil {
		t.Fatal(err)
	}
	if *alias.Name != "Dr. D." || alias.UseRealEmail {
		t.Fatalf("alias not replaced: %+v", alias)
	}

	got, err := GetUserAlias(db, user.Id, component.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name == nil || *got.Name != "Dr. D." {
		t.Fatalf("bad stored alias %+v", got)
	}

	aliases, err := GetUserAliases(db, user.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(aliases) != 1 {
		t.Fatalf("expected 1 alias, got %d", len(aliases))
	}

	if err := DeleteUserAlias(db, user.Id, component.Id); err != nil {
		t.Fatal(err)
	}
	if _, err := GetUserAlias(db, user.Id, component.Id); !errors.Is(err, schema.ErrUserAliasNotFound) {
		t.Fatalf("expected ErrUserAliasNotFound, got %v", err)
	}
	if err := DeleteUserAlias(db, user.Id, component.Id); !errors.Is(err, schema.ErrUserAliasNotFound) {
		t.Fatalf("double delete should fail, got %v", err)
	}

	if _, err := SetUserAlias(db, 9999, component.Id, AliasSettings{}); !errors.Is(err, schema.ErrUserNotFound) {
		t.Fatalf("unknown user should fail, got %v", err)
	}
	if _, err := SetUserAlias(db, user.Id, 9999, AliasSettings{}); !errors.Is(err, schema.ErrComponentNotFound) {
		t.Fatalf("unknown component should fail, got %v", err)
	}
}
