package components

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

var (
	ErrInvalidToken           = errors.New("invalid token, required length: 64 hex digits")
	ErrTokenExists            = errors.New("this token has already been linked to this component")
	ErrTokenAuth              = errors.New("no component matches the given token")
	ErrNoAuthenticationMethod = errors.New("no valid authentication method configured")
)

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validToken(token string) bool {
	if len(token) != 64 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// AddTokenAuthentication stores a token a peer will use to authenticate to
// this deployment. Only the sha256 hash is persisted.
func AddTokenAuthentication(db *gorm.DB, componentId int, token, description string) error {
	if !validToken(token) {
		return ErrInvalidToken
	}

	auth := schema.ComponentAuthentication{
		ComponentId: componentId,
		LoginHash:   hashToken(token),
		Description: description,
	}

	return db.Transaction(func(txn *gorm.DB) error {
		if err := CheckComponentExists(txn, componentId); err != nil {
			return err
		}
		var existing schema.ComponentAuthentication
		result := txn.Limit(1).Find(&existing, "login_hash = ?", auth.LoginHash)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate token", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			return ErrTokenExists
		}
		if result := txn.Create(&auth); result.Error != nil {
			slog.Error("sql error creating component authentication", "component_id", componentId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
}

// AddOwnTokenAuthentication stores a token this deployment will present when
// pulling updates from the given peer.
func AddOwnTokenAuthentication(db *gorm.DB, componentId int, token, description string) error {
	if !validToken(token) {
		return ErrInvalidToken
	}

	return db.Transaction(func(txn *gorm.DB) error {
		if err := CheckComponentExists(txn, componentId); err != nil {
			return err
		}
		var existing schema.OwnComponentAuthentication
		result := txn.Limit(1).Find(&existing, "component_id = ? AND token = ?", componentId, token)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate own token", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			return ErrTokenExists
		}
		auth := schema.OwnComponentAuthentication{ComponentId: componentId, Token: token, Description: description}
		if result := txn.Create(&auth); result.Error != nil {
			slog.Error("sql error creating own component authentication", "component_id", componentId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
}

// GetComponentByToken resolves a presented bearer token to the peer it was
// issued for.
func GetComponentByToken(db *gorm.DB, token string) (schema.Component, error) {
	var auth schema.ComponentAuthentication
	result := db.First(&auth, "login_hash = ?", hashToken(token))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return schema.Component{}, ErrTokenAuth
		}
		slog.Error("sql error looking up component token", "error", result.Error)
		return schema.Component{}, schema.ErrDbAccessFailed
	}

	return schema.GetComponent(auth.ComponentId, db)
}

// GetOwnToken returns a token usable for authenticating to the given peer.
func GetOwnToken(db *gorm.DB, componentId int) (string, error) {
	var auth schema.OwnComponentAuthentication
	result := db.First(&auth, "component_id = ?", componentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrNoAuthenticationMethod
		}
		slog.Error("sql error looking up own component token", "component_id", componentId, "error", result.Error)
		return "", schema.ErrDbAccessFailed
	}
	return auth.Token, nil
}

// RemoveTokenAuthentication deletes a token a peer uses to authenticate here.
func RemoveTokenAuthentication(db *gorm.DB, authenticationId int) error {
	result := db.Delete(&schema.ComponentAuthentication{}, "id = ?", authenticationId)
	if result.Error != nil {
		slog.Error("sql error deleting component authentication", "id", authenticationId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return errors.New("authentication method has already been deleted")
	}
	return nil
}

// RemoveOwnTokenAuthentication deletes a token used to authenticate to a peer.
func RemoveOwnTokenAuthentication(db *gorm.DB, authenticationId int) error {
	result := db.Delete(&schema.OwnComponentAuthentication{}, "id = ?", authenticationId)
	if result.Error != nil {
		slog.Error("sql error deleting own component authentication", "id", authenticationId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return errors.New("authentication method has already been deleted")
	}
	return nil
}
