// Package identity implements the linking handshake between a local user and
// a user on a peer component, plus the per-peer alias personas.
package identity

import (
	"errors"
	"log/slog"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

var (
	ErrFederatedUserInFederatedIdentity = errors.New("federated user is already linked to another local user")
	ErrNotAFederatedUser                = errors.New("user is not a federated user")
)

// CreateFederatedIdentity links a local user to a shadow user. The shadow
// user may hold at most one link; a revoked link to the same local user is
// re-activated so that a fresh handshake can restore it.
func CreateFederatedIdentity(db *gorm.DB, userId, localFedId int) (schema.FederatedIdentity, error) {
	var identity schema.FederatedIdentity
	err := db.Transaction(func(txn *gorm.DB) error {
		fedUser, err := schema.GetUser(localFedId, txn)
		if err != nil {
			return err
		}
		if fedUser.IsLocal() {
			return ErrNotAFederatedUser
		}
		if _, err := schema.GetUser(userId, txn); err != nil {
			return err
		}

		var existing schema.FederatedIdentity
		result := txn.Limit(1).Find(&existing, "local_fed_id = ?", localFedId)
		if result.Error != nil {
			slog.Error("sql error checking federated identity", "local_fed_id", localFedId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected > 0 {
			if existing.Active || existing.UserId != userId {
				return ErrFederatedUserInFederatedIdentity
			}
			if err := txn.Model(&existing).Update("active", true).Error; err != nil {
				slog.Error("sql error re-activating federated identity", "id", existing.Id, "error", err)
				return schema.ErrDbAccessFailed
			}
			existing.Active = true
			identity = existing
			return nil
		}

		identity = schema.FederatedIdentity{UserId: userId, LocalFedId: localFedId, Active: true}
		if err := txn.Create(&identity).Error; err != nil {
			slog.Error("sql error creating federated identity", "error", err)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
	return identity, err
}

func getIdentity(db *gorm.DB, userId, localFedId int) (schema.FederatedIdentity, error) {
	var identity schema.FederatedIdentity
	result := db.Limit(1).Find(&identity, "user_id = ? AND local_fed_id = ?", userId, localFedId)
	if result.Error != nil {
		slog.Error("sql error getting federated identity", "user_id", userId, "error", result.Error)
		return identity, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return identity, schema.ErrFederatedIdentityNotFound
	}
	return identity, nil
}

// RevokeFederatedIdentity marks a link inactive but keeps the mapping so it
// can be re-enabled later.
func RevokeFederatedIdentity(db *gorm.DB, userId, localFedId int) error {
	identity, err := getIdentity(db, userId, localFedId)
	if err != nil {
		return err
	}
	if !identity.Active {
		return nil
	}
	result := db.Model(&identity).Update("active", false)
	if result.Error != nil {
		slog.Error("sql error revoking federated identity", "id", identity.Id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// EnableFederatedIdentity re-activates a previously revoked link.
func EnableFederatedIdentity(db *gorm.DB, userId, localFedId int) error {
	identity, err := getIdentity(db, userId, localFedId)
	if err != nil {
		return err
	}
	if identity.Active {
		return nil
	}
	result := db.Model(&identity).Update("active", true)
	if result.Error != nil {
		slog.Error("sql error enabling federated identity", "id", identity.Id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// DeleteFederatedIdentity severs a link permanently.
func DeleteFederatedIdentity(db *gorm.DB, userId, localFedId int) error {
	identity, err := getIdentity(db, userId, localFedId)
	if err != nil {
		return err
	}
	result := db.Delete(&identity)
	if result.Error != nil {
		slog.Error("sql error deleting federated identity", "id", identity.Id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// GetFederatedIdentities lists a user's links, optionally only active ones.
func GetFederatedIdentities(db *gorm.DB, userId int, activeOnly bool) ([]schema.FederatedIdentity, error) {
	query := db.Preload("FedUser").Where("user_id = ?", userId)
	if activeOnly {
		query = query.Where("active")
	}
	var identities []schema.FederatedIdentity
	result := query.Find(&identities)
	if result.Error != nil {
		slog.Error("sql error listing federated identities", "user_id", userId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return identities, nil
}
