package identity

import (
	"log/slog"
	"time"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

// AliasSettings is the persona a user wants to present to one component.
// Each field either carries an alias value or falls back to the real profile
// value when the corresponding UseReal flag is set.
type AliasSettings struct {
	Name        *string
	Email       *string
	Orcid       *string
	Affiliation *string
	Role        *string

	UseRealName        bool
	UseRealEmail       bool
	UseRealOrcid       bool
	UseRealAffiliation bool
	UseRealRole        bool
}

// SetUserAlias creates or replaces the alias a user presents to a component.
func SetUserAlias(db *gorm.DB, userId, componentId int, settings AliasSettings) (schema.UserAlias, error) {
	alias := schema.UserAlias{
		UserId:      userId,
		ComponentId: componentId,

		Name:        settings.Name,
		Email:       settings.Email,
		Orcid:       settings.Orcid,
		Affiliation: settings.Affiliation,
		Role:        settings.Role,

		UseRealName:        settings.UseRealName,
		UseRealEmail:       settings.UseRealEmail,
		UseRealOrcid:       settings.UseRealOrcid,
		UseRealAffiliation: settings.UseRealAffiliation,
		UseRealRole:        settings.UseRealRole,

		LastModified: time.Now().UTC(),
	}
	err := db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetUser(userId, txn); err != nil {
			return err
		}
		if _, err := schema.GetComponent(componentId, txn); err != nil {
			return err
		}
		result := txn.Where("user_id = ? AND component_id = ?", userId, componentId).Delete(&schema.UserAlias{})
		if result.Error != nil {
			slog.Error("sql error replacing user alias", "user_id", userId, "component_id", componentId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if err := txn.Create(&alias).Error; err != nil {
			slog.Error("sql error creating user alias", "user_id", userId, "component_id", componentId, "error", err)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
	if err != nil {
		return schema.UserAlias{}, err
	}
	return alias, nil
}

// GetUserAlias returns the alias a user presents to a component.
func GetUserAlias(db *gorm.DB, userId, componentId int) (schema.UserAlias, error) {
	var alias schema.UserAlias
	result := db.Limit(1).Find(&alias, "user_id = ? AND component_id = ?", userId, componentId)
	if result.Error != nil {
		slog.Error("sql error getting user alias", "user_id", userId, "error", result.Error)
		return alias, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return alias, schema.ErrUserAliasNotFound
	}
	return alias, nil
}

// GetUserAliases lists every alias a user has configured.
func GetUserAliases(db *gorm.DB, userId int) ([]schema.UserAlias, error) {
	var aliases []schema.UserAlias
	result := db.Find(&aliases, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error listing user aliases", "user_id", userId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return aliases, nil
}

// DeleteUserAlias removes the alias for one component. The next export to
// that component then carries only the user's identity pair.
func DeleteUserAlias(db *gorm.DB, userId, componentId int) error {
	result := db.Where("user_id = ? AND component_id = ?", userId, componentId).Delete(&schema.UserAlias{})
	if result.Error != nil {
		slog.Error("sql error deleting user alias", "user_id", userId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return schema.ErrUserAliasNotFound
	}
	return nil
}
