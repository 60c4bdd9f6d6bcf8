package merge

import (
	"errors"

	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/fedlogs"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParsedUser carries the persona a peer chose to present. Every profile field
// is optional; a user exported without an alias carries only its identity.
type ParsedUser struct {
	FedId         int
	ComponentUUID uuid.UUID

	Name        *string
	Email       *string
	Orcid       *string
	Affiliation *string
	Role        *string
}

func (i *Importer) ParseUser(data map[string]interface{}) (*ParsedUser, error) {
	fedId, err := wire.Id(data["user_id"], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	if err := i.guardOwnUUID(componentUUID, "user", fedId); err != nil {
		return nil, err
	}

	parsed := &ParsedUser{FedId: fedId, ComponentUUID: componentUUID}
	if parsed.Name, err = wire.OptionalStr(data["name"]); err != nil {
		return nil, err
	}
	if parsed.Email, err = wire.OptionalStr(data["email"]); err != nil {
		return nil, err
	}
	if parsed.Orcid, err = wire.OptionalStr(data["orcid"]); err != nil {
		return nil, err
	}
	if parsed.Affiliation, err = wire.OptionalStr(data["affiliation"]); err != nil {
		return nil, err
	}
	if parsed.Role, err = wire.OptionalStr(data["role"]); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (i *Importer) ImportUser(parsed *ParsedUser, source schema.Component) (schema.User, error) {
	var user schema.User
	err := i.db.Transaction(func(txn *gorm.DB) error {
		componentId, err := components.GetOrCreateComponentId(txn, parsed.ComponentUUID)
		if err != nil {
			return err
		}

		user, err = schema.GetFedUser(parsed.FedId, componentId, txn)
		if errors.Is(err, schema.ErrUserNotFound) {
			user = schema.User{
				Name:        parsed.Name,
				Email:       parsed.Email,
				Orcid:       parsed.Orcid,
				Affiliation: parsed.Affiliation,
				Role:        parsed.Role,
				FedId:       &parsed.FedId,
				ComponentId: &componentId,
			}
			if err := txn.Create(&user).Error; err != nil {
				return err
			}
			return fedlogs.Record(txn, fedlogs.EventImport, fedlogs.EntityUser, user.Id, source.Id)
		} else if err != nil {
			return err
		}

		changed := !eqStrPtr(user.Name, parsed.Name) ||
			!eqStrPtr(user.Email, parsed.Email) ||
			!eqStrPtr(user.Orcid, parsed.Orcid) ||
			!eqStrPtr(user.Affiliation, parsed.Affiliation) ||
			!eqStrPtr(user.Role, parsed.Role)
		if !changed {
			return nil
		}
		user.Name = parsed.Name
		user.Email = parsed.Email
		user.Orcid = parsed.Orcid
		user.Affiliation = parsed.Affiliation
		user.Role = parsed.Role
		if err := txn.Save(&user).Error; err != nil {
			return err
		}
		return fedlogs.Record(txn, fedlogs.EventUpdate, fedlogs.EntityUser, user.Id, source.Id)
	})
	return user, err
}

func (i *Importer) ParseImportUser(data map[string]interface{}, source schema.Component) (schema.User, error) {
	parsed, err := i.ParseUser(data)
	if err != nil {
		return schema.User{}, err
	}
	return i.ImportUser(parsed, source)
}
