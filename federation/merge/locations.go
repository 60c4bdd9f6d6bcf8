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

type ParsedLocation struct {
	FedId         int
	ComponentUUID uuid.UUID

	Name        map[string]string
	Description map[string]string

	ParentLocation *Ref
}

func (i *Importer) ParseLocation(data map[string]interface{}) (*ParsedLocation, error) {
	fedId, err := wire.Id(data["location_id"], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	if err := i.guardOwnUUID(componentUUID, "location", fedId); err != nil {
		return nil, err
	}

	parsed := &ParsedLocation{FedId: fedId, ComponentUUID: componentUUID}
	if data["name"] != nil {
		name, err := wire.Translation(data["name"])
		if err != nil {
			return nil, err
		}
		parsed.Name = i.filterTranslation(name)
	}
	if data["description"] != nil {
		description, err := wire.Translation(data["description"])
		if err != nil {
			return nil, err
		}
		parsed.Description = i.filterTranslation(description)
	}
	if parsed.ParentLocation, err = parseRef(data["parent_location"], "location_id"); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (i *Importer) ImportLocation(parsed *ParsedLocation, source schema.Component) (schema.Location, error) {
	var location schema.Location
	err := i.db.Transaction(func(txn *gorm.DB) error {
		componentId, err := components.GetOrCreateComponentId(txn, parsed.ComponentUUID)
		if err != nil {
			return err
		}
		parentLocationId, err := i.getOrCreateLocationId(txn, parsed.ParentLocation)
		if err != nil {
			return err
		}
		name, err := encodeTranslationDoc(parsed.Name)
		if err != nil {
			return err
		}
		description, err := encodeTranslationDoc(parsed.Description)
		if err != nil {
			return err
		}

		location, err = schema.GetFedLocation(parsed.FedId, componentId, txn)
		if errors.Is(err, schema.ErrLocationNotFound) {
			location = schema.Location{
				Name:             name,
				Description:      description,
				ParentLocationId: parentLocationId,
				FedId:            &parsed.FedId,
				ComponentId:      &componentId,
			}
			if err := txn.Create(&location).Error; err != nil {
				return err
			}
			return fedlogs.Record(txn, fedlogs.EventImport, fedlogs.EntityLocation, location.Id, source.Id)
		} else if err != nil {
			return err
		}

		changed := !eqStrPtr(location.Name, name) ||
			!eqStrPtr(location.Description, description) ||
			!eqIntPtr(location.ParentLocationId, parentLocationId)
		if !changed {
			return nil
		}
		location.Name = name
		location.Description = description
		location.ParentLocationId = parentLocationId
		if err := txn.Save(&location).Error; err != nil {
			return err
		}
		return fedlogs.Record(txn, fedlogs.EventUpdate, fedlogs.EntityLocation, location.Id, source.Id)
	})
	return location, err
}

func (i *Importer) ParseImportLocation(data map[string]interface{}, source schema.Component) (schema.Location, error) {
	parsed, err := i.ParseLocation(data)
	if err != nil {
		return schema.Location{}, err
	}
	return i.ImportLocation(parsed, source)
}
