package merge

import (
	"errors"
	"time"

	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/fedlogs"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParsedObject struct {
	FedObjectId   int
	FedVersionId  int
	ComponentUUID uuid.UUID

	Action *Ref
	User   *Ref

	Data   map[string]interface{}
	Schema map[string]interface{}
	Policy map[string]interface{}

	UTCDatetime *time.Time
}

func (i *Importer) ParseObject(data map[string]interface{}) (*ParsedObject, error) {
	fedObjectId, err := wire.Id(data["object_id"], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	if err := i.guardOwnUUID(componentUUID, "object", fedObjectId); err != nil {
		return nil, err
	}

	parsed := &ParsedObject{FedObjectId: fedObjectId, ComponentUUID: componentUUID}
	if parsed.FedVersionId, err = wire.Id(data["version_id"], wire.IdOpts{SpecialValues: []int{0}}); err != nil {
		return nil, err
	}
	if parsed.Action, err = parseRef(data["action"], "action_id"); err != nil {
		return nil, err
	}
	if parsed.User, err = parseRef(data["user"], "user_id"); err != nil {
		return nil, err
	}
	if parsed.Data, err = wire.OptionalDict(data["data"]); err != nil {
		return nil, err
	}
	if parsed.Schema, err = wire.OptionalDict(data["schema"]); err != nil {
		return nil, err
	}
	if err := i.parseSchema(parsed.Schema); err != nil {
		return nil, err
	}
	if parsed.Policy, err = wire.OptionalDict(data["policy"]); err != nil {
		return nil, err
	}
	if parsed.UTCDatetime, err = wire.OptionalUTCDatetime(data["utc_datetime"], i.validTimeDelta); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ImportObject creates or updates the shadow object for a parsed wire object.
// The shadow always reflects the newest imported version; older versions are
// not kept.
func (i *Importer) ImportObject(parsed *ParsedObject, source schema.Component) (schema.Object, error) {
	var object schema.Object
	err := i.db.Transaction(func(txn *gorm.DB) error {
		componentId, err := components.GetOrCreateComponentId(txn, parsed.ComponentUUID)
		if err != nil {
			return err
		}
		actionId, err := i.getOrCreateActionId(txn, parsed.Action)
		if err != nil {
			return err
		}
		userId, err := i.getOrCreateUserId(txn, parsed.User)
		if err != nil {
			return err
		}
		if err := i.importSchema(txn, parsed.Schema); err != nil {
			return err
		}
		data, err := encodeJSONDoc(parsed.Data)
		if err != nil {
			return err
		}
		schemaDoc, err := encodeJSONDoc(parsed.Schema)
		if err != nil {
			return err
		}

		object, err = schema.GetFedObject(parsed.FedObjectId, componentId, txn)
		if errors.Is(err, schema.ErrObjectNotFound) {
			object = schema.Object{
				VersionId:    parsed.FedVersionId,
				ActionId:     actionId,
				UserId:       userId,
				Data:         data,
				Schema:       schemaDoc,
				FedObjectId:  &parsed.FedObjectId,
				FedVersionId: &parsed.FedVersionId,
				ComponentId:  &componentId,
			}
			if err := txn.Create(&object).Error; err != nil {
				return err
			}
			return fedlogs.Record(txn, fedlogs.EventImport, fedlogs.EntityObject, object.Id, source.Id)
		} else if err != nil {
			return err
		}

		changed := !eqIntPtr(object.FedVersionId, &parsed.FedVersionId) ||
			!eqIntPtr(object.ActionId, actionId) ||
			!eqIntPtr(object.UserId, userId) ||
			!eqStrPtr(object.Data, data) ||
			!eqStrPtr(object.Schema, schemaDoc)
		if !changed {
			return nil
		}
		object.VersionId = parsed.FedVersionId
		object.FedVersionId = &parsed.FedVersionId
		object.ActionId = actionId
		object.UserId = userId
		object.Data = data
		object.Schema = schemaDoc
		if err := txn.Save(&object).Error; err != nil {
			return err
		}
		return fedlogs.Record(txn, fedlogs.EventUpdate, fedlogs.EntityObject, object.Id, source.Id)
	})
	return object, err
}

func (i *Importer) ParseImportObject(data map[string]interface{}, source schema.Component) (schema.Object, error) {
	parsed, err := i.ParseObject(data)
	if err != nil {
		return schema.Object{}, err
	}
	return i.ImportObject(parsed, source)
}
