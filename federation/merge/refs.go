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

// Ref is a parsed wire identity pair. A nil *Ref means "no reference".
type Ref struct {
	FedId         int
	ComponentUUID uuid.UUID
}

func parseRef(value interface{}, idKey string) (*Ref, error) {
	data, err := wire.OptionalDict(value)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	fedId, err := wire.Id(data[idKey], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	return &Ref{FedId: fedId, ComponentUUID: componentUUID}, nil
}

// The getOrCreate resolvers turn a wire identity pair into a local row id. A
// pair under this deployment's own UUID resolves to the local entity itself.
// An unknown pair creates a placeholder shadow carrying only its identity,
// logged as a create_ref event; a later full import enriches the same row.

func (i *Importer) getOrCreateUserId(txn *gorm.DB, ref *Ref) (*int, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ComponentUUID == i.ownUUID {
		user, err := schema.GetUser(ref.FedId, txn)
		if err != nil {
			return nil, err
		}
		return &user.Id, nil
	}
	componentId, err := components.GetOrCreateComponentId(txn, ref.ComponentUUID)
	if err != nil {
		return nil, err
	}
	user, err := schema.GetFedUser(ref.FedId, componentId, txn)
	if errors.Is(err, schema.ErrUserNotFound) {
		user = schema.User{FedId: &ref.FedId, ComponentId: &componentId}
		if err := txn.Create(&user).Error; err != nil {
			return nil, err
		}
		if err := fedlogs.Record(txn, fedlogs.EventCreateRef, fedlogs.EntityUser, user.Id, componentId); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &user.Id, nil
}

func (i *Importer) getOrCreateActionId(txn *gorm.DB, ref *Ref) (*int, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ComponentUUID == i.ownUUID {
		action, err := schema.GetAction(ref.FedId, txn)
		if err != nil {
			return nil, err
		}
		return &action.Id, nil
	}
	componentId, err := components.GetOrCreateComponentId(txn, ref.ComponentUUID)
	if err != nil {
		return nil, err
	}
	action, err := schema.GetFedAction(ref.FedId, componentId, txn)
	if errors.Is(err, schema.ErrActionNotFound) {
		action = schema.Action{FedId: &ref.FedId, ComponentId: &componentId}
		if err := txn.Create(&action).Error; err != nil {
			return nil, err
		}
		if err := fedlogs.Record(txn, fedlogs.EventCreateRef, fedlogs.EntityAction, action.Id, componentId); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &action.Id, nil
}

func (i *Importer) getOrCreateActionTypeId(txn *gorm.DB, ref *Ref) (*int, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ComponentUUID == i.ownUUID {
		actionType, err := schema.GetActionType(ref.FedId, txn)
		if err != nil {
			return nil, err
		}
		return &actionType.Id, nil
	}
	componentId, err := components.GetOrCreateComponentId(txn, ref.ComponentUUID)
	if err != nil {
		return nil, err
	}
	actionType, err := schema.GetFedActionType(ref.FedId, componentId, txn)
	if errors.Is(err, schema.ErrActionTypeNotFound) {
		actionType = schema.ActionType{FedId: &ref.FedId, ComponentId: &componentId}
		if err := txn.Create(&actionType).Error; err != nil {
			return nil, err
		}
		if err := fedlogs.Record(txn, fedlogs.EventCreateRef, fedlogs.EntityActionType, actionType.Id, componentId); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &actionType.Id, nil
}

func (i *Importer) getOrCreateInstrumentId(txn *gorm.DB, ref *Ref) (*int, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ComponentUUID == i.ownUUID {
		instrument, err := schema.GetInstrument(ref.FedId, txn)
		if err != nil {
			return nil, err
		}
		return &instrument.Id, nil
	}
	componentId, err := components.GetOrCreateComponentId(txn, ref.ComponentUUID)
	if err != nil {
		return nil, err
	}
	instrument, err := schema.GetFedInstrument(ref.FedId, componentId, txn)
	if errors.Is(err, schema.ErrInstrumentNotFound) {
		instrument = schema.Instrument{FedId: &ref.FedId, ComponentId: &componentId}
		if err := txn.Create(&instrument).Error; err != nil {
			return nil, err
		}
		if err := fedlogs.Record(txn, fedlogs.EventCreateRef, fedlogs.EntityInstrument, instrument.Id, componentId); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &instrument.Id, nil
}

func (i *Importer) getOrCreateLocationId(txn *gorm.DB, ref *Ref) (*int, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ComponentUUID == i.ownUUID {
		location, err := schema.GetLocation(ref.FedId, txn)
		if err != nil {
			return nil, err
		}
		return &location.Id, nil
	}
	componentId, err := components.GetOrCreateComponentId(txn, ref.ComponentUUID)
	if err != nil {
		return nil, err
	}
	location, err := schema.GetFedLocation(ref.FedId, componentId, txn)
	if errors.Is(err, schema.ErrLocationNotFound) {
		location = schema.Location{FedId: &ref.FedId, ComponentId: &componentId}
		if err := txn.Create(&location).Error; err != nil {
			return nil, err
		}
		if err := fedlogs.Record(txn, fedlogs.EventCreateRef, fedlogs.EntityLocation, location.Id, componentId); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &location.Id, nil
}
