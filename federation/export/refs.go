package export

import (
	"github.com/Sayeeda346/sampledb/federation/schema"
)

// The ref builders resolve a local row id into the wire identity pair: a
// local entity is forwarded under this deployment's own UUID and native id,
// a shadow entity under its fed_id and owning component's UUID. A shadow's
// local row id never crosses the wire.

func (c *Context) actionRef(actionId int) (*ActionRef, error) {
	action, err := schema.GetAction(actionId, c.db)
	if err != nil {
		return nil, err
	}
	if action.ComponentId == nil {
		return &ActionRef{ActionId: action.Id, ComponentUUID: c.ownUUID.String()}, nil
	}
	componentUUID, err := c.componentUUID(*action.ComponentId)
	if err != nil {
		return nil, err
	}
	return &ActionRef{ActionId: *action.FedId, ComponentUUID: componentUUID.String()}, nil
}

func (c *Context) actionTypeRef(actionTypeId int) (*ActionTypeRef, error) {
	actionType, err := schema.GetActionType(actionTypeId, c.db)
	if err != nil {
		return nil, err
	}
	if actionType.ComponentId == nil {
		return &ActionTypeRef{ActionTypeId: actionType.Id, ComponentUUID: c.ownUUID.String()}, nil
	}
	componentUUID, err := c.componentUUID(*actionType.ComponentId)
	if err != nil {
		return nil, err
	}
	return &ActionTypeRef{ActionTypeId: *actionType.FedId, ComponentUUID: componentUUID.String()}, nil
}

func (c *Context) instrumentRef(instrumentId int) (*InstrumentRef, error) {
	instrument, err := schema.GetInstrument(instrumentId, c.db)
	if err != nil {
		return nil, err
	}
	if instrument.ComponentId == nil {
		return &InstrumentRef{InstrumentId: instrument.Id, ComponentUUID: c.ownUUID.String()}, nil
	}
	componentUUID, err := c.componentUUID(*instrument.ComponentId)
	if err != nil {
		return nil, err
	}
	return &InstrumentRef{InstrumentId: *instrument.FedId, ComponentUUID: componentUUID.String()}, nil
}

func (c *Context) userRef(userId int) (*UserRef, error) {
	user, err := schema.GetUser(userId, c.db)
	if err != nil {
		return nil, err
	}
	if user.ComponentId == nil {
		return &UserRef{UserId: user.Id, ComponentUUID: c.ownUUID.String()}, nil
	}
	componentUUID, err := c.componentUUID(*user.ComponentId)
	if err != nil {
		return nil, err
	}
	return &UserRef{UserId: *user.FedId, ComponentUUID: componentUUID.String()}, nil
}

func (c *Context) locationRef(locationId int) (*LocationRef, error) {
	location, err := schema.GetLocation(locationId, c.db)
	if err != nil {
		return nil, err
	}
	if location.ComponentId == nil {
		return &LocationRef{LocationId: location.Id, ComponentUUID: c.ownUUID.String()}, nil
	}
	componentUUID, err := c.componentUUID(*location.ComponentId)
	if err != nil {
		return nil, err
	}
	return &LocationRef{LocationId: *location.FedId, ComponentUUID: componentUUID.String()}, nil
}
