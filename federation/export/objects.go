package export

import (
	"time"

	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"
)

// policyAllows reports whether the share policy grants access to the given
// section. A section that is not mentioned in the policy is granted: sharing
// an object grants its content unless the policy explicitly withholds parts.
func policyAllows(policy map[string]interface{}, section string) bool {
	access, ok := policy["access"].(map[string]interface{})
	if !ok {
		return true
	}
	allowed, ok := access[section].(bool)
	if !ok {
		return true
	}
	return allowed
}

// preprocessObject serializes one shared object under its share policy. This
// seeds the worklist with the object's relational references.
func (c *Context) preprocessObject(share schema.ObjectShare) (*ObjectData, error) {
	object, err := schema.GetObject(share.ObjectId, c.db)
	if err != nil {
		return nil, err
	}

	policyDoc := share.Policy
	policy, err := decodeJSONDoc(&policyDoc)
	if err != nil {
		return nil, err
	}

	sharedAt := share.UTCDatetime
	if sharedAt.IsZero() {
		sharedAt = time.Now()
	}
	data := &ObjectData{
		VersionId:   object.VersionId,
		Policy:      policy,
		UTCDatetime: sharedAt.UTC().Format(wire.TimestampFormat),
	}

	if object.ComponentId == nil {
		data.ObjectId = object.Id
		data.ComponentUUID = c.ownUUID.String()
	} else {
		componentUUID, err := c.componentUUID(*object.ComponentId)
		if err != nil {
			return nil, err
		}
		data.ObjectId = *object.FedObjectId
		data.ComponentUUID = componentUUID.String()
	}

	if policyAllows(policy, "action") && object.ActionId != nil {
		c.addRef(KindAction, *object.ActionId)
		data.Action, err = c.actionRef(*object.ActionId)
		if err != nil {
			return nil, err
		}
	}
	if policyAllows(policy, "users") && object.UserId != nil {
		c.addRef(KindUser, *object.UserId)
		data.User, err = c.userRef(*object.UserId)
		if err != nil {
			return nil, err
		}
	}

	if policyAllows(policy, "data") {
		data.Data, err = decodeJSONDoc(object.Data)
		if err != nil {
			return nil, err
		}
		schemaDoc, err := decodeJSONDoc(object.Schema)
		if err != nil {
			return nil, err
		}
		if schemaDoc != nil {
			if err := c.schemaEntryPreprocessor(schemaDoc); err != nil {
				return nil, err
			}
		}
		data.Schema = schemaDoc
	}

	return data, nil
}
