package merge

import (
	"errors"
	"strings"

	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/fedlogs"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParsedActionTranslation struct {
	LangCode         string
	Name             string
	Description      string
	ShortDescription string
}

type ParsedAction struct {
	FedId         int
	ComponentUUID uuid.UUID

	ActionType *Ref
	Instrument *Ref
	User       *Ref

	Schema map[string]interface{}

	DescriptionIsMarkdown      bool
	ShortDescriptionIsMarkdown bool
	IsHidden                   bool
	AdminOnly                  *bool
	DisableCreateObjects       *bool

	Translations []ParsedActionTranslation
}

func strOrEmpty(value interface{}) (string, error) {
	s, err := wire.OptionalStr(value)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// ParseAction coerces one action entry of an export document.
func (i *Importer) ParseAction(data map[string]interface{}) (*ParsedAction, error) {
	fedId, err := wire.Id(data["action_id"], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	if err := i.guardOwnUUID(componentUUID, "action", fedId); err != nil {
		return nil, err
	}

	actionType, err := parseRef(data["action_type"], "action_type_id")
	if err != nil {
		return nil, err
	}
	if actionType == nil {
		return nil, wire.Invalid("missing action type for action %d", fedId)
	}
	instrument, err := parseRef(data["instrument"], "instrument_id")
	if err != nil {
		return nil, err
	}
	user, err := parseRef(data["user"], "user_id")
	if err != nil {
		return nil, err
	}

	schemaDoc, err := wire.OptionalDict(data["schema"])
	if err != nil {
		return nil, err
	}
	if err := i.parseSchema(schemaDoc); err != nil {
		return nil, err
	}

	parsed := &ParsedAction{
		FedId:         fedId,
		ComponentUUID: componentUUID,
		ActionType:    actionType,
		Instrument:    instrument,
		User:          user,
		Schema:        schemaDoc,
	}
	if parsed.DescriptionIsMarkdown, err = wire.BoolDefault(data["description_is_markdown"], false); err != nil {
		return nil, err
	}
	if parsed.ShortDescriptionIsMarkdown, err = wire.BoolDefault(data["short_description_is_markdown"], false); err != nil {
		return nil, err
	}
	if parsed.IsHidden, err = wire.BoolDefault(data["is_hidden"], false); err != nil {
		return nil, err
	}
	if parsed.AdminOnly, err = wire.OptionalBool(data["admin_only"]); err != nil {
		return nil, err
	}
	if parsed.DisableCreateObjects, err = wire.OptionalBool(data["disable_create_objects"]); err != nil {
		return nil, err
	}

	translations, err := wire.OptionalDict(data["translations"])
	if err != nil {
		return nil, err
	}
	for langCode, value := range translations {
		if !i.knownLanguage(langCode) {
			continue
		}
		translation, err := wire.Dict(value)
		if err != nil {
			return nil, err
		}
		entry := ParsedActionTranslation{LangCode: strings.ToLower(langCode)}
		if entry.Name, err = strOrEmpty(translation["name"]); err != nil {
			return nil, err
		}
		if entry.Description, err = strOrEmpty(translation["description"]); err != nil {
			return nil, err
		}
		if entry.ShortDescription, err = strOrEmpty(translation["short_description"]); err != nil {
			return nil, err
		}
		parsed.Translations = append(parsed.Translations, entry)
	}
	return parsed, nil
}

// ImportAction creates or updates the shadow action for a parsed wire action.
// Content fields are only written when they differ; translations are always
// fully rewritten.
func (i *Importer) ImportAction(parsed *ParsedAction, source schema.Component) (schema.Action, error) {
	var action schema.Action
	err := i.db.Transaction(func(txn *gorm.DB) error {
		componentId, err := components.GetOrCreateComponentId(txn, parsed.ComponentUUID)
		if err != nil {
			return err
		}
		actionTypeId, err := i.getOrCreateActionTypeId(txn, parsed.ActionType)
		if err != nil {
			return err
		}
		instrumentId, err := i.getOrCreateInstrumentId(txn, parsed.Instrument)
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
		schemaDoc, err := encodeJSONDoc(parsed.Schema)
		if err != nil {
			return err
		}

		action, err = schema.GetFedAction(parsed.FedId, componentId, txn)
		if errors.Is(err, schema.ErrActionNotFound) {
			action = schema.Action{
				TypeId:                     actionTypeId,
				InstrumentId:               instrumentId,
				UserId:                     userId,
				Schema:                     schemaDoc,
				DescriptionIsMarkdown:      parsed.DescriptionIsMarkdown,
				ShortDescriptionIsMarkdown: parsed.ShortDescriptionIsMarkdown,
				IsHidden:                   parsed.IsHidden,
				FedId:                      &parsed.FedId,
				ComponentId:                &componentId,
			}
			if parsed.AdminOnly != nil {
				action.AdminOnly = *parsed.AdminOnly
			}
			if parsed.DisableCreateObjects != nil {
				action.DisableCreateObjects = *parsed.DisableCreateObjects
			}
			if err := txn.Create(&action).Error; err != nil {
				return err
			}
			if err := fedlogs.Record(txn, fedlogs.EventImport, fedlogs.EntityAction, action.Id, source.Id); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			changed := !eqIntPtr(action.TypeId, actionTypeId) ||
				!eqIntPtr(action.InstrumentId, instrumentId) ||
				!eqIntPtr(action.UserId, userId) ||
				!eqStrPtr(action.Schema, schemaDoc) ||
				action.DescriptionIsMarkdown != parsed.DescriptionIsMarkdown ||
				action.ShortDescriptionIsMarkdown != parsed.ShortDescriptionIsMarkdown ||
				action.IsHidden != parsed.IsHidden ||
				(parsed.AdminOnly != nil && action.AdminOnly != *parsed.AdminOnly) ||
				(parsed.DisableCreateObjects != nil && action.DisableCreateObjects != *parsed.DisableCreateObjects)
			if changed {
				action.TypeId = actionTypeId
				action.InstrumentId = instrumentId
				action.UserId = userId
				action.Schema = schemaDoc
				action.DescriptionIsMarkdown = parsed.DescriptionIsMarkdown
				action.ShortDescriptionIsMarkdown = parsed.ShortDescriptionIsMarkdown
				action.IsHidden = parsed.IsHidden
				if parsed.AdminOnly != nil {
					action.AdminOnly = *parsed.AdminOnly
				}
				if parsed.DisableCreateObjects != nil {
					action.DisableCreateObjects = *parsed.DisableCreateObjects
				}
				if err := txn.Save(&action).Error; err != nil {
					return err
				}
				if err := fedlogs.Record(txn, fedlogs.EventUpdate, fedlogs.EntityAction, action.Id, source.Id); err != nil {
					return err
				}
			}
		}

		if err := txn.Where("action_id = ?", action.Id).Delete(&schema.ActionTranslation{}).Error; err != nil {
			return err
		}
		for _, translation := range parsed.Translations {
			record := schema.ActionTranslation{
				ActionId:         action.Id,
				LangCode:         translation.LangCode,
				Name:             translation.Name,
				Description:      translation.Description,
				ShortDescription: translation.ShortDescription,
			}
			if err := txn.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return action, err
}

// ParseImportAction is the composed entry point used by the sync pass.
func (i *Importer) ParseImportAction(data map[string]interface{}, source schema.Component) (schema.Action, error) {
	parsed, err := i.ParseAction(data)
	if err != nil {
		return schema.Action{}, err
	}
	return i.ImportAction(parsed, source)
}
