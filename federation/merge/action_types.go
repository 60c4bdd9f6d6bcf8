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

type ParsedActionTypeTranslation struct {
	LangCode         string
	Name             string
	Description      string
	ObjectName       string
	ObjectNamePlural string
}

type ParsedActionType struct {
	FedId         int
	ComponentUUID uuid.UUID

	AdminOnly            bool
	ShowOnFrontpage      bool
	ShowInNavbar         bool
	EnableLabels         bool
	EnableFiles          bool
	DisableCreateObjects bool

	Translations []ParsedActionTypeTranslation
}

func (i *Importer) ParseActionType(data map[string]interface{}) (*ParsedActionType, error) {
	fedId, err := wire.Id(data["action_type_id"], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	if err := i.guardOwnUUID(componentUUID, "action type", fedId); err != nil {
		return nil, err
	}

	parsed := &ParsedActionType{FedId: fedId, ComponentUUID: componentUUID}
	if parsed.AdminOnly, err = wire.BoolDefault(data["admin_only"], false); err != nil {
		return nil, err
	}
	if parsed.ShowOnFrontpage, err = wire.BoolDefault(data["show_on_frontpage"], false); err != nil {
		return nil, err
	}
	if parsed.ShowInNavbar, err = wire.BoolDefault(data["show_in_navbar"], false); err != nil {
		return nil, err
	}
	if parsed.EnableLabels, err = wire.BoolDefault(data["enable_labels"], true); err != nil {
		return nil, err
	}
	if parsed.EnableFiles, err = wire.BoolDefault(data["enable_files"], true); err != nil {
		return nil, err
	}
	if parsed.DisableCreateObjects, err = wire.BoolDefault(data["disable_create_objects"], false); err != nil {
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
		entry := ParsedActionTypeTranslation{LangCode: strings.ToLower(langCode)}
		if entry.Name, err = strOrEmpty(translation["name"]); err != nil {
			return nil, err
		}
		if entry.Description, err = strOrEmpty(translation["description"]); err != nil {
			return nil, err
		}
		if entry.ObjectName, err = strOrEmpty(translation["object_name"]); err != nil {
			return nil, err
		}
		if entry.ObjectNamePlural, err = strOrEmpty(translation["object_name_plural"]); err != nil {
			return nil, err
		}
		parsed.Translations = append(parsed.Translations, entry)
	}
	return parsed, nil
}

func (i *Importer) ImportActionType(parsed *ParsedActionType, source schema.Component) (schema.ActionType, error) {
	var actionType schema.ActionType
	err := i.db.Transaction(func(txn *gorm.DB) error {
		componentId, err := components.GetOrCreateComponentId(txn, parsed.ComponentUUID)
		if err != nil {
			return err
		}

		actionType, err = schema.GetFedActionType(parsed.FedId, componentId, txn)
		if errors.Is(err, schema.ErrActionTypeNotFound) {
			actionType = schema.ActionType{
				AdminOnly:            parsed.AdminOnly,
				ShowOnFrontpage:      parsed.ShowOnFrontpage,
				ShowInNavbar:         parsed.ShowInNavbar,
				EnableLabels:         parsed.EnableLabels,
				EnableFiles:          parsed.EnableFiles,
				DisableCreateObjects: parsed.DisableCreateObjects,
				FedId:                &parsed.FedId,
				ComponentId:          &componentId,
			}
			if err := txn.Create(&actionType).Error; err != nil {
				return err
			}
			if err := fedlogs.Record(txn, fedlogs.EventImport, fedlogs.EntityActionType, actionType.Id, source.Id); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			changed := actionType.AdminOnly != parsed.AdminOnly ||
				actionType.ShowOnFrontpage != parsed.ShowOnFrontpage ||
				actionType.ShowInNavbar != parsed.ShowInNavbar ||
				actionType.EnableLabels != parsed.EnableLabels ||
				actionType.EnableFiles != parsed.EnableFiles ||
				actionType.DisableCreateObjects != parsed.DisableCreateObjects
			if changed {
				actionType.AdminOnly = parsed.AdminOnly
				actionType.ShowOnFrontpage = parsed.ShowOnFrontpage
				actionType.ShowInNavbar = parsed.ShowInNavbar
				actionType.EnableLabels = parsed.EnableLabels
				actionType.EnableFiles = parsed.EnableFiles
				actionType.DisableCreateObjects = parsed.DisableCreateObjects
				if err := txn.Save(&actionType).Error; err != nil {
					return err
				}
				if err := fedlogs.Record(txn, fedlogs.EventUpdate, fedlogs.EntityActionType, actionType.Id, source.Id); err != nil {
					return err
				}
			}
		}

		if err := txn.Where("action_type_id = ?", actionType.Id).Delete(&schema.ActionTypeTranslation{}).Error; err != nil {
			return err
		}
		for _, translation := range parsed.Translations {
			record := schema.ActionTypeTranslation{
				ActionTypeId:     actionType.Id,
				LangCode:         translation.LangCode,
				Name:             translation.Name,
				Description:      translation.Description,
				ObjectName:       translation.ObjectName,
				ObjectNamePlural: translation.ObjectNamePlural,
			}
			if err := txn.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return actionType, err
}

func (i *Importer) ParseImportActionType(data map[string]interface{}, source schema.Component) (schema.ActionType, error) {
	parsed, err := i.ParseActionType(data)
	if err != nil {
		return schema.ActionType{}, err
	}
	return i.ImportActionType(parsed, source)
}
