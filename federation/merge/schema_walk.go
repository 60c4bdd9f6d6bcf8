package merge

import (
	"github.com/Sayeeda346/sampledb/federation/wire"

	"gorm.io/gorm"
)

// translatedSchemaKeys are the schema fields that may carry a per-language
// dict of translated strings.
var translatedSchemaKeys = []string{"title", "placeholder", "default", "note"}

// parseSchema validates an imported object schema in place: translated string
// fields, language lists and choice labels are stripped of language codes not
// recognized locally, and embedded action template references are normalized
// to wire identity pairs.
func (i *Importer) parseSchema(schemaDoc map[string]interface{}) error {
	if schemaDoc == nil {
		return nil
	}
	for _, key := range translatedSchemaKeys {
		if translated, ok := schemaDoc[key].(map[string]interface{}); ok {
			for langCode := range translated {
				if !i.knownLanguage(langCode) {
					delete(translated, langCode)
				}
			}
		}
	}
	if languages, ok := schemaDoc["languages"]; ok && languages != "all" {
		languageList, err := wire.List(languages)
		if err != nil {
			return wire.Invalid("invalid languages list in schema")
		}
		kept := make([]interface{}, 0, len(languageList))
		for _, language := range languageList {
			if langCode, ok := language.(string); ok && i.knownLanguage(langCode) {
				kept = append(kept, language)
			}
		}
		schemaDoc["languages"] = kept
	}
	if choices, ok := schemaDoc["choices"].([]interface{}); ok {
		for _, choice := range choices {
			if translated, ok := choice.(map[string]interface{}); ok {
				for langCode := range translated {
					if !i.knownLanguage(langCode) {
						delete(translated, langCode)
					}
				}
			}
		}
	}
	if schemaDoc["type"] == "array" {
		if items, ok := schemaDoc["items"].(map[string]interface{}); ok {
			if err := i.parseSchema(items); err != nil {
				return err
			}
		}
	}
	if schemaDoc["type"] == "object" {
		properties, ok := schemaDoc["properties"].(map[string]interface{})
		if !ok {
			return nil
		}
		for _, property := range properties {
			propertySchema, ok := property.(map[string]interface{})
			if !ok {
				continue
			}
			if err := i.parseSchema(propertySchema); err != nil {
				return err
			}
			if template, ok := propertySchema["template"]; ok {
				templateRef, err := parseRef(template, "action_id")
				if err != nil {
					return err
				}
				if templateRef != nil {
					propertySchema["template"] = map[string]interface{}{
						"action_id":      templateRef.FedId,
						"component_uuid": templateRef.ComponentUUID.String(),
					}
				}
			}
		}
	}
	return nil
}

// importSchema replaces embedded action template pairs with local action ids,
// creating placeholder shadows for templates not yet imported. The caller's
// transaction scopes any placeholder creation.
func (i *Importer) importSchema(txn *gorm.DB, schemaDoc map[string]interface{}) error {
	if schemaDoc == nil {
		return nil
	}
	if schemaDoc["type"] == "array" {
		if items, ok := schemaDoc["items"].(map[string]interface{}); ok {
			if err := i.importSchema(txn, items); err != nil {
				return err
			}
		}
	}
	if schemaDoc["type"] == "object" {
		properties, ok := schemaDoc["properties"].(map[string]interface{})
		if !ok {
			return nil
		}
		for _, property := range properties {
			propertySchema, ok := property.(map[string]interface{})
			if !ok {
				continue
			}
			if err := i.importSchema(txn, propertySchema); err != nil {
				return err
			}
			if template, ok := propertySchema["template"].(map[string]interface{}); ok {
				templateRef, err := parseRef(template, "action_id")
				if err != nil {
					return err
				}
				actionId, err := i.getOrCreateActionId(txn, templateRef)
				if err != nil {
					return err
				}
				if actionId != nil {
					propertySchema["template"] = *actionId
				}
			}
		}
	}
	return nil
}
