package export

import (
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"
)

// preprocessAction serializes a local action into its wire form. Actions
// that are themselves shadows of a remote action are never re-exported.
func (c *Context) preprocessAction(actionId int) (*ActionData, error) {
	action, err := schema.GetAction(actionId, c.db)
	if err != nil {
		return nil, err
	}
	if action.ComponentId != nil {
		return nil, nil
	}

	if action.InstrumentId != nil {
		c.addRef(KindInstrument, *action.InstrumentId)
	}
	if action.UserId != nil {
		c.addRef(KindUser, *action.UserId)
	}
	if action.TypeId != nil {
		c.addRef(KindActionType, *action.TypeId)
	}

	data := &ActionData{
		ActionId:      action.Id,
		ComponentUUID: c.ownUUID.String(),

		DescriptionIsMarkdown:      action.DescriptionIsMarkdown,
		ShortDescriptionIsMarkdown: action.ShortDescriptionIsMarkdown,
		IsHidden:                   action.IsHidden,
		AdminOnly:                  action.AdminOnly,
		DisableCreateObjects:       action.DisableCreateObjects,
	}

	if action.TypeId != nil {
		data.ActionType, err = c.actionTypeRef(*action.TypeId)
		if err != nil {
			return nil, err
		}
	}
	if action.InstrumentId != nil {
		data.Instrument, err = c.instrumentRef(*action.InstrumentId)
		if err != nil {
			return nil, err
		}
	}
	if action.UserId != nil {
		data.User, err = c.userRef(*action.UserId)
		if err != nil {
			return nil, err
		}
	}

	if len(action.Translations) > 0 {
		data.Translations = make(map[string]ActionTranslationData, len(action.Translations))
		for _, translation := range action.Translations {
			data.Translations[translation.LangCode] = ActionTranslationData{
				Name:             translation.Name,
				Description:      c.rewriteMarkdown(translation.Description),
				ShortDescription: c.rewriteMarkdown(translation.ShortDescription),
			}
		}
	}

	schemaDoc, err := decodeJSONDoc(action.Schema)
	if err != nil {
		return nil, err
	}
	if schemaDoc != nil {
		if err := c.schemaEntryPreprocessor(schemaDoc); err != nil {
			return nil, err
		}
	}
	data.Schema = schemaDoc

	return data, nil
}

// translatedSchemaFields are the schema entry fields that may hold per-language
// text as a {lang: string} map.
var translatedSchemaFields = []string{"title", "placeholder", "default", "note"}

// stripUnknownLanguages removes string entries for languages this deployment
// does not recognize from a translated text map.
func (c *Context) stripUnknownLanguages(translated map[string]interface{}) {
	for langCode, value := range translated {
		if _, isString := value.(string); isString && !c.knownLanguage(langCode) {
			delete(translated, langCode)
		}
	}
}

// schemaEntryPreprocessor walks a schema document, rewrites every embedded
// action template id into a wire identity pair, registering the referenced
// action on the worklist, and strips translated text for unrecognized
// languages.
func (c *Context) schemaEntryPreprocessor(value interface{}) error {
	switch entry := value.(type) {
	case []interface{}:
		for _, item := range entry {
			if err := c.schemaEntryPreprocessor(item); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		if _, hasType := entry["type"]; !hasType {
			for _, item := range entry {
				if err := c.schemaEntryPreprocessor(item); err != nil {
					return err
				}
			}
			return nil
		}
		for _, field := range translatedSchemaFields {
			if translated, ok := entry[field].(map[string]interface{}); ok {
				c.stripUnknownLanguages(translated)
			}
		}
		if choices, ok := entry["choices"].([]interface{}); ok {
			for _, choice := range choices {
				if translated, ok := choice.(map[string]interface{}); ok {
					c.stripUnknownLanguages(translated)
				}
			}
		}
		if entry["type"] == "array" {
			if items, ok := entry["items"]; ok {
				if err := c.schemaEntryPreprocessor(items); err != nil {
					return err
				}
			}
		}
		if entry["type"] == "object" {
			if template, ok := entry["template"]; ok && template != nil {
				if templateId, err := wire.Id(template, wire.IdOpts{}); err == nil {
					c.addRef(KindAction, templateId)
					ref, err := c.actionRef(templateId)
					if err != nil {
						return err
					}
					entry["template"] = ref
				}
			}
			if properties, ok := entry["properties"].(map[string]interface{}); ok {
				for _, propertySchema := range properties {
					if err := c.schemaEntryPreprocessor(propertySchema); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
