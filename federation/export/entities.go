package export

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

func (c *Context) preprocessActionType(actionTypeId int) (*ActionTypeData, error) {
	actionType, err := schema.GetActionType(actionTypeId, c.db)
	if err != nil {
		return nil, err
	}
	if actionType.ComponentId != nil {
		return nil, nil
	}

	data := &ActionTypeData{
		ActionTypeId:  actionType.Id,
		ComponentUUID: c.ownUUID.String(),

		AdminOnly:            actionType.AdminOnly,
		ShowOnFrontpage:      actionType.ShowOnFrontpage,
		ShowInNavbar:         actionType.ShowInNavbar,
		EnableLabels:         actionType.EnableLabels,
		EnableFiles:          actionType.EnableFiles,
		DisableCreateObjects: actionType.DisableCreateObjects,
	}

	if len(actionType.Translations) > 0 {
		data.Translations = make(map[string]ActionTypeTranslationData, len(actionType.Translations))
		for _, translation := range actionType.Translations {
			data.Translations[translation.LangCode] = ActionTypeTranslationData{
				Name:             translation.Name,
				Description:      translation.Description,
				ObjectName:       translation.ObjectName,
				ObjectNamePlural: translation.ObjectNamePlural,
			}
		}
	}

	return data, nil
}

func (c *Context) preprocessInstrument(instrumentId int) (*InstrumentData, error) {
	instrument, err := schema.GetInstrument(instrumentId, c.db)
	if err != nil {
		return nil, err
	}
	if instrument.ComponentId != nil {
		return nil, nil
	}

	data := &InstrumentData{
		InstrumentId:  instrument.Id,
		ComponentUUID: c.ownUUID.String(),

		DescriptionIsMarkdown:      instrument.DescriptionIsMarkdown,
		ShortDescriptionIsMarkdown: instrument.ShortDescriptionIsMarkdown,
		NotesIsMarkdown:            instrument.NotesIsMarkdown,
		IsHidden:                   instrument.IsHidden,
	}

	if len(instrument.Translations) > 0 {
		data.Translations = make(map[string]InstrumentTranslationData, len(instrument.Translations))
		for _, translation := range instrument.Translations {
			data.Translations[translation.LangCode] = InstrumentTranslationData{
				Name:             translation.Name,
				Description:      c.rewriteMarkdown(translation.Description),
				ShortDescription: c.rewriteMarkdown(translation.ShortDescription),
				Notes:            c.rewriteMarkdown(translation.Notes),
			}
		}
	}

	return data, nil
}

// preprocessUser serializes a local user for the target component. The
// persona presented to the peer is the user's alias for that component; a
// user without an alias is exported with only their id so no profile data
// leaves the deployment unasked.
func (c *Context) preprocessUser(userId int) (*UserData, error) {
	user, err := schema.GetUser(userId, c.db)
	if err != nil {
		return nil, err
	}
	if user.ComponentId != nil {
		return nil, nil
	}

	data := &UserData{
		UserId:        user.Id,
		ComponentUUID: c.ownUUID.String(),
	}

	var alias schema.UserAlias
	result := c.db.First(&alias, "user_id = ? AND component_id = ?", user.Id, c.target.Id)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error loading user alias", "user_id", user.Id, "component_id", c.target.Id, "error", result.Error)
			return nil, schema.ErrDbAccessFailed
		}
		return data, nil
	}

	pick := func(useReal bool, real, aliased *string) *string {
		if useReal {
			return real
		}
		return aliased
	}
	data.Name = pick(alias.UseRealName, user.Name, alias.Name)
	data.Email = pick(alias.UseRealEmail, user.Email, alias.Email)
	data.Orcid = pick(alias.UseRealOrcid, user.Orcid, alias.Orcid)
	data.Affiliation = pick(alias.UseRealAffiliation, user.Affiliation, alias.Affiliation)
	data.Role = pick(alias.UseRealRole, user.Role, alias.Role)

	return data, nil
}

func decodeTranslationDoc(doc *string) (map[string]string, error) {
	if doc == nil {
		return nil, nil
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(*doc), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (c *Context) preprocessLocation(locationId int) (*LocationData, error) {
	location, err := schema.GetLocation(locationId, c.db)
	if err != nil {
		return nil, err
	}
	if location.ComponentId != nil {
		return nil, nil
	}

	name, err := decodeTranslationDoc(location.Name)
	if err != nil {
		return nil, err
	}
	description, err := decodeTranslationDoc(location.Description)
	if err != nil {
		return nil, err
	}

	data := &LocationData{
		LocationId:    location.Id,
		ComponentUUID: c.ownUUID.String(),
		Name:          name,
		Description:   description,
	}

	if location.ParentLocationId != nil {
		c.addRef(KindLocation, *location.ParentLocationId)
		data.ParentLocation, err = c.locationRef(*location.ParentLocationId)
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}
