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

type ParsedInstrumentTranslation struct {
	LangCode         string
	Name             string
	Description      string
	ShortDescription string
	Notes            string
}

type ParsedInstrument struct {
	FedId         int
	ComponentUUID uuid.UUID

	DescriptionIsMarkdown      bool
	ShortDescriptionIsMarkdown bool
	NotesIsMarkdown            bool
	IsHidden                   bool

	Translations []ParsedInstrumentTranslation
}

func (i *Importer) ParseInstrument(data map[string]interface{}) (*ParsedInstrument, error) {
	fedId, err := wire.Id(data["instrument_id"], wire.IdOpts{})
	if err != nil {
		return nil, err
	}
	componentUUID, err := wire.UUID(data["component_uuid"])
	if err != nil {
		return nil, err
	}
	if err := i.guardOwnUUID(componentUUID, "instrument", fedId); err != nil {
		return nil, err
	}

	parsed := &ParsedInstrument{FedId: fedId, ComponentUUID: componentUUID}
	if parsed.DescriptionIsMarkdown, err = wire.BoolDefault(data["description_is_markdown"], false); err != nil {
		return nil, err
	}
	if parsed.ShortDescriptionIsMarkdown, err = wire.BoolDefault(data["short_description_is_markdown"], false); err != nil {
		return nil, err
	}
	if parsed.NotesIsMarkdown, err = wire.BoolDefault(data["notes_is_markdown"], false); err != nil {
		return nil, err
	}
	if parsed.IsHidden, err = wire.BoolDefault(data["is_hidden"], false); err != nil {
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
		entry := ParsedInstrumentTranslation{LangCode: strings.ToLower(langCode)}
		if entry.Name, err = strOrEmpty(translation["name"]); err != nil {
			return nil, err
		}
		if entry.Description, err = strOrEmpty(translation["description"]); err != nil {
			return nil, err
		}
		if entry.ShortDescription, err = strOrEmpty(translation["short_description"]); err != nil {
			return nil, err
		}
		if entry.Notes, err = strOrEmpty(translation["notes"]); err != nil {
			return nil, err
		}
		parsed.Translations = append(parsed.Translations, entry)
	}
	return parsed, nil
}

func (i *Importer) ImportInstrument(parsed *ParsedInstrument, source schema.Component) (schema.Instrument, error) {
	var instrument schema.Instrument
	err := i.db.Transaction(func(txn *gorm.DB) error {
		componentId, err := components.GetOrCreateComponentId(txn, parsed.ComponentUUID)
		if err != nil {
			return err
		}

		instrument, err = schema.GetFedInstrument(parsed.FedId, componentId, txn)
		if errors.Is(err, schema.ErrInstrumentNotFound) {
			instrument = schema.Instrument{
				DescriptionIsMarkdown:      parsed.DescriptionIsMarkdown,
				ShortDescriptionIsMarkdown: parsed.ShortDescriptionIsMarkdown,
				NotesIsMarkdown:            parsed.NotesIsMarkdown,
				IsHidden:                   parsed.IsHidden,
				FedId:                      &parsed.FedId,
				ComponentId:                &componentId,
			}
			if err := txn.Create(&instrument).Error; err != nil {
				return err
			}
			if err := fedlogs.Record(txn, fedlogs.EventImport, fedlogs.EntityInstrument, instrument.Id, source.Id); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			changed := instrument.DescriptionIsMarkdown != parsed.DescriptionIsMarkdown ||
				instrument.ShortDescriptionIsMarkdown != parsed.ShortDescriptionIsMarkdown ||
				instrument.NotesIsMarkdown != parsed.NotesIsMarkdown ||
				instrument.IsHidden != parsed.IsHidden
			if changed {
				instrument.DescriptionIsMarkdown = parsed.DescriptionIsMarkdown
				instrument.ShortDescriptionIsMarkdown = parsed.ShortDescriptionIsMarkdown
				instrument.NotesIsMarkdown = parsed.NotesIsMarkdown
				instrument.IsHidden = parsed.IsHidden
				if err := txn.Save(&instrument).Error; err != nil {
					return err
				}
				if err := fedlogs.Record(txn, fedlogs.EventUpdate, fedlogs.EntityInstrument, instrument.Id, source.Id); err != nil {
					return err
				}
			}
		}

		if err := txn.Where("instrument_id = ?", instrument.Id).Delete(&schema.InstrumentTranslation{}).Error; err != nil {
			return err
		}
		for _, translation := range parsed.Translations {
			record := schema.InstrumentTranslation{
				InstrumentId:     instrument.Id,
				LangCode:         translation.LangCode,
				Name:             translation.Name,
				Description:      translation.Description,
				ShortDescription: translation.ShortDescription,
				Notes:            translation.Notes,
			}
			if err := txn.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return instrument, err
}

func (i *Importer) ParseImportInstrument(data map[string]interface{}, source schema.Component) (schema.Instrument, error) {
	parsed, err := i.ParseInstrument(data)
	if err != nil {
		return schema.Instrument{}, err
	}
	return i.ImportInstrument(parsed, source)
}
