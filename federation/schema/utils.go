package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrComponentNotFound         = errors.New("component does not exist")
	ErrUserNotFound              = errors.New("user not found")
	ErrUserAliasNotFound         = errors.New("user alias not found")
	ErrFederatedIdentityNotFound = errors.New("federated identity not found")
	ErrActionNotFound            = errors.New("action not found")
	ErrActionTypeNotFound        = errors.New("action type not found")
	ErrInstrumentNotFound        = errors.New("instrument not found")
	ErrLocationNotFound          = errors.New("location not found")
	ErrObjectNotFound            = errors.New("object not found")
	ErrObjectShareNotFound       = errors.New("object share not found")
	ErrMarkdownImageNotFound     = errors.New("markdown image not found")
	ErrDbAccessFailed            = errors.New("db access failed")
)

func GetComponent(componentId int, db *gorm.DB) (Component, error) {
	var component Component

	result := db.First(&component, "id = ?", componentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return component, ErrComponentNotFound
		}
		slog.Error("sql error in get component", "component_id", componentId, "error", result.Error)
		return component, ErrDbAccessFailed
	}

	return component, nil
}

func GetComponentByUUID(componentUUID uuid.UUID, db *gorm.DB) (Component, error) {
	var component Component

	result := db.First(&component, "uuid = ?", componentUUID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return component, ErrComponentNotFound
		}
		slog.Error("sql error in get component by uuid", "uuid", componentUUID, "error", result.Error)
		return component, ErrDbAccessFailed
	}

	return component, nil
}

func GetUser(userId int, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

// fedLookup finds a shadow entity by its (fed_id, component_id) identity pair.
func fedLookup[T any](fedId, componentId int, db *gorm.DB, notFound error) (T, error) {
	var entity T

	result := db.First(&entity, "fed_id = ? AND component_id = ?", fedId, componentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entity, notFound
		}
		slog.Error("sql error in fed entity lookup", "fed_id", fedId, "component_id", componentId, "error", result.Error)
		return entity, ErrDbAccessFailed
	}

	return entity, nil
}

func GetFedUser(fedId, componentId int, db *gorm.DB) (User, error) {
	return fedLookup[User](fedId, componentId, db, ErrUserNotFound)
}

func GetFedAction(fedId, componentId int, db *gorm.DB) (Action, error) {
	return fedLookup[Action](fedId, componentId, db, ErrActionNotFound)
}

func GetFedActionType(fedId, componentId int, db *gorm.DB) (ActionType, error) {
	return fedLookup[ActionType](fedId, componentId, db, ErrActionTypeNotFound)
}

func GetFedInstrument(fedId, componentId int, db *gorm.DB) (Instrument, error) {
	return fedLookup[Instrument](fedId, componentId, db, ErrInstrumentNotFound)
}

func GetFedLocation(fedId, componentId int, db *gorm.DB) (Location, error) {
	return fedLookup[Location](fedId, componentId, db, ErrLocationNotFound)
}

func GetFedObject(fedId, componentId int, db *gorm.DB) (Object, error) {
	var object Object

	result := db.First(&object, "fed_object_id = ? AND component_id = ?", fedId, componentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return object, ErrObjectNotFound
		}
		slog.Error("sql error in get fed object", "fed_object_id", fedId, "component_id", componentId, "error", result.Error)
		return object, ErrDbAccessFailed
	}

	return object, nil
}

func GetAction(actionId int, db *gorm.DB) (Action, error) {
	var action Action

	result := db.Preload("Type").Preload("Translations").First(&action, "id = ?", actionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return action, ErrActionNotFound
		}
		slog.Error("sql error in get action", "action_id", actionId, "error", result.Error)
		return action, ErrDbAccessFailed
	}

	return action, nil
}

func GetActionType(actionTypeId int, db *gorm.DB) (ActionType, error) {
	var actionType ActionType

	result := db.Preload("Translations").First(&actionType, "id = ?", actionTypeId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return actionType, ErrActionTypeNotFound
		}
		slog.Error("sql error in get action type", "action_type_id", actionTypeId, "error", result.Error)
		return actionType, ErrDbAccessFailed
	}

	return actionType, nil
}

func GetInstrument(instrumentId int, db *gorm.DB) (Instrument, error) {
	var instrument Instrument

	result := db.Preload("Translations").First(&instrument, "id = ?", instrumentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return instrument, ErrInstrumentNotFound
		}
		slog.Error("sql error in get instrument", "instrument_id", instrumentId, "error", result.Error)
		return instrument, ErrDbAccessFailed
	}

	return instrument, nil
}

func GetLocation(locationId int, db *gorm.DB) (Location, error) {
	var location Location

	result := db.First(&location, "id = ?", locationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return location, ErrLocationNotFound
		}
		slog.Error("sql error in get location", "location_id", locationId, "error", result.Error)
		return location, ErrDbAccessFailed
	}

	return location, nil
}

func GetObject(objectId int, db *gorm.DB) (Object, error) {
	var object Object

	result := db.First(&object, "id = ?", objectId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return object, ErrObjectNotFound
		}
		slog.Error("sql error in get object", "object_id", objectId, "error", result.Error)
		return object, ErrDbAccessFailed
	}

	return object, nil
}

func GetSharesForComponent(componentId int, db *gorm.DB) ([]ObjectShare, error) {
	var shares []ObjectShare

	result := db.Find(&shares, "component_id = ?", componentId)
	if result.Error != nil {
		slog.Error("sql error listing object shares", "component_id", componentId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}

	return shares, nil
}

func GetMarkdownImage(fileName string, componentId int, db *gorm.DB) (MarkdownImage, error) {
	var image MarkdownImage

	result := db.First(&image, "file_name = ? AND component_id = ?", fileName, componentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return image, ErrMarkdownImageNotFound
		}
		slog.Error("sql error in get markdown image", "file_name", fileName, "error", result.Error)
		return image, ErrDbAccessFailed
	}

	return image, nil
}

// AllModels lists every model for migration and test setup.
func AllModels() []interface{} {
	return []interface{}{
		&Component{}, &ComponentAuthentication{}, &OwnComponentAuthentication{},
		&User{}, &UserAlias{}, &FederatedIdentity{},
		&ActionType{}, &ActionTypeTranslation{},
		&Action{}, &ActionTranslation{},
		&Instrument{}, &InstrumentTranslation{},
		&Location{}, &Object{}, &ObjectShare{},
		&MarkdownImage{}, &FedLogEntry{},
	}
}
