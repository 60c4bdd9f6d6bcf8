// Package components maintains the registry of peer deployments and the
// authentication tokens used to exchange data with them.
package components

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrComponentAlreadyExists   = errors.New("a component with this UUID or name already exists")
	ErrInvalidComponentUUID     = errors.New("invalid component UUID")
	ErrInvalidComponentName     = errors.New("invalid component name")
	ErrInvalidComponentAddress  = errors.New("invalid component address")
	ErrInsecureComponentAddress = errors.New("only secure communication via https is allowed")
)

func validateAddress(address string, allowHTTP bool) error {
	parsed, err := url.Parse(address)
	if err != nil || parsed.Host == "" {
		return ErrInvalidComponentAddress
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if allowHTTP {
			return nil
		}
		return ErrInsecureComponentAddress
	default:
		return ErrInvalidComponentAddress
	}
}

func checkUniqueness(txn *gorm.DB, componentUUID uuid.UUID, name *string, excludeId int) error {
	query := txn.Model(&schema.Component{}).Where("id <> ?", excludeId)
	if name != nil {
		query = query.Where("uuid = ? OR name = ?", componentUUID, *name)
	} else {
		query = query.Where("uuid = ?", componentUUID)
	}

	var count int64
	result := query.Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking component uniqueness", "uuid", componentUUID, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if count > 0 {
		return ErrComponentAlreadyExists
	}
	return nil
}

// AddComponent registers a peer deployment explicitly. The peer's UUID must
// differ from this deployment's own federation UUID.
func AddComponent(db *gorm.DB, componentUUID uuid.UUID, name *string, description string, address *string, ownUUID uuid.UUID, allowHTTP bool) (schema.Component, error) {
	if componentUUID == uuid.Nil {
		return schema.Component{}, ErrInvalidComponentUUID
	}
	if componentUUID == ownUUID {
		return schema.Component{}, fmt.Errorf("%w: UUID is used by this deployment", ErrComponentAlreadyExists)
	}
	if name != nil && (len(*name) > 100 || strings.TrimSpace(*name) == "") {
		return schema.Component{}, ErrInvalidComponentName
	}
	if address != nil {
		if err := validateAddress(*address, allowHTTP); err != nil {
			return schema.Component{}, err
		}
	}

	component := schema.Component{
		UUID:         componentUUID,
		Name:         name,
		Description:  description,
		Address:      address,
		Discoverable: true,
	}

	err := db.Transaction(func(txn *gorm.DB) error {
		if err := checkUniqueness(txn, componentUUID, name, 0); err != nil {
			return err
		}
		result := txn.Create(&component)
		if result.Error != nil {
			slog.Error("sql error creating component", "uuid", componentUUID, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
	if err != nil {
		return schema.Component{}, err
	}

	return component, nil
}

// UpdateComponent updates the human-managed attributes of a peer. The UUID is
// immutable.
func UpdateComponent(db *gorm.DB, componentId int, name *string, description string, address *string, allowHTTP bool) error {
	if name != nil && (len(*name) > 100 || strings.TrimSpace(*name) == "") {
		return ErrInvalidComponentName
	}
	if address != nil {
		if err := validateAddress(*address, allowHTTP); err != nil {
			return err
		}
	}

	return db.Transaction(func(txn *gorm.DB) error {
		component, err := schema.GetComponent(componentId, txn)
		if err != nil {
			return err
		}

		if err := checkUniqueness(txn, component.UUID, name, component.Id); err != nil {
			return err
		}

		component.Name = name
		component.Description = description
		component.Address = address

		result := txn.Save(&component)
		if result.Error != nil {
			slog.Error("sql error updating component", "component_id", componentId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
}

// GetOrCreateComponentId resolves a component UUID to its local id, creating
// a passively discovered component record on first reference.
func GetOrCreateComponentId(txn *gorm.DB, componentUUID uuid.UUID) (int, error) {
	component, err := schema.GetComponentByUUID(componentUUID, txn)
	if err == nil {
		return component.Id, nil
	}
	if !errors.Is(err, schema.ErrComponentNotFound) {
		return 0, err
	}

	component = schema.Component{UUID: componentUUID, Discoverable: false}
	result := txn.Create(&component)
	if result.Error != nil {
		slog.Error("sql error auto-registering component", "uuid", componentUUID, "error", result.Error)
		return 0, schema.ErrDbAccessFailed
	}

	slog.Info("auto-registered component on first reference", "uuid", componentUUID, "component_id", component.Id)
	return component.Id, nil
}

func CheckComponentExists(db *gorm.DB, componentId int) error {
	_, err := schema.GetComponent(componentId, db)
	return err
}

// ListComponents returns all registered peers.
func ListComponents(db *gorm.DB) ([]schema.Component, error) {
	var components []schema.Component
	result := db.Order("id").Find(&components)
	if result.Error != nil {
		slog.Error("sql error listing components", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return components, nil
}
