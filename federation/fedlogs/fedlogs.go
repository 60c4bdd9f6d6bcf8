// Package fedlogs writes the persistent audit log of federation imports.
package fedlogs

import (
	"log/slog"
	"time"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

const (
	EventImport    = "import"
	EventUpdate    = "update"
	EventCreateRef = "create_ref"
)

const (
	EntityAction     = "action"
	EntityActionType = "action_type"
	EntityInstrument = "instrument"
	EntityLocation   = "location"
	EntityUser       = "user"
	EntityObject     = "object"
)

// Record appends one audit-log entry for a created, updated or
// placeholder-created shadow entity.
func Record(db *gorm.DB, eventType, entityType string, entityId, componentId int) error {
	entry := schema.FedLogEntry{
		Type:        eventType,
		EntityType:  entityType,
		EntityId:    entityId,
		ComponentId: componentId,
		UTCDatetime: time.Now().UTC(),
	}
	result := db.Create(&entry)
	if result.Error != nil {
		slog.Error("sql error writing fed log entry", "type", eventType, "entity_type", entityType, "entity_id", entityId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// EntriesFor lists audit entries for one shadow entity, newest first.
func EntriesFor(db *gorm.DB, entityType string, entityId int) ([]schema.FedLogEntry, error) {
	var entries []schema.FedLogEntry
	result := db.Order("id DESC").Find(&entries, "entity_type = ? AND entity_id = ?", entityType, entityId)
	if result.Error != nil {
		slog.Error("sql error listing fed log entries", "entity_type", entityType, "entity_id", entityId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return entries, nil
}
