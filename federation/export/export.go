// Package export builds the federation export document for a requesting
// peer: per-entity preprocessors serialize local entities into their wire
// form while a worklist discovers every transitively referenced entity
// exactly once.
package export

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind enumerates the entity kinds a worklist reference can point at. The
// set is closed so the dispatch switch is exhaustive.
type Kind int

const (
	KindAction Kind = iota
	KindActionType
	KindInstrument
	KindLocation
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindActionType:
		return "action_type"
	case KindInstrument:
		return "instrument"
	case KindLocation:
		return "location"
	case KindUser:
		return "user"
	}
	return "unknown"
}

// Ref is one pending cross-entity reference on the worklist.
type Ref struct {
	Kind Kind
	Id   int
}

// Context threads the worklist state through the preprocessors: the pending
// reference list, the per-kind processed-id sets and the deduplicating
// markdown image map.
type Context struct {
	db      *gorm.DB
	ownUUID uuid.UUID
	target  schema.Component

	languages map[string]struct{}

	refs      []Ref
	processed map[Kind]map[int]struct{}

	markdownImages map[string]string

	componentUUIDs map[int]uuid.UUID
}

func NewContext(db *gorm.DB, ownUUID uuid.UUID, target schema.Component, languages []string) *Context {
	langSet := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		langSet[strings.ToLower(lang)] = struct{}{}
	}
	return &Context{
		db:             db,
		ownUUID:        ownUUID,
		target:         target,
		languages:      langSet,
		processed:      make(map[Kind]map[int]struct{}),
		markdownImages: make(map[string]string),
		componentUUIDs: make(map[int]uuid.UUID),
	}
}

func (c *Context) knownLanguage(langCode string) bool {
	_, ok := c.languages[strings.ToLower(langCode)]
	return ok
}

// addRef appends a reference unless it is already pending or processed.
func (c *Context) addRef(kind Kind, id int) {
	if _, done := c.processed[kind][id]; done {
		return
	}
	for _, ref := range c.refs {
		if ref.Kind == kind && ref.Id == id {
			return
		}
	}
	c.refs = append(c.refs, Ref{Kind: kind, Id: id})
}

// markProcessed records an id as handled. It returns false if the id was
// already processed. A reference is marked before its preprocessor runs so
// nested preprocessing cannot re-add the same id.
func (c *Context) markProcessed(kind Kind, id int) bool {
	ids, ok := c.processed[kind]
	if !ok {
		ids = make(map[int]struct{})
		c.processed[kind] = ids
	}
	if _, done := ids[id]; done {
		return false
	}
	ids[id] = struct{}{}
	return true
}

// componentUUID resolves a local component id to its UUID, caching lookups
// for the duration of one export pass.
func (c *Context) componentUUID(componentId int) (uuid.UUID, error) {
	if u, ok := c.componentUUIDs[componentId]; ok {
		return u, nil
	}
	component, err := schema.GetComponent(componentId, c.db)
	if err != nil {
		return uuid.UUID{}, err
	}
	c.componentUUIDs[componentId] = component.UUID
	return component.UUID, nil
}

func decodeJSONDoc(doc *string) (map[string]interface{}, error) {
	if doc == nil {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(*doc))
	dec.UseNumber()
	var parsed map[string]interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// BuildPayload computes the export document for the target component: every
// shared object is preprocessed, then the worklist is drained until the
// reference closure is complete. Since each id is processed at most once and
// the local graph is finite, the loop terminates.
func BuildPayload(db *gorm.DB, ownUUID uuid.UUID, target schema.Component, languages []string) (*Payload, error) {
	shares, err := schema.GetSharesForComponent(target.Id, db)
	if err != nil {
		return nil, err
	}

	c := NewContext(db, ownUUID, target, languages)

	payload := &Payload{
		Header: Header{
			DbUUID:          ownUUID.String(),
			TargetUUID:      target.UUID.String(),
			ProtocolVersion: ProtocolVersion{Major: ProtocolVersionMajor, Minor: ProtocolVersionMinor},
			SyncTimestamp:   time.Now().UTC().Format(wire.TimestampFormat),
		},
		Actions:     []ActionData{},
		Users:       []UserData{},
		Instruments: []InstrumentData{},
		Locations:   []LocationData{},
		Objects:     []ObjectData{},
		ActionTypes: []ActionTypeData{},
	}

	for _, share := range shares {
		object, err := c.preprocessObject(share)
		if err != nil {
			return nil, err
		}
		if object != nil {
			payload.Objects = append(payload.Objects, *object)
		}
	}

	for len(c.refs) > 0 {
		ref := c.refs[len(c.refs)-1]
		c.refs = c.refs[:len(c.refs)-1]

		if !c.markProcessed(ref.Kind, ref.Id) {
			continue
		}

		switch ref.Kind {
		case KindAction:
			action, err := c.preprocessAction(ref.Id)
			if err != nil {
				return nil, err
			}
			if action != nil {
				payload.Actions = append(payload.Actions, *action)
			}
		case KindActionType:
			actionType, err := c.preprocessActionType(ref.Id)
			if err != nil {
				return nil, err
			}
			if actionType != nil {
				payload.ActionTypes = append(payload.ActionTypes, *actionType)
			}
		case KindInstrument:
			instrument, err := c.preprocessInstrument(ref.Id)
			if err != nil {
				return nil, err
			}
			if instrument != nil {
				payload.Instruments = append(payload.Instruments, *instrument)
			}
		case KindLocation:
			location, err := c.preprocessLocation(ref.Id)
			if err != nil {
				return nil, err
			}
			if location != nil {
				payload.Locations = append(payload.Locations, *location)
			}
		case KindUser:
			user, err := c.preprocessUser(ref.Id)
			if err != nil {
				return nil, err
			}
			if user != nil {
				payload.Users = append(payload.Users, *user)
			}
		default:
			// unknown kinds are a forward-compatibility allowance
			slog.Warn("skipping reference of unknown kind", "kind", int(ref.Kind), "id", ref.Id)
		}
	}

	payload.MarkdownImages = c.markdownImages

	return payload, nil
}

// MarkSharesSynced stamps every share held by the component with the time of
// a successfully served export.
func MarkSharesSynced(db *gorm.DB, componentId int, at time.Time) error {
	result := db.Model(&schema.ObjectShare{}).Where("component_id = ?", componentId).Update("utc_datetime", at.UTC())
	if result.Error != nil {
		slog.Error("sql error updating share sync timestamps", "component_id", componentId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}
