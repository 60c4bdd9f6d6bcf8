package merge

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/Sayeeda346/sampledb/federation/export"
	"github.com/Sayeeda346/sampledb/federation/schema"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}
	return db
}

func intPtrOf(i int) *int { return &i }

// Exporting an object from one deployment, importing it into a second and
// re-exporting it from there toward a third must preserve the original
// identity pairs: the second deployment forwards the first deployment's ids
// and uuid, never its own local ids.
func TestRoundTripPreservesIdentityPairs(t *testing.T) {
	dbX := openDb(t)
	uuidX := uuid.New()
	uuidY := uuid.New()

	// deployment X: a local user, action type, action and object, shared
	// with deployment Y
	componentYonX := schema.Component{UUID: uuidY, Name: strPtr("Peer Y")}
	if err := dbX.Create(&componentYonX).Error; err != nil {
		t.Fatal(err)
	}
	userX := schema.User{Name: strPtr("Jane Doe"), Email: strPtr("jane@example.org")}
	if err := dbX.Create(&userX).Error; err != nil {
		t.Fatal(err)
	}
	actionTypeX := schema.ActionType{}
	if err := dbX.Create(&actionTypeX).Error; err != nil {
		t.Fatal(err)
	}
	actionX := schema.Action{
		TypeId: intPtrOf(actionTypeX.Id),
		UserId: intPtrOf(userX.Id),
		Schema: strPtr(`{"title": "Measurement", "type": "object"}`),
	}
	if err := dbX.Create(&actionX).Error; err != nil {
		t.Fatal(err)
	}
	objectX := schema.Object{
		ActionId: intPtrOf(actionX.Id),
		UserId:   intPtrOf(userX.Id),
		Data:     strPtr(`{"name": {"_type": "text", "text": "Sample 1"}}`),
		Schema:   strPtr(`{"title": "Sample", "type": "object"}`),
	}
	if err := dbX.Create(&objectX).Error; err != nil {
		t.Fatal(err)
	}
	share := schema.ObjectShare{
		ObjectId:    objectX.Id,
		ComponentId: componentYonX.Id,
		Policy:      `{}`,
		UTCDatetime: time.Now().UTC(),
	}
	if err := dbX.Create(&share).Error; err != nil {
		t.Fatal(err)
	}

	payloadX, err := export.BuildPayload(dbX, uuidX, componentYonX, []string{"en"})
	if err != nil {
		t.Fatal(err)
	}
	if len(payloadX.Objects) != 1 || len(payloadX.Actions) != 1 || len(payloadX.Users) != 1 || len(payloadX.ActionTypes) != 1 {
		t.Fatalf("unexpected export contents: %d objects, %d actions, %d users, %d action types",
			len(payloadX.Objects), len(payloadX.Actions), len(payloadX.Users), len(payloadX.ActionTypes))
	}

	encoded, err := json.Marshal(payloadX)
	if err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var document map[string]interface{}
	if err := dec.Decode(&document); err != nil {
		t.Fatal(err)
	}

	// deployment Y imports the document
	dbY := openDb(t)
	componentXonY := schema.Component{UUID: uuidX, Name: strPtr("Peer X")}
	if err := dbY.Create(&componentXonY).Error; err != nil {
		t.Fatal(err)
	}
	importer := NewImporter(dbY, uuidY, []string{"en"}, 5*time.Minute)
	if err := importer.ImportPayload(document, componentXonY); err != nil {
		t.Fatal(err)
	}

	shadowObject, err := schema.GetFedObject(objectX.Id, componentXonY.Id, dbY)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := schema.GetFedAction(actionX.Id, componentXonY.Id, dbY); err != nil {
		t.Fatal(err)
	}

	// deployment Y shares the shadow object onward to a third deployment Z
	componentZonY := schema.Component{UUID: uuid.New(), Name: strPtr("Peer Z")}
	if err := dbY.Create(&componentZonY).Error; err != nil {
		t.Fatal(err)
	}
	shareY := schema.ObjectShare{
		ObjectId:    shadowObject.Id,
		ComponentId: componentZonY.Id,
		Policy:      `{}`,
		UTCDatetime: time.Now().UTC(),
	}
	if err := dbY.Create(&shareY).Error; err != nil {
		t.Fatal(err)
	}

	payloadY, err := export.BuildPayload(dbY, uuidY, componentZonY, []string{"en"})
	if err != nil {
		t.Fatal(err)
	}
	if len(payloadY.Objects) != 1 {
		t.Fatalf("expected 1 re-exported object, got %d", len(payloadY.Objects))
	}

	object := payloadY.Objects[0]
	if object.ObjectId != objectX.Id || object.ComponentUUID != uuidX.String() {
		t.Fatalf("object identity drifted: got (%d, %s), want (%d, %s)",
			object.ObjectId, object.ComponentUUID, objectX.Id, uuidX)
	}
	if object.Action == nil || object.Action.ActionId != actionX.Id || object.Action.ComponentUUID != uuidX.String() {
		t.Fatalf("action ref drifted: %+v", object.Action)
	}
	if object.User == nil || object.User.UserId != userX.Id || object.User.ComponentUUID != uuidX.String() {
		t.Fatalf("user ref drifted: %+v", object.User)
	}

	// shadow entities are forwarded as refs only, never re-serialized
	if len(payloadY.Actions) != 0 || len(payloadY.Users) != 0 || len(payloadY.ActionTypes) != 0 {
		t.Fatalf("shadow entities must not be re-exported: %d actions, %d users, %d action types",
			len(payloadY.Actions), len(payloadY.Users), len(payloadY.ActionTypes))
	}
}
