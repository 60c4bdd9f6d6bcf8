package merge

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/export"
	"github.com/Sayeeda346/sampledb/federation/fedlogs"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	importer *Importer
	ownUUID  uuid.UUID
	source   schema.Component
}

func strPtr(s string) *string { return &s }

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}

	ownUUID := uuid.New()
	source := schema.Component{UUID: uuid.New(), Name: strPtr("Peer A")}
	if err := db.Create(&source).Error; err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		db:       db,
		importer: NewImporter(db, ownUUID, []string{"en", "de"}, 5*time.Minute),
		ownUUID:  ownUUID,
		source:   source,
	}
}

func (e *testEnv) actionDoc() map[string]interface{} {
	return map[string]interface{}{
		"action_id":      21,
		"component_uuid": e.source.UUID.String(),
		"action_type": map[string]interface{}{
			"action_type_id": 3,
			"component_uuid": e.source.UUID.String(),
		},
		"user": map[string]interface{}{
			"user_id":        11,
			"component_uuid": e.source.UUID.String(),
		},
		"schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name": map[string]interface{}{"type": "text", "title": "Name"},
			},
		},
		"is_hidden": true,
		"translations": map[string]interface{}{
			"en": map[string]interface{}{"name": "Measure Sample", "description": "measures a sample"},
			"fr": map[string]interface{}{"name": "Mesurer"},
		},
	}
}

func TestImportActionCreatesShadowAndPlaceholders(t *testing.T) {
	env := setupTestEnv(t)

	action, err := env.importer.ParseImportAction(env.actionDoc(), env.source)
	if err != nil {
		t.Fatal(err)
	}

	if action.FedId == nil || *action.FedId != 21 || action.ComponentId == nil {
		t.Fatalf("bad shadow identity %+v", action)
	}
	if !action.IsHidden {
		t.Fatal("is_hidden not applied")
	}

	// Referenced type and user were unknown, so placeholders now exist.
	actionType, err := schema.GetFedActionType(3, *action.ComponentId, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if action.TypeId == nil || *action.TypeId != actionType.Id {
		t.Fatal("action not linked to the placeholder type")
	}
	user, err := schema.GetFedUser(11, *action.ComponentId, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if user.Name != nil {
		t.Fatal("placeholder user must carry no profile data")
	}

	entries, err := fedlogs.EntriesFor(env.db, fedlogs.EntityUser, user.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Type != fedlogs.EventCreateRef {
		t.Fatalf("expected a create_ref entry, got %+v", entries)
	}

	var translations []schema.ActionTranslation
	if err := env.db.Find(&translations, "action_id = ?", action.Id).Error; err != nil {
		t.Fatal(err)
	}
	if len(translations) != 1 || translations[0].LangCode != "en" {
		t.Fatalf("unknown languages must be dropped, got %+v", translations)
	}
}

func TestImportActionIdempotent(t *testing.T) {
	env := setupTestEnv(t)

	first, err := env.importer.ParseImportAction(env.actionDoc(), env.source)
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.importer.ParseImportAction(env.actionDoc(), env.source)
	if err != nil {
		t.Fatal(err)
	}
	if first.Id != second.Id {
		t.Fatalf("reimport created a new row: %d vs %d", first.Id, second.Id)
	}

	entries, err := fedlogs.EntriesFor(env.db, fedlogs.EntityAction, first.Id)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Type == fedlogs.EventUpdate {
			t.Fatal("identical reimport must not produce an update event")
		}
	}

	var count int64
	if err := env.db.Model(&schema.Action{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 action, got %d", count)
	}
}

func TestImportActionUpdate(t *testing.T) {
	env := setupTestEnv(t)

	first, err := env.importer.ParseImportAction(env.actionDoc(), env.source)
	if err != nil {
		t.Fatal(err)
	}

	doc := env.actionDoc()
	doc["is_hidden"] = false
	second, err := env.importer.ParseImportAction(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if second.Id != first.Id || second.IsHidden {
		t.Fatalf("update not applied: %+v", second)
	}

	entries, err := fedlogs.EntriesFor(env.db, fedlogs.EntityAction, first.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 || entries[0].Type != fedlogs.EventUpdate {
		t.Fatalf("expected an update entry, got %+v", entries)
	}
}

func TestImportRejectsOwnData(t *testing.T) {
	env := setupTestEnv(t)

	doc := env.actionDoc()
	doc["component_uuid"] = env.ownUUID.String()
	if _, err := env.importer.ParseImportAction(doc, env.source); !errors.Is(err, wire.ErrInvalidDataExport) {
		t.Fatalf("own action must be rejected, got %v", err)
	}

	userDoc := map[string]interface{}{"user_id": 1, "component_uuid": env.ownUUID.String()}
	if _, err := env.importer.ParseImportUser(userDoc, env.source); !errors.Is(err, wire.ErrInvalidDataExport) {
		t.Fatalf("own user must be rejected, got %v", err)
	}

	objectDoc := map[string]interface{}{"object_id": 1, "version_id": 0, "component_uuid": env.ownUUID.String()}
	if _, err := env.importer.ParseImportObject(objectDoc, env.source); !errors.Is(err, wire.ErrInvalidDataExport) {
		t.Fatalf("own object must be rejected, got %v", err)
	}
}

func TestImportOwnRefsResolveLocally(t *testing.T) {
	env := setupTestEnv(t)

	localUser := schema.User{Name: strPtr("Jane Doe")}
	if err := env.db.Create(&localUser).Error; err != nil {
		t.Fatal(err)
	}

	doc := env.actionDoc()
	doc["user"] = map[string]interface{}{
		"user_id":        localUser.Id,
		"component_uuid": env.ownUUID.String(),
	}
	action, err := env.importer.ParseImportAction(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if action.UserId == nil || *action.UserId != localUser.Id {
		t.Fatalf("own-UUID ref must resolve to the local user, got %v", action.UserId)
	}

	var count int64
	if err := env.db.Model(&schema.User{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatal("no shadow user may be created for an own-UUID ref")
	}
}

func TestImportUserUpdate(t *testing.T) {
	env := setupTestEnv(t)

	doc := map[string]interface{}{
		"user_id":        7,
		"component_uuid": env.source.UUID.String(),
		"name":           "J. D.",
	}
	user, err := env.importer.ParseImportUser(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if user.Name == nil || *user.Name != "J. D." {
		t.Fatalf("name not imported: %+v", user)
	}

	doc["name"] = "Jane Doe"
	doc["email"] = "jane@example.org"
	updated, err := env.importer.ParseImportUser(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Id != user.Id || updated.Name == nil || *updated.Name != "Jane Doe" || updated.Email == nil {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestImportObject(t *testing.T) {
	env := setupTestEnv(t)

	doc := map[string]interface{}{
		"object_id":      42,
		"version_id":     0,
		"component_uuid": env.source.UUID.String(),
		"action": map[string]interface{}{
			"action_id":      21,
			"component_uuid": env.source.UUID.String(),
		},
		"data": map[string]interface{}{
			"name": map[string]interface{}{"_type": "text", "text": "Sample 42"},
		},
		"schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name": map[string]interface{}{"type": "text", "title": "Name"},
			},
		},
	}

	object, err := env.importer.ParseImportObject(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if object.FedObjectId == nil || *object.FedObjectId != 42 || object.VersionId != 0 {
		t.Fatalf("bad shadow object %+v", object)
	}
	if object.ActionId == nil {
		t.Fatal("action placeholder should be linked")
	}

	// A new version replaces the stored one.
	doc2 := map[string]interface{}{
		"object_id":      42,
		"version_id":     1,
		"component_uuid": env.source.UUID.String(),
		"data": map[string]interface{}{
			"name": map[string]interface{}{"_type": "text", "text": "Sample 42 v2"},
		},
	}
	updated, err := env.importer.ParseImportObject(doc2, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Id != object.Id || updated.VersionId != 1 {
		t.Fatalf("version not updated: %+v", updated)
	}

	var count int64
	if err := env.db.Model(&schema.Object{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 object, got %d", count)
	}
}

func TestImportObjectSchemaTemplate(t *testing.T) {
	env := setupTestEnv(t)

	doc := map[string]interface{}{
		"object_id":      43,
		"version_id":     0,
		"component_uuid": env.source.UUID.String(),
		"schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sub": map[string]interface{}{
					"type": "object",
					"template": map[string]interface{}{
						"action_id":      99,
						"component_uuid": env.source.UUID.String(),
					},
				},
			},
		},
	}

	object, err := env.importer.ParseImportObject(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}

	componentId, err := components.GetOrCreateComponentId(env.db, env.source.UUID)
	if err != nil {
		t.Fatal(err)
	}
	template, err := schema.GetFedAction(99, componentId, env.db)
	if err != nil {
		t.Fatalf("template placeholder was not created: %v", err)
	}

	if object.Schema == nil {
		t.Fatal("schema missing")
	}
	stored := *object.Schema
	want := `"template":` + strconv.Itoa(template.Id)
	if !strings.Contains(stored, want) {
		t.Fatalf("template pair should be replaced with the local id, schema: %s", stored)
	}
}

func TestImportLocationHierarchy(t *testing.T) {
	env := setupTestEnv(t)

	doc := map[string]interface{}{
		"location_id":    5,
		"component_uuid": env.source.UUID.String(),
		"name":           map[string]interface{}{"en": "Lab 1", "fr": "Labo 1"},
		"parent_location": map[string]interface{}{
			"location_id":    4,
			"component_uuid": env.source.UUID.String(),
		},
	}
	location, err := env.importer.ParseImportLocation(doc, env.source)
	if err != nil {
		t.Fatal(err)
	}
	if location.ParentLocationId == nil {
		t.Fatal("parent placeholder should be linked")
	}
	parent, err := schema.GetLocation(*location.ParentLocationId, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if parent.FedId == nil || *parent.FedId != 4 {
		t.Fatalf("bad parent placeholder %+v", parent)
	}
	if location.Name == nil || strings.Contains(*location.Name, "fr") {
		t.Fatalf("unknown languages must be dropped from the name, got %v", location.Name)
	}
}

func TestImportPayloadHeaderChecks(t *testing.T) {
	env := setupTestEnv(t)

	valid := func() map[string]interface{} {
		return map[string]interface{}{
			"header": map[string]interface{}{
				"db_uuid": env.source.UUID.String(),
				"protocol_version": map[string]interface{}{
					"major": export.ProtocolVersionMajor,
					"minor": export.ProtocolVersionMinor,
				},
				"sync_timestamp": time.Now().UTC().Format(wire.TimestampFormat),
			},
		}
	}

	if err := env.importer.ImportPayload(valid(), env.source); err != nil {
		t.Fatal(err)
	}

	component, err := schema.GetComponent(env.source.Id, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if component.LastSyncTimestamp == nil {
		t.Fatal("last sync timestamp should be recorded")
	}

	doc := valid()
	doc["header"].(map[string]interface{})["db_uuid"] = uuid.New().String()
	if err := env.importer.ImportPayload(doc, env.source); !errors.Is(err, wire.ErrInvalidDataExport) {
		t.Fatalf("mismatched origin must be rejected, got %v", err)
	}

	doc = valid()
	doc["header"].(map[string]interface{})["target_uuid"] = uuid.New().String()
	if err := env.importer.ImportPayload(doc, env.source); !errors.Is(err, wire.ErrInvalidDataExport) {
		t.Fatalf("wrong target must be rejected, got %v", err)
	}

	doc = valid()
	doc["header"].(map[string]interface{})["protocol_version"].(map[string]interface{})["major"] = export.ProtocolVersionMajor + 1
	if err := env.importer.ImportPayload(doc, env.source); !errors.Is(err, ErrUnsupportedProtocolVersion) {
		t.Fatalf("unsupported protocol version must be rejected, got %v", err)
	}
}

func TestImportMarkdownImages(t *testing.T) {
	env := setupTestEnv(t)

	doc := map[string]interface{}{
		"header": map[string]interface{}{
			"db_uuid": env.source.UUID.String(),
			"protocol_version": map[string]interface{}{
				"major": 0,
				"minor": 1,
			},
		},
		"markdown_images": map[string]interface{}{
			"plot.png": base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		},
	}
	if err := env.importer.ImportPayload(doc, env.source); err != nil {
		t.Fatal(err)
	}

	image, err := schema.GetMarkdownImage("plot.png", env.source.Id, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if string(image.Content) != "png-bytes" {
		t.Fatalf("bad image content %q", image.Content)
	}

	// A second import must not overwrite the stored blob.
	doc["markdown_images"].(map[string]interface{})["plot.png"] = base64.StdEncoding.EncodeToString([]byte("other-bytes"))
	if err := env.importer.ImportPayload(doc, env.source); err != nil {
		t.Fatal(err)
	}
	image, err = schema.GetMarkdownImage("plot.png", env.source.Id, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if string(image.Content) != "png-bytes" {
		t.Fatal("existing image was overwritten")
	}
}

func TestImportUpdates(t *testing.T) {
	env := setupTestEnv(t)

	token := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"header": {
				"db_uuid": "` + env.source.UUID.String() + `",
				"protocol_version": {"major": 0, "minor": 1}
			},
			"users": [{"user_id": 7, "component_uuid": "` + env.source.UUID.String() + `", "name": "Jane Doe"}]
		}`))
	}))
	defer server.Close()

	address := server.URL
	if err := env.db.Model(&schema.Component{}).Where("id = ?", env.source.Id).Update("address", address).Error; err != nil {
		t.Fatal(err)
	}
	if err := components.AddOwnTokenAuthentication(env.db, env.source.Id, token, "test"); err != nil {
		t.Fatal(err)
	}
	env.source.Address = &address

	if err := env.importer.ImportUpdates(context.Background(), env.source, false); err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer "+token {
		t.Fatalf("bad authorization header %q", gotAuth)
	}

	componentId, err := components.GetOrCreateComponentId(env.db, env.source.UUID)
	if err != nil {
		t.Fatal(err)
	}
	user, err := schema.GetFedUser(7, componentId, env.db)
	if err != nil {
		t.Fatal(err)
	}
	if user.Name == nil || *user.Name != "Jane Doe" {
		t.Fatalf("user not imported: %+v", user)
	}
}

func TestImportUpdatesErrors(t *testing.T) {
	env := setupTestEnv(t)

	if err := env.importer.ImportUpdates(context.Background(), env.source, false); !errors.Is(err, ErrMissingComponentAddress) {
		t.Fatalf("missing address should fail, got %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	address := server.URL
	env.source.Address = &address
	if err := env.importer.ImportUpdates(context.Background(), env.source, false); !errors.Is(err, components.ErrNoAuthenticationMethod) {
		t.Fatalf("missing token should fail, got %v", err)
	}

	token := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if err := components.AddOwnTokenAuthentication(env.db, env.source.Id, token, "test"); err != nil {
		t.Fatal(err)
	}
	if err := env.importer.ImportUpdates(context.Background(), env.source, false); !errors.Is(err, ErrUnauthorizedRequest) {
		t.Fatalf("401 should map to ErrUnauthorizedRequest, got %v", err)
	}
}
