package services

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/federation/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	adminName     = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

type testEnv struct {
	api     chi.Router
	db      *gorm.DB
	ownUUID uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}

	userAuth, err := auth.NewBasicIdentityProvider(db, auth.NewAuditLogger(io.Discard), auth.BasicProviderArgs{
		Secret:        []byte("test-secret"),
		AdminName:     adminName,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	})
	if err != nil {
		t.Fatal(err)
	}

	ownUUID := uuid.New()
	variables := Variables{
		OwnUUID:        ownUUID,
		ServiceName:    "SampleDB Test",
		AllowHTTP:      true,
		Languages:      []string{"en", "de"},
		ValidTimeDelta: 5 * time.Minute,
	}

	sampledb := NewSampleDB(db, userAuth, variables, []byte("test-secret"))

	return &testEnv{api: sampledb.Routes(), db: db, ownUUID: ownUUID}
}

type client struct {
	api   chi.Router
	token string
}

func (e *testEnv) client() *client {
	return &client{api: e.api}
}

func (e *testEnv) adminClient(t *testing.T) *client {
	c := e.client()
	if err := c.login(adminEmail, adminPassword); err != nil {
		t.Fatal(err)
	}
	return c
}

func (c *client) do(method, path string, body interface{}, modify ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, m := range modify {
		m(request)
	}
	recorder := httptest.NewRecorder()
	c.api.ServeHTTP(recorder, request)
	return recorder
}

type loginResult struct {
	UserId      int    `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (c *client) login(email, password string) error {
	response := c.do(http.MethodGet, "/users/login", nil, func(r *http.Request) {
		r.SetBasicAuth(email, password)
	})
	if response.Code != http.StatusOK {
		return errorFromResponse(response)
	}
	var result loginResult
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return err
	}
	c.token = result.AccessToken
	return nil
}

type responseError struct {
	code int
	body string
}

func (e *responseError) Error() string {
	return e.body
}

func errorFromResponse(response *httptest.ResponseRecorder) error {
	return &responseError{code: response.Code, body: response.Body.String()}
}
