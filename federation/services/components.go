package services

import (
	"errors"
	"net/http"
	"time"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ComponentService manages the component registry: which peers this
// deployment knows, their addresses and the tokens used in either direction.
type ComponentService struct {
	db        *gorm.DB
	userAuth  *auth.BasicIdentityProvider
	variables Variables
}

func (s *ComponentService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
		r.Get("/{component_id}", s.Info)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly)

		r.Post("/create", s.Create)
		r.Post("/{component_id}/update", s.Update)

		r.Post("/{component_id}/tokens/export", s.AddExportToken)
		r.Post("/{component_id}/tokens/import", s.AddImportToken)
	})

	return r
}

func componentResponseCode(err error) int {
	switch {
	case errors.Is(err, schema.ErrComponentNotFound):
		return http.StatusNotFound
	case errors.Is(err, components.ErrComponentAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, components.ErrInvalidComponentUUID),
		errors.Is(err, components.ErrInvalidComponentName),
		errors.Is(err, components.ErrInvalidComponentAddress),
		errors.Is(err, components.ErrInsecureComponentAddress),
		errors.Is(err, components.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, components.ErrTokenExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type componentInfo struct {
	Id                int        `json:"component_id"`
	UUID              uuid.UUID  `json:"uuid"`
	Name              *string    `json:"name"`
	Description       string     `json:"description"`
	Address           *string    `json:"address"`
	Discoverable      bool       `json:"discoverable"`
	LastSyncTimestamp *time.Time `json:"last_sync_timestamp"`
}

func toComponentInfo(component schema.Component) componentInfo {
	return componentInfo{
		Id:                component.Id,
		UUID:              component.UUID,
		Name:              component.Name,
		Description:       component.Description,
		Address:           component.Address,
		Discoverable:      component.Discoverable,
		LastSyncTimestamp: component.LastSyncTimestamp,
	}
}

func (s *ComponentService) List(w http.ResponseWriter, r *http.Request) {
	list, err := components.ListComponents(s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	infos := make([]componentInfo, 0, len(list))
	for _, component := range list {
		infos = append(infos, toComponentInfo(component))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *ComponentService) Info(w http.ResponseWriter, r *http.Request) {
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	component, err := schema.GetComponent(componentId, s.db)
	if err != nil {
		http.Error(w, err.Error(), componentResponseCode(err))
		return
	}
	utils.WriteJsonResponse(w, toComponentInfo(component))
}

type createComponentRequest struct {
	UUID        uuid.UUID `json:"uuid"`
	Name        *string   `json:"name"`
	Description string    `json:"description"`
	Address     *string   `json:"address"`
}

func (s *ComponentService) Create(w http.ResponseWriter, r *http.Request) {
	var params createComponentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	component, err := components.AddComponent(s.db, params.UUID, params.Name, params.Description, params.Address, s.variables.OwnUUID, s.variables.AllowHTTP)
	if err != nil {
		http.Error(w, err.Error(), componentResponseCode(err))
		return
	}
	utils.WriteJsonResponse(w, toComponentInfo(component))
}

type updateComponentRequest struct {
	Name        *string `json:"name"`
	Description string  `json:"description"`
	Address     *string `json:"address"`
}

func (s *ComponentService) Update(w http.ResponseWriter, r *http.Request) {
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var params updateComponentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := components.UpdateComponent(s.db, componentId, params.Name, params.Description, params.Address, s.variables.AllowHTTP); err != nil {
		http.Error(w, err.Error(), componentResponseCode(err))
		return
	}
	utils.WriteSuccess(w)
}

type tokenRequest struct {
	Token       string `json:"token"`
	Description string `json:"description"`
}

// AddExportToken registers a token a peer will use to authenticate to this
// deployment.
func (s *ComponentService) AddExportToken(w http.ResponseWriter, r *http.Request) {
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var params tokenRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := components.AddTokenAuthentication(s.db, componentId, params.Token, params.Description); err != nil {
		http.Error(w, err.Error(), componentResponseCode(err))
		return
	}
	utils.WriteSuccess(w)
}

// AddImportToken stores the token this deployment uses to authenticate to a
// peer when pulling updates.
func (s *ComponentService) AddImportToken(w http.ResponseWriter, r *http.Request) {
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var params tokenRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := components.AddOwnTokenAuthentication(s.db, componentId, params.Token, params.Description); err != nil {
		http.Error(w, err.Error(), componentResponseCode(err))
		return
	}
	utils.WriteSuccess(w)
}
