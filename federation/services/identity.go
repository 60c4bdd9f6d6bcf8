package services

import (
	"errors"
	"net/http"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/federation/identity"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// stateCookie carries the linking nonce between the redirect and the
// completion request of the handshake.
const stateCookie = "fim_state"

// IdentityService exposes the identity linking handshake and the per-peer
// alias settings.
type IdentityService struct {
	db       *gorm.DB
	linker   *identity.Linker
	userAuth *auth.BasicIdentityProvider
}

func (s *IdentityService) Routes() chi.Router {
	r := chi.NewRouter()

	// peers call this without authentication to decode validation tokens
	r.Get("/validate", s.Validate)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/link/{component_id}", s.StartLink)
		r.Post("/confirm", s.Confirm)
		r.Post("/complete/{component_id}", s.Complete)

		r.Get("/list", s.List)
		r.Post("/{fed_id}/revoke", s.Revoke)
		r.Post("/{fed_id}/enable", s.Enable)
		r.Delete("/{fed_id}", s.Delete)

		r.Get("/aliases", s.ListAliases)
		r.Put("/aliases/{component_id}", s.SetAlias)
		r.Delete("/aliases/{component_id}", s.DeleteAlias)
	})

	return r
}

// Validate decodes a validation token this deployment issued, returning the
// {fed_user, token} pair or 400 on a bad or expired signature.
func (s *IdentityService) Validate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token query parameter", http.StatusBadRequest)
		return
	}
	result, err := s.linker.ValidateToken(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	utils.WriteJsonResponse(w, result)
}

type startLinkResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// StartLink issues the linking token and stores the session nonce in a
// cookie; the caller follows the returned redirect to the peer.
func (s *IdentityService) StartLink(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	component, err := schema.GetComponent(componentId, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	redirectURL, nonce, err := s.linker.StartLink(component, user.Id)
	if err != nil {
		if errors.Is(err, identity.ErrMissingComponentAddress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    nonce,
		Path:     "/",
		MaxAge:   int(identity.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteJsonResponse(w, startLinkResponse{RedirectURL: redirectURL})
}

type confirmRequest struct {
	Token string `json:"token"`
}

type confirmResponse struct {
	Token string `json:"token"`
}

// Confirm runs on the confirming side: the logged-in user accepts the link
// request and receives the validation token to carry back to the peer.
func (s *IdentityService) Confirm(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var params confirmRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	token, err := s.linker.ConfirmLink(user.Id, params.Token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, confirmResponse{Token: token})
}

type completeRequest struct {
	Token string `json:"token"`
}

// Complete finishes the handshake on the initiating side, verifying the
// nonce against the session cookie before creating the link.
func (s *IdentityService) Complete(w http.ResponseWriter, r *http.Request) {
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	component, err := schema.GetComponent(componentId, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	var params completeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "missing link state", http.StatusBadRequest)
		return
	}

	_, err = s.linker.CompleteLink(r.Context(), component, params.Token, cookie.Value)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrNonceMismatch):
			responseCode = http.StatusBadRequest
		case errors.Is(err, identity.ErrFederatedUserInFederatedIdentity):
			responseCode = http.StatusConflict
		case errors.Is(err, identity.ErrPeerValidationFailed):
			responseCode = http.StatusBadGateway
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	// the nonce is single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})
	utils.WriteSuccess(w)
}

type identityInfo struct {
	LocalFedId  int     `json:"local_fed_id"`
	FedId       *int    `json:"fed_id"`
	ComponentId *int    `json:"component_id"`
	Name        *string `json:"name"`
	Active      bool    `json:"active"`
}

func (s *IdentityService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	identities, err := identity.GetFederatedIdentities(s.db, user.Id, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	infos := make([]identityInfo, 0, len(identities))
	for _, link := range identities {
		info := identityInfo{LocalFedId: link.LocalFedId, Active: link.Active}
		if link.FedUser != nil {
			info.FedId = link.FedUser.FedId
			info.ComponentId = link.FedUser.ComponentId
			info.Name = link.FedUser.Name
		}
		infos = append(infos, info)
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *IdentityService) updateLink(w http.ResponseWriter, r *http.Request, update func(db *gorm.DB, userId, localFedId int) error) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	localFedId, err := utils.URLParamInt(r, "fed_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := update(s.db, user.Id, localFedId); err != nil {
		if errors.Is(err, schema.ErrFederatedIdentityNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteSuccess(w)
}

func (s *IdentityService) Revoke(w http.ResponseWriter, r *http.Request) {
	s.updateLink(w, r, identity.RevokeFederatedIdentity)
}

func (s *IdentityService) Enable(w http.ResponseWriter, r *http.Request) {
	s.updateLink(w, r, identity.EnableFederatedIdentity)
}

func (s *IdentityService) Delete(w http.ResponseWriter, r *http.Request) {
	s.updateLink(w, r, identity.DeleteFederatedIdentity)
}

type aliasRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Orcid       *string `json:"orcid"`
	Affiliation *string `json:"affiliation"`
	Role        *string `json:"role"`

	UseRealName        bool `json:"use_real_name"`
	UseRealEmail       bool `json:"use_real_email"`
	UseRealOrcid       bool `json:"use_real_orcid"`
	UseRealAffiliation bool `json:"use_real_affiliation"`
	UseRealRole        bool `json:"use_real_role"`
}

func (s *IdentityService) SetAlias(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var params aliasRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	_, err = identity.SetUserAlias(s.db, user.Id, componentId, identity.AliasSettings{
		Name:               params.Name,
		Email:              params.Email,
		Orcid:              params.Orcid,
		Affiliation:        params.Affiliation,
		Role:               params.Role,
		UseRealName:        params.UseRealName,
		UseRealEmail:       params.UseRealEmail,
		UseRealOrcid:       params.UseRealOrcid,
		UseRealAffiliation: params.UseRealAffiliation,
		UseRealRole:        params.UseRealRole,
	})
	if err != nil {
		if errors.Is(err, schema.ErrComponentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteSuccess(w)
}

func (s *IdentityService) ListAliases(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	aliases, err := identity.GetUserAliases(s.db, user.Id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, aliases)
}

func (s *IdentityService) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := identity.DeleteUserAlias(s.db, user.Id, componentId); err != nil {
		if errors.Is(err, schema.ErrUserAliasNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteSuccess(w)
}
