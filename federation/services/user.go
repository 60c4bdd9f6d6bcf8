package services

import (
	"errors"
	"net/http"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth *auth.BasicIdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/info", s.Info)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly)

		r.Post("/create", s.Create)
	})

	return r
}

type loginResponse struct {
	UserId      int    `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth credentials missing from request", http.StatusUnauthorized)
		return
	}

	result, err := s.userAuth.LoginWithEmail(email, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode = http.StatusNotFound
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrFederatedUserLogin):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: result.UserId, AccessToken: result.AccessToken})
}

type userInfo struct {
	UserId      int     `json:"user_id"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Orcid       *string `json:"orcid"`
	Affiliation *string `json:"affiliation"`
	Role        *string `json:"role"`
	IsAdmin     bool    `json:"is_admin"`
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, userInfo{
		UserId:      user.Id,
		Name:        user.Name,
		Email:       user.Email,
		Orcid:       user.Orcid,
		Affiliation: user.Affiliation,
		Role:        user.Role,
		IsAdmin:     user.IsAdmin,
	})
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

type createUserResponse struct {
	UserId int `json:"user_id"`
}

func (s *UserService) Create(w http.ResponseWriter, r *http.Request) {
	var params createUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Email == "" || params.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	userId, err := s.userAuth.CreateUser(params.Name, params.Email, params.Password, params.IsAdmin)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrEmailAlreadyInUse) {
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	utils.WriteJsonResponse(w, createUserResponse{UserId: userId})
}
