package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

const peerRequestContextKey contextKey = "peer_component"

// PeerAuthenticator authenticates requests from peer components via the
// bearer tokens registered in the component registry.
func PeerAuthenticator(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			component, err := components.GetComponentByToken(db, token)
			if err != nil {
				if errors.Is(err, components.ErrTokenAuth) {
					http.Error(w, "invalid bearer token", http.StatusUnauthorized)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			reqCtx := context.WithValue(r.Context(), peerRequestContextKey, component)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	}
}

// PeerFromContext returns the component authenticated by PeerAuthenticator.
func PeerFromContext(r *http.Request) (schema.Component, error) {
	componentUntyped := r.Context().Value(peerRequestContextKey)
	if componentUntyped == nil {
		return schema.Component{}, errors.New("peer component not found in request context")
	}
	component, ok := componentUntyped.(schema.Component)
	if !ok {
		return schema.Component{}, errors.New("invalid value for peer component field")
	}
	return component, nil
}
