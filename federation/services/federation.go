package services

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/export"
	"github.com/Sayeeda346/sampledb/federation/merge"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"
	"github.com/Sayeeda346/sampledb/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// FederationService serves the peer-facing sync endpoints and the admin
// sync trigger.
type FederationService struct {
	db        *gorm.DB
	importer  *merge.Importer
	userAuth  *auth.BasicIdentityProvider
	variables Variables
}

func (s *FederationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.PeerAuthenticator(s.db))

		r.Get("/shares/objects/", s.ExportObjects)
		r.Post("/hooks/update/", s.UpdateHook)
	})

	r.Get("/markdown_images/{component_uuid}/{file_name}", s.MarkdownImage)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly)

		r.Post("/components/{component_id}/sync", s.Sync)
	})

	return r
}

// ExportObjects serves the export document for the authenticated peer.
func (s *FederationService) ExportObjects(w http.ResponseWriter, r *http.Request) {
	peer, err := auth.PeerFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload, err := export.BuildPayload(s.db, s.variables.OwnUUID, peer, s.variables.Languages)
	if err != nil {
		slog.Error("error building export document", "peer", peer.GetName(), "error", err)
		http.Error(w, "error building export document", http.StatusInternalServerError)
		return
	}

	if err := export.MarkSharesSynced(s.db, peer.Id, time.Now()); err != nil {
		http.Error(w, "error recording sync", http.StatusInternalServerError)
		return
	}

	exportRequestsMetric.Inc()
	exportedEntities.Add(float64(len(payload.Actions) + len(payload.Users) + len(payload.Instruments) +
		len(payload.Locations) + len(payload.Objects) + len(payload.ActionTypes)))

	utils.WriteJsonResponse(w, payload)
}

// knownFederationError reports whether an import failure is one of the
// expected federation error kinds rather than an unexpected fault.
func knownFederationError(err error) bool {
	return errors.Is(err, wire.ErrInvalidDataExport) ||
		errors.Is(err, merge.ErrMissingComponentAddress) ||
		errors.Is(err, merge.ErrUnauthorizedRequest) ||
		errors.Is(err, merge.ErrRequestServer) ||
		errors.Is(err, merge.ErrRequest) ||
		errors.Is(err, merge.ErrUnsupportedProtocolVersion) ||
		errors.Is(err, components.ErrNoAuthenticationMethod)
}

// UpdateHook is the best-effort "there may be updates" poke from a peer. It
// triggers a pull and deliberately swallows the known federation error
// kinds; a failed hook only means the next sync will try again.
func (s *FederationService) UpdateHook(w http.ResponseWriter, r *http.Request) {
	peer, err := auth.PeerFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updateHooksMetric.Inc()

	if err := s.importer.ImportUpdates(r.Context(), peer, false); err != nil {
		if !knownFederationError(err) {
			slog.Error("unexpected error during hook-triggered import", "peer", peer.GetName(), "error", err)
			http.Error(w, "error importing updates", http.StatusInternalServerError)
			return
		}
		slog.Info("hook-triggered import failed", "peer", peer.GetName(), "error", err)
		importFailuresMetric.Inc()
	} else {
		importPassesMetric.Inc()
	}

	utils.WriteSuccess(w)
}

// Sync runs one interactive import pass against a configured peer. Unlike
// the update hook, every error kind is surfaced to the caller.
func (s *FederationService) Sync(w http.ResponseWriter, r *http.Request) {
	componentId, err := utils.URLParamInt(r, "component_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	component, err := schema.GetComponent(componentId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrComponentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ignoreLastSyncTime := r.URL.Query().Get("ignore_last_sync_time") == "true"

	if err := s.importer.ImportUpdates(r.Context(), component, ignoreLastSyncTime); err != nil {
		importFailuresMetric.Inc()
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, wire.ErrInvalidDataExport), errors.Is(err, merge.ErrUnsupportedProtocolVersion):
			responseCode = http.StatusBadGateway
		case errors.Is(err, merge.ErrMissingComponentAddress), errors.Is(err, components.ErrNoAuthenticationMethod):
			responseCode = http.StatusConflict
		case errors.Is(err, merge.ErrUnauthorizedRequest):
			responseCode = http.StatusUnauthorized
		case errors.Is(err, merge.ErrRequestServer), errors.Is(err, merge.ErrRequest):
			responseCode = http.StatusBadGateway
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	importPassesMetric.Inc()
	utils.WriteSuccess(w)
}

// MarkdownImage serves an image blob referenced from exported markdown. The
// component UUID in the path distinguishes local uploads from imported
// blobs.
func (s *FederationService) MarkdownImage(w http.ResponseWriter, r *http.Request) {
	componentUUID, err := utils.URLParamUUID(r, "component_uuid")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fileName, err := utils.URLParam(r, "file_name")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	componentId := 0
	if componentUUID != s.variables.OwnUUID {
		component, err := schema.GetComponentByUUID(componentUUID, s.db)
		if err != nil {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		componentId = component.Id
	}

	image, err := schema.GetMarkdownImage(fileName, componentId, s.db)
	if err != nil {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(image.Content))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(image.Content); err != nil {
		slog.Error("error writing markdown image response", "file_name", fileName, "error", err)
	}
}
