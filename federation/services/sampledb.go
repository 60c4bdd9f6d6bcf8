package services

import (
	"log"
	"net/http"
	"os"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/federation/identity"
	"github.com/Sayeeda346/sampledb/federation/merge"
	"github.com/Sayeeda346/sampledb/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SampleDB aggregates the federation services behind one router.
type SampleDB struct {
	user       UserService
	components ComponentService
	federation FederationService
	identity   IdentityService

	db *gorm.DB
}

func NewSampleDB(db *gorm.DB, userAuth *auth.BasicIdentityProvider, variables Variables, secret []byte) SampleDB {
	importer := merge.NewImporter(db, variables.OwnUUID, variables.Languages, variables.ValidTimeDelta)
	linker := identity.NewLinker(db, variables.OwnUUID, secret)

	return SampleDB{
		user:       UserService{db: db, userAuth: userAuth},
		components: ComponentService{db: db, userAuth: userAuth, variables: variables},
		federation: FederationService{db: db, importer: importer, userAuth: userAuth, variables: variables},
		identity:   IdentityService{db: db, linker: linker, userAuth: userAuth},
		db:         db,
	}
}

func (s *SampleDB) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	federation := s.federation.Routes()
	federation.Mount("/users/identity", s.identity.Routes())

	r.Mount("/users", s.user.Routes())
	r.Mount("/components", s.components.Routes())
	r.Mount("/federation/v1", federation)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
