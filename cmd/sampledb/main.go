package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sayeeda346/sampledb/federation/auth"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/services"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type sampledbEnv struct {
	FederationUUID uuid.UUID `env:"FEDERATION_UUID,required"`
	ServiceName    string    `env:"SERVICE_NAME" envDefault:"SampleDB"`
	DatabaseUri    string    `env:"DATABASE_URI,required"`
	JwtSecret      string    `env:"JWT_SECRET,required"`

	AdminName     string `env:"ADMIN_NAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	AllowHTTP      bool `env:"ALLOW_HTTP"`
	ValidTimeDelta int  `env:"VALID_TIME_DELTA" envDefault:"300"`

	LanguagesConfig string `env:"LANGUAGES_CONFIG"`

	LogDir string `env:"LOG_DIR" envDefault:"./logs"`
}

func loadEnv() (*sampledbEnv, error) {
	cfg := &sampledbEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type languagesConfig struct {
	Languages []string `yaml:"languages"`
}

func loadLanguages(path string) ([]string, error) {
	if path == "" {
		return []string{"en"}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading languages config '%v': %w", path, err)
	}
	var cfg languagesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing languages config '%v': %w", path, err)
	}
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("languages config '%v' lists no languages", path)
	}
	return cfg.Languages, nil
}

func postgresDsn(uri string) (string, error) {
	parts, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port()), nil
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func runApp() error {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("error loading .env file '%v': %w", *envFile, err)
		}
	}

	cfg, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := os.MkdirAll(cfg.LogDir, 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "sampledb.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening audit log file: %w", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	languages, err := loadLanguages(cfg.LanguagesConfig)
	if err != nil {
		return err
	}

	dsn, err := postgresDsn(cfg.DatabaseUri)
	if err != nil {
		return err
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("error opening database connection: %w", err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		return fmt.Errorf("error migrating db schema: %w", err)
	}

	userAuth, err := auth.NewBasicIdentityProvider(db, auth.NewAuditLogger(auditLog), auth.BasicProviderArgs{
		Secret:        []byte(cfg.JwtSecret),
		AdminName:     cfg.AdminName,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("error creating identity provider: %w", err)
	}

	variables := services.Variables{
		OwnUUID:        cfg.FederationUUID,
		ServiceName:    cfg.ServiceName,
		AllowHTTP:      cfg.AllowHTTP,
		Languages:      languages,
		ValidTimeDelta: time.Duration(cfg.ValidTimeDelta) * time.Second,
	}

	sampledb := services.NewSampleDB(db, userAuth, variables, []byte(cfg.JwtSecret))

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	// peers resolve /federation/v1/... relative to the configured component
	// address, so the api is served from the root
	r.Mount("/", sampledb.Routes())

	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	slog.Info("starting server", "service", cfg.ServiceName, "addr", addr, "federation_uuid", cfg.FederationUUID)
	return http.ListenAndServe(addr, r)
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
