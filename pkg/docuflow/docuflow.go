package docuflow

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/controllers"
	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/engine"
	"github.com/docuflow/docuflow/internal/migrations"
	"github.com/docuflow/docuflow/internal/repository"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

// Start boots the approval engine and HTTP server.
// This call blocks until the HTTP server stops.
func Start(mux *http.ServeMux) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("DFLOW_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLLITE {
		db = setupSqlLiteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := core.NewRealClock()
	workflowRepo := repository.NewWorkflowRepository(db, clock)
	stepRepo := repository.NewStepRepository(db, clock)
	historyRepo := repository.NewHistoryRepository(db, clock)
	userRepo := repository.NewUserRepository(db, clock)

	if err := ensureAdminUser(userRepo, clock); err != nil {
		slog.Error("Failed to ensure admin user", "error", err)
		os.Exit(1)
	}

	registry, err := engine.LoadTemplateRegistry()
	if err != nil {
		slog.Error("Failed to load approval templates", "error", err)
		os.Exit(1)
	}
	slog.Info("Approval templates loaded", "categories", registry.Categories())

	resolver := engine.NewDatabaseRoleResolver(userRepo)
	wfManager := engine.NewWorkflowManager(workflowRepo, stepRepo, historyRepo, registry, resolver, engine.SlogNotifier{}, clock)

	if mux == nil {
		mux = http.NewServeMux()
	}
	authController := controllers.NewAuthController(userRepo)
	authController.RegisterRoutes(mux)
	workflowsController := controllers.NewWorkflowsController(wfManager, userRepo)
	workflowsController.RegisterRoutes(mux)
	usersController := controllers.NewUsersController(userRepo)
	usersController.RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// ensureAdminUser seeds an enabled admin account on an empty users table so
// a fresh installation can be logged into. The generated API key is logged
// once.
func ensureAdminUser(userRepo *repository.UserRepository, clock core.Clock) error {
	count, err := userRepo.CountAll()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv(config.ADMIN_PASSWORD)
	if password == "" {
		password = "admin"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	apiKey := hex.EncodeToString(buf)

	admin := &domain.User{
		Username: "admin",
		Password: string(hashed),
		Role:     domain.RoleAdmin,
		ApiKey:   sql.NullString{String: apiKey, Valid: true},
		Created:  sql.NullTime{Time: clock.Now().UTC(), Valid: true},
		Enabled:  sql.NullBool{Bool: true, Valid: true},
	}
	if _, err := userRepo.Save(admin); err != nil {
		return err
	}
	slog.Info("Seeded admin user", "username", admin.Username, "apiKey", apiKey)
	return nil
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("DFLOW_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("DFLOW_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlLite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlLite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlLite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("DFLOW_DATABASE_URL must be set when using the MYSQL database type")
	}
	// panic if url does not contain ?parseTime=true
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("DFLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	// panic if url does not start with mysql://
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("DFLOW_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	//remove mysql:// prefix from url
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
