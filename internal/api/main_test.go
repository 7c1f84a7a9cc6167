package api

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ewbrowntech/atto-host/internal/auth"
	"github.com/ewbrowntech/atto-host/internal/config"
	"github.com/ewbrowntech/atto-host/internal/database"
	"github.com/ewbrowntech/atto-host/internal/models"
	"github.com/ewbrowntech/atto-host/internal/storage"
	"github.com/ewbrowntech/atto-host/internal/websocket"
)

var testServer *Server
var testPool *pgxpool.Pool

var adminUser *models.User
var adminToken string
var normalUser *models.User
var normalToken string
var autoUser *models.User

const testPassword = "password"

func createAccount(ctx context.Context, username string, admin, automated bool) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(testPassword)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = testPool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, is_admin, is_automated)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, password_hash, is_admin, is_automated, api_key_hash, created_at`,
		username, hashedPassword, admin, automated,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Admin, &user.Automated, &user.APIKeyHash, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// newTestRouter mirrors the guard wiring in cmd/server/main.go so route
// ordering (token validity before admin, validity+freshness before upload)
// is exercised end to end.
func newTestRouter() chi.Router {
	r := chi.NewRouter()

	r.Post("/users/login", testServer.LoginHandler)
	r.Get("/files/{fileId}/download", testServer.DownloadFileHandler)

	r.Group(func(r chi.Router) {
		r.Use(testServer.AuthMiddleware)

		r.Get("/files", testServer.ListFilesHandler)
		r.With(testServer.FreshKeyMiddleware).Post("/files/upload", testServer.UploadFileHandler)

		r.Group(func(r chi.Router) {
			r.Use(testServer.AdminMiddleware)

			r.Post("/users/signup", testServer.SignupHandler)
			r.Post("/users/generate-api-key", testServer.GenerateAPIKeyHandler)
			r.Delete("/files", testServer.PurgeFilesHandler)
			r.Post("/maintenance/cleanup", testServer.CleanupHandler)
			r.Get("/events", testServer.GetEventsHandler)
		})
	})

	return r
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:14-alpine",
		postgres.WithDatabase("test_api_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		log.Fatalf("Could not start postgres: %s", err)
	}
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("Could not get connection string: %s", err)
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Could not connect to database: %s", err)
	}

	schema, err := os.ReadFile("../../db/init.sql")
	if err != nil {
		log.Fatalf("Could not read schema file: %s", err)
	}
	if _, err := testPool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("Could not apply schema: %s", err)
	}

	tempDir, err := os.MkdirTemp("", "api-storage-test")
	if err != nil {
		log.Fatalf("Could not create temp dir: %s", err)
	}
	defer os.RemoveAll(tempDir)

	localStorage, err := storage.NewLocalStorage(tempDir)
	if err != nil {
		log.Fatalf("Could not create local storage: %s", err)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(testPool)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "api_test_secret"}}
	testServer = NewServer(cfg, store, localStorage, wsHub)

	adminUser, err = createAccount(ctx, "api_test_admin", true, false)
	if err != nil {
		log.Fatalf("Could not create admin account: %s", err)
	}
	adminToken, err = auth.GenerateSessionJWT(adminUser, cfg.JWT.Secret)
	if err != nil {
		log.Fatalf("Could not generate admin token: %s", err)
	}

	normalUser, err = createAccount(ctx, "api_test_user", false, false)
	if err != nil {
		log.Fatalf("Could not create user account: %s", err)
	}
	normalToken, err = auth.GenerateSessionJWT(normalUser, cfg.JWT.Secret)
	if err != nil {
		log.Fatalf("Could not generate user token: %s", err)
	}

	autoUser, err = createAccount(ctx, "api_test_bot", false, true)
	if err != nil {
		log.Fatalf("Could not create automated account: %s", err)
	}

	os.Exit(m.Run())
}
