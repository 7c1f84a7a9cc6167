// @title           Atto-Host API
// @version         1.0
// @description     Media hosting service with admin-managed accounts and rotating API keys for automated uploaders.
// @host            localhost
// @schemes         http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewbrowntech/atto-host/internal/api"
	"github.com/ewbrowntech/atto-host/internal/config"
	"github.com/ewbrowntech/atto-host/internal/database"
	"github.com/ewbrowntech/atto-host/internal/storage"
	"github.com/ewbrowntech/atto-host/internal/websocket"

	_ "github.com/ewbrowntech/atto-host/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Could not connect to the database: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Could not ping the database: %v", err)
	}
	log.Println("Connected to the database")

	localStorage, err := storage.NewLocalStorage(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Could not initialize local storage: %v", err)
	}
	log.Printf("Files will be stored in: %s", cfg.Storage.Path)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool)
	server := api.NewServer(cfg, store, localStorage, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://"+cfg.AppHost+"/swagger/doc.json"),
	))

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", server.ServeWsHandler)

	r.Post("/users/login", server.LoginHandler)
	r.Get("/files/{fileId}/download", server.DownloadFileHandler)

	r.Group(func(r chi.Router) {
		r.Use(server.AuthMiddleware)

		r.Get("/files", server.ListFilesHandler)
		r.With(server.FreshKeyMiddleware).Post("/files/upload", server.UploadFileHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.AdminMiddleware)

			r.Post("/users/signup", server.SignupHandler)
			r.Post("/users/generate-api-key", server.GenerateAPIKeyHandler)
			r.Delete("/files", server.PurgeFilesHandler)
			r.Post("/maintenance/cleanup", server.CleanupHandler)
			r.Get("/events", server.GetEventsHandler)
		})
	})

	log.Println("Starting server on :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("Could not start server: %v", err)
	}
}
