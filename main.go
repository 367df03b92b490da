package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"grimoire/internal/handlers"
	"grimoire/internal/middleware"
	"grimoire/internal/models"
	"grimoire/internal/repositories"
	"grimoire/internal/services"
	"grimoire/pkg/imagestore"
	"grimoire/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_DSN", "grimoire.db")
	viper.SetDefault("IMAGE_STORE", "local")
	viper.SetDefault("IMAGE_DIR", "images")
	viper.SetDefault("RABBITMQ_URL", "") // empty disables the event queue
	viper.AutomaticEnv()                 // Load environment variables

	appPort := viper.GetString("APP_PORT")
	baseURL := viper.GetString("BASE_URL")

	// The signing secret always comes from the environment.
	jwtSecret := viper.GetString("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// --- Initialize Database (GORM) ---
	db, err := openDatabase(viper.GetString("DATABASE_DRIVER"), viper.GetString("DATABASE_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Book{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Initialize Image Store ---
	store, err := newImageStore(baseURL)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	// --- Initialize RabbitMQ Client (optional) ---
	// Without a broker the image cleanup runs inline, still best-effort.
	var mqClient *rabbitmq.Client
	if mqURL := viper.GetString("RABBITMQ_URL"); mqURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: mqURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close() // Ensure the connection is closed on exit
	}
	var cleanupEvents services.CleanupPublisher
	if mqClient != nil {
		cleanupEvents = mqClient
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	bookRepo := repositories.NewGORMBookRepository(db)

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, jwtSecret)
	bookService := services.NewBookService(bookRepo, store, cleanupEvents)
	ratingService := services.NewRatingService(bookRepo)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	bookHandler := handlers.NewBookHandler(bookService, ratingService, store)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, X-Requested-With, Content, Accept, Content-Type, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	// --- Static cover images (local store only) ---
	if viper.GetString("IMAGE_STORE") == "local" {
		app.Static("/images", viper.GetString("IMAGE_DIR"))
	}

	// --- API Routes ---
	api := app.Group("/api")
	authHandler.RegisterRoutes(api)
	bookHandler.RegisterRoutes(api, middleware.AuthRequired(authService))

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start Image Cleanup Consumer in a Goroutine ---
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for image cleanup...")
			messageHandler := func(msg amqp.Delivery) error {
				var event struct {
					ImageURL string `json:"imageUrl"`
				}
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					log.Printf("Dropping malformed cleanup event (tag %d): %v", msg.DeliveryTag, err)
					return nil // acking a malformed event beats requeueing it forever
				}
				return store.Remove(context.Background(), event.ImageURL)
			}
			if consumerErr := mqClient.ConsumeImageCleanup(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens the configured GORM backend: postgres for deployments,
// sqlite for local runs.
func openDatabase(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	return nil, fmt.Errorf("unknown database driver %q", driver)
}

// newImageStore builds the configured image store implementation.
func newImageStore(baseURL string) (imagestore.Store, error) {
	switch viper.GetString("IMAGE_STORE") {
	case "minio":
		return imagestore.NewMinio(context.Background(), imagestore.MinioConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			BaseURL:   viper.GetString("MINIO_BASE_URL"),
		})
	case "local":
		return imagestore.NewLocal(viper.GetString("IMAGE_DIR"), baseURL)
	}
	return nil, fmt.Errorf("unknown image store %q", viper.GetString("IMAGE_STORE"))
}
