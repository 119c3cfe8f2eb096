package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"birdDexAPI/handlers"
	"birdDexAPI/internal/geocode"
	"birdDexAPI/internal/notification"
	"birdDexAPI/internal/storage"
	"birdDexAPI/middleware"
	"birdDexAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	photoService        *services.PhotoService
	dexService          *services.DexService
	questService        *services.QuestService
	commentService      *services.CommentService
	notificationService *services.NotificationService
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to NeonDB")

	photoStorage, err := storage.New(ctx, storage.Config{
		Region:    os.Getenv("S3_REGION"),
		Bucket:    os.Getenv("S3_BUCKET"),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
	})
	if err != nil {
		log.Fatal("Failed to initialize photo storage:", err)
	}

	geocoder := geocode.NewClient()

	notificationService = services.NewNotificationService(dbPool)
	userService = services.NewUserService(dbPool, notificationService)
	photoService = services.NewPhotoService(dbPool, photoStorage, geocoder)
	dexService = services.NewDexService(dbPool, photoStorage)
	questService = services.NewQuestService(dbPool, photoStorage, notificationService)
	commentService = services.NewCommentService(dbPool, notificationService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	photoHandler := handlers.NewPhotoHandler(photoService, userService)
	dexHandler := handlers.NewDexHandler(dexService)
	questHandler := handlers.NewQuestHandler(questService, userService)
	commentHandler := handlers.NewCommentHandler(commentService, userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "birdDex-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/search", userHandler.SearchUsers).Methods("GET")
	protected.HandleFunc("/user/friends", userHandler.GetFriends).Methods("GET")
	protected.HandleFunc("/user/friends", userHandler.AddFriend).Methods("POST")
	protected.HandleFunc("/user/friends", userHandler.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/user/friends/accept", userHandler.AcceptFriend).Methods("PUT")
	protected.HandleFunc("/user/friend-requests", userHandler.GetFriendRequests).Methods("GET")
	protected.HandleFunc("/user/leaderboard", userHandler.GetLeaderboard).Methods("GET")

	protected.HandleFunc("/photos/upload-url", photoHandler.CreateUploadURL).Methods("POST")
	protected.HandleFunc("/photos/confirm", photoHandler.ConfirmUpload).Methods("POST")
	protected.HandleFunc("/photos", photoHandler.ListPhotos).Methods("GET")
	protected.HandleFunc("/photos/feed", photoHandler.GetFeed).Methods("GET")
	protected.HandleFunc("/photos/{id}", photoHandler.GetPhoto).Methods("GET")
	protected.HandleFunc("/photos/{id}", photoHandler.DeletePhoto).Methods("DELETE")
	protected.HandleFunc("/photos/{id}/feed-visibility", photoHandler.SetFeedVisibility).Methods("PUT")
	protected.HandleFunc("/photos/{id}/species", dexHandler.ReassignSpecies).Methods("PUT")
	protected.HandleFunc("/photos/{id}/hide", dexHandler.HideFromSpeciesView).Methods("PUT")
	protected.HandleFunc("/photos/{id}/unhide", dexHandler.UnhideFromSpeciesView).Methods("PUT")

	protected.HandleFunc("/photos/{id}/comments", commentHandler.ListComments).Methods("GET")
	protected.HandleFunc("/photos/{id}/comments", commentHandler.AddComment).Methods("POST")
	protected.HandleFunc("/comments/{commentId}", commentHandler.DeleteComment).Methods("DELETE")

	protected.HandleFunc("/dex", dexHandler.GetDex).Methods("GET")
	protected.HandleFunc("/dex/top-photo", dexHandler.SetTopPhoto).Methods("PUT")

	protected.HandleFunc("/quests", questHandler.ListQuests).Methods("GET")
	protected.HandleFunc("/quests", questHandler.CreateQuest).Methods("POST")
	protected.HandleFunc("/quests/{id}", questHandler.GetQuest).Methods("GET")
	protected.HandleFunc("/quests/{id}/entries", questHandler.SubmitEntry).Methods("POST")
	protected.HandleFunc("/quests/{id}/votes", questHandler.CastVote).Methods("PUT")
	protected.HandleFunc("/quests/{id}/winner", questHandler.SetWinner).Methods("PUT")
	protected.HandleFunc("/quests/{id}/qr", questHandler.GetShareQR).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.ListNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
