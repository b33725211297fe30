package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/courtline/courtline-api/config"
	"github.com/courtline/courtline-api/database"
	"github.com/courtline/courtline-api/handlers"
	auth_handlers "github.com/courtline/courtline-api/handlers/auth"
	coach_handlers "github.com/courtline/courtline-api/handlers/coach"
	conversation_handlers "github.com/courtline/courtline-api/handlers/conversation"
	goal_handlers "github.com/courtline/courtline-api/handlers/goal"
	lesson_handlers "github.com/courtline/courtline-api/handlers/lesson"
	progression_handlers "github.com/courtline/courtline-api/handlers/progression"
	student_handlers "github.com/courtline/courtline-api/handlers/student"
	video_handlers "github.com/courtline/courtline-api/handlers/video"
	"github.com/courtline/courtline-api/services"
	"github.com/courtline/courtline-api/services/storage"
	"github.com/courtline/courtline-api/utils/auth"
	"github.com/courtline/courtline-api/utils/cache"
	"github.com/courtline/courtline-api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "courtline-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	})

	db := store.GetDB()

	// Redis backs brute force protection and the progression tree cache
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection and caching will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Object storage for video uploads. The app runs without it; presign
	// and playback endpoints fail with a clear error.
	var storageClient *storage.Client
	if getEnv.S3_BUCKET != "" {
		storageClient, err = storage.NewClient(storage.Config{
			AccessKey: getEnv.S3_ACCESS_KEY,
			SecretKey: getEnv.S3_SECRET_KEY,
			Bucket:    getEnv.S3_BUCKET,
			Region:    getEnv.S3_REGION,
			Endpoint:  getEnv.S3_ENDPOINT,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize object storage: %v. Upload endpoints will be disabled.", err)
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	coachHandler := coach_handlers.NewCoachHandler(db)
	studentHandler := student_handlers.NewStudentHandler(db)

	progressionService := services.NewProgressionService(db, redisCache)
	progressionHandler := progression_handlers.NewProgressionHandler(db, progressionService)

	var objectStore services.ObjectStore
	if storageClient != nil {
		objectStore = storageClient
	}
	videoService := services.NewVideoService(db, objectStore)
	videoHandler := video_handlers.NewVideoHandler(db, videoService)

	lessonHandler := lesson_handlers.NewLessonHandler(db)
	goalHandler := goal_handlers.NewGoalHandler(db)
	conversationHandler := conversation_handlers.NewConversationHandler(db)
	healthHandler := handlers.NewHealthHandler(store)

	allowedOrigins := getEnv.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.Check)
	app.Get("/health", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.RegisterCoach)

	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckLockout(), authHandler.LoginCoach)
		authGroup.Post("/students/login", bruteForceProtection.CheckLockout(), authHandler.LoginStudent)
	} else {
		authGroup.Post("/login", authHandler.LoginCoach)
		authGroup.Post("/students/login", authHandler.LoginStudent)
	}

	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.Me)

	// Coach self-service routes
	coaches := api.Group("/coaches", authMiddleware.Required(), authMiddleware.RequireCoach())
	coaches.Get("/me", coachHandler.GetMe)
	coaches.Patch("/me", coachHandler.UpdateMe)
	coaches.Get("/me/usage", coachHandler.GetUsage)

	// Student roster routes (coach only)
	students := api.Group("/students", authMiddleware.Required(), authMiddleware.RequireCoach())
	students.Get("/", studentHandler.ListStudents)
	students.Post("/", studentHandler.CreateStudent)
	students.Get("/:id", studentHandler.GetStudent)
	students.Patch("/:id", studentHandler.UpdateStudent)
	students.Get("/:id/goals", studentHandler.ListStudentGoals)
	students.Post("/:id/progression", progressionHandler.AssignStudent)

	// Progression hierarchy routes (coach only; system paths readable,
	// not writable)
	progression := api.Group("/progression", authMiddleware.Required(), authMiddleware.RequireCoach())
	progression.Get("/paths", progressionHandler.ListPaths)
	progression.Post("/paths", progressionHandler.CreatePath)
	progression.Get("/paths/:id", progressionHandler.GetPath)
	progression.Patch("/paths/:id", progressionHandler.UpdatePath)
	progression.Delete("/paths/:id", progressionHandler.DeletePath)
	progression.Post("/paths/:id/levels", progressionHandler.CreateLevel)
	progression.Patch("/levels/:id", progressionHandler.UpdateLevel)
	progression.Delete("/levels/:id", progressionHandler.DeleteLevel)
	progression.Post("/levels/:id/skills", progressionHandler.CreateSkill)
	progression.Patch("/skills/:id", progressionHandler.UpdateSkill)
	progression.Delete("/skills/:id", progressionHandler.DeleteSkill)
	progression.Post("/skills/:id/milestones", progressionHandler.CreateMilestone)
	progression.Patch("/milestones/:id", progressionHandler.UpdateMilestone)
	progression.Delete("/milestones/:id", progressionHandler.DeleteMilestone)

	// Two-phase upload routes (coach only)
	uploads := api.Group("/uploads", authMiddleware.Required(), authMiddleware.RequireCoach())
	uploads.Post("/presign", videoHandler.PresignUpload)
	uploads.Post("/complete", videoHandler.CompleteUpload)

	// Video library routes (coach only). POST is an alias for the
	// upload completion phase.
	videos := api.Group("/videos", authMiddleware.Required(), authMiddleware.RequireCoach())
	videos.Get("/", videoHandler.ListVideos)
	videos.Post("/", videoHandler.CompleteUpload)
	videos.Get("/:id", videoHandler.GetVideo)
	videos.Patch("/:id", videoHandler.UpdateVideo)
	videos.Delete("/:id", videoHandler.DeleteVideo)
	videos.Get("/:id/playback", videoHandler.GetPlaybackURL)
	videos.Post("/:id/analysis", videoHandler.CreateAnalysis)
	videos.Get("/:id/analysis", videoHandler.GetAnalysis)

	// Lesson log routes (coach only)
	lessons := api.Group("/lessons", authMiddleware.Required(), authMiddleware.RequireCoach())
	lessons.Get("/", lessonHandler.ListLessons)
	lessons.Post("/", lessonHandler.CreateLesson)
	lessons.Get("/:id", lessonHandler.GetLesson)
	lessons.Patch("/:id", lessonHandler.UpdateLesson)
	lessons.Delete("/:id", lessonHandler.DeleteLesson)

	// Goal routes. Students own their goals; GetGoal also serves the
	// coach's read of coach-visible goals, and the notes patch is the
	// coach's single write.
	goals := api.Group("/goals", authMiddleware.Required())
	goals.Get("/", authMiddleware.RequireStudent(), goalHandler.ListGoals)
	goals.Post("/", authMiddleware.RequireStudent(), goalHandler.CreateGoal)
	goals.Get("/:id", goalHandler.GetGoal)
	goals.Put("/:id", goalHandler.UpdateGoal)
	goals.Delete("/:id", goalHandler.DeleteGoal)
	goals.Patch("/:id", authMiddleware.RequireCoach(), goalHandler.UpdateCoachNotes)
	goals.Patch("/:id/notes", authMiddleware.RequireCoach(), goalHandler.UpdateCoachNotes)

	// Conversation routes (either principal)
	conversations := api.Group("/conversations", authMiddleware.Required())
	conversations.Get("/", conversationHandler.ListConversations)
	conversations.Get("/with/:targetId", conversationHandler.GetOrCreateConversation)
	conversations.Get("/:id", conversationHandler.GetConversation)
	conversations.Post("/:id/messages", conversationHandler.SendMessage)
}
