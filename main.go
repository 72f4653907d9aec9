package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"civic-issues/blob"
	"civic-issues/classifier"
	"civic-issues/config"
	"civic-issues/controllers"
	"civic-issues/logger"
	"civic-issues/models"
	"civic-issues/mutation"
	"civic-issues/pipeline"
	"civic-issues/query"
	"civic-issues/routes"
	"civic-issues/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	logger.Init(settings.Env, log.Fields{"service": "civic-issues"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDB(ctx, settings)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()
	log.Info("MongoDB connection established successfully!")

	redisClient, err := config.ConnectRedis(ctx, settings)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	issues := store.NewMongoStore(db)
	if err := issues.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	blobs, err := blob.NewS3Store(blob.S3Config(settings.S3))
	if err != nil {
		log.Fatalf("Failed to configure media storage: %v", err)
	}

	var (
		service    classifier.Service
		summarizer classifier.Summarizer
	)
	if settings.GeminiAPIKey != "" {
		gemini, err := classifier.NewGeminiService(classifier.GeminiConfig{
			APIKey:  settings.GeminiAPIKey,
			Model:   settings.GeminiModel,
			BaseURL: settings.GeminiBaseURL,
		})
		if err != nil {
			log.Fatalf("Failed to configure classifier: %v", err)
		}
		service, summarizer = gemini, gemini
	} else {
		log.Warn("GEMINI_API_KEY not set: every report is filed with default severity")
	}

	rules := models.DefaultValidationRules()
	rules.MediaRequired = settings.MediaRequired
	rules.MaxMediaBytes = settings.MaxMediaBytes

	submissions := pipeline.New(blobs, classifier.NewAdapter(service, settings.ClassifyTimeout), issues,
		pipeline.WithRules(rules))

	policy := models.NewRolePolicy(settings.PrivilegedRoles...)

	mutationOpts := []mutation.Option{
		mutation.WithWorkers(settings.MutationWorkers),
		mutation.WithErrorHandler(func(op mutation.Op, id primitive.ObjectID, err error) {
			log.WithFields(log.Fields{"op": op, "issue": id.Hex()}).WithError(err).Warn("write dropped")
		}),
	}
	if settings.UpvoteOncePerActor {
		mutationOpts = append(mutationOpts, mutation.WithUpvoteLedger(issues))
	}
	mutations := mutation.New(issues, policy, mutationOpts...)

	views := query.NewView(issues)
	if err := views.Start(ctx); err != nil {
		log.Fatalf("Failed to subscribe to issues: %v", err)
	}

	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	if len(settings.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = settings.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	ic := controllers.NewIssueController(controllers.IssueDependencies{
		Submissions:   submissions,
		Mutations:     mutations,
		Views:         views,
		Summarizer:    summarizer,
		MaxMediaBytes: settings.MaxMediaBytes,
	})

	routes.HealthRoutes(r)
	routes.AuthRoutes(r, controllers.NewAuthController(policy), settings.JWTSecret)
	routes.IssueRoutes(r, ic, routes.IssueRouteConfig{
		JWTSecret:    settings.JWTSecret,
		Policy:       policy,
		Redis:        redisClient,
		LimitPrefix:  settings.IssueLimitPrefix,
		DailyLimit:   settings.IssueDailyLimit,
		RateLimiting: true,
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", settings.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Live streams only end once the view is closed.
	views.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	mutations.Close()
}
