package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"PitchAdvisor/internal/analysis"
	"PitchAdvisor/internal/analysis/api"
	"PitchAdvisor/internal/analysis/consumer"
	"PitchAdvisor/internal/analysis/store"
	"PitchAdvisor/internal/config"
	"PitchAdvisor/internal/database/kafka"
	"PitchAdvisor/internal/database/mongo"
	"PitchAdvisor/internal/database/mysql"
	"PitchAdvisor/internal/deckstore"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/parser/publisher"
	"PitchAdvisor/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("internal/config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)

	serviceLogger := logger.New("NLPWorker", "", "")

	// Connect to MySQL: the analyzer reads the parsed slides from there
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MySQL")
	}
	deckStore, err := deckstore.NewStore(db)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to migrate deck tables")
	}

	// Connect to MongoDB for the analysis documents
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
	}
	analysisStore := store.NewMongoAnalysisStore(mongoClient.Database(cfg.Databases.MongoDB.Database))

	// Make sure the topics exist before producers and consumers attach
	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Kafka")
	}

	// Create components with logger injection
	analysisService := analysis.NewService(deckStore, analysisStore, serviceLogger)
	analyzePublisher := publisher.NewAnalyzePublisher(cfg.Databases.Kafka.Brokers, serviceLogger)

	// Start Kafka consumer
	ctx, cancel := context.WithCancel(context.Background())
	analyzeConsumer := consumer.NewAnalyzeTaskConsumer(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.GroupID, serviceLogger)
	analyzeConsumer.Start(ctx, consumer.NewAnalyzeHandler(analysisService, serviceLogger))
	serviceLogger.Info("Kafka analyze task consumer started")

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler := api.NewAPI(analysisService, analyzePublisher, serviceLogger)
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Server.NLPWorkerAddr,
		Handler: router,
	}

	// Start server
	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Server forced to shutdown")
	}

	cancel()
	if err := analyzeConsumer.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if err := analyzePublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing analyze publisher")
	}
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka client")
	}
	if err := mongo.Close(context.Background()); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}
	if err := mysql.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing MySQL connection")
	}

	serviceLogger.Info("Server gracefully stopped")
}
