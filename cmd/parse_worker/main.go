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

	"PitchAdvisor/internal/config"
	"PitchAdvisor/internal/database/kafka"
	"PitchAdvisor/internal/database/minio"
	"PitchAdvisor/internal/database/mysql"
	"PitchAdvisor/internal/database/redis"
	"PitchAdvisor/internal/deckstore"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/parser"
	"PitchAdvisor/internal/parser/api"
	"PitchAdvisor/internal/parser/consumer"
	"PitchAdvisor/internal/parser/publisher"
	"PitchAdvisor/internal/storage"
	"PitchAdvisor/pkg/logger"
)

// parseLockTTL 必须大于单个 deck 的最长解析耗时，worker 崩溃后锁靠它过期。
const parseLockTTL = 10 * time.Minute

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

	serviceLogger := logger.New("ParseWorker", "", "")

	// Connect to MySQL using the singleton GetDB
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MySQL")
	}
	deckStore, err := deckstore.NewStore(db)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to migrate deck tables")
	}

	// Connect to MinIO
	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MinIO")
	}
	storageGateway := storage.NewService(minioClient, cfg.Databases.MinIO.Bucket, serviceLogger)

	// Connect to Redis for the cross-instance parse lock
	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
	}
	parseLock := deckstore.NewParseLock(redisClient, parseLockTTL)

	// Make sure the topics exist before producers and consumers attach
	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Kafka")
	}

	// Create components with logger injection
	analyzePublisher := publisher.NewAnalyzePublisher(cfg.Databases.Kafka.Brokers, serviceLogger)
	parsePublisher := publisher.NewParsePublisher(cfg.Databases.Kafka.Brokers, serviceLogger)

	var ocrEngine parser.Engine
	if cfg.OCR.Enabled {
		ocrEngine = &parser.TesseractEngine{Languages: cfg.OCR.Languages}
	}
	ocr := parser.NewOCR(ocrEngine, serviceLogger)

	parsers := map[models.SourceFormat]parser.FormatParser{
		models.FormatPPTX:         parser.NewPPTXParser(storageGateway, ocr, serviceLogger),
		models.FormatPDF:          parser.NewPDFParser(storageGateway, ocr, serviceLogger),
		models.FormatGoogleSlides: parser.NewGoogleSlidesParser(context.Background(), &cfg.GoogleSlides, serviceLogger),
	}

	parseService := parser.NewService(deckStore, storageGateway, parseLock, analyzePublisher, parsers, serviceLogger)

	// Start Kafka consumer
	ctx, cancel := context.WithCancel(context.Background())
	parseConsumer := consumer.NewParseTaskConsumer(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.GroupID, serviceLogger)
	parseConsumer.Start(ctx, consumer.NewParseHandler(parseService, serviceLogger))
	serviceLogger.Info("Kafka parse task consumer started")

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler := api.NewAPI(parseService, deckStore, storageGateway, parsePublisher, serviceLogger)
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Server.ParseWorkerAddr,
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
	if err := parseConsumer.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if err := analyzePublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing analyze publisher")
	}
	if err := parsePublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing parse publisher")
	}
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka client")
	}
	if err := redis.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis client")
	}
	if err := mysql.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing MySQL connection")
	}
	minio.Close()

	serviceLogger.Info("Server gracefully stopped")
}
