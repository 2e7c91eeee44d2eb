package container

import (
	"github.com/redis/go-redis/v9"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/repository"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/service"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/storage"
	"github.com/cortexlab/neuroscan/common/bootstrap"
	"github.com/cortexlab/neuroscan/common/imaging"
	"github.com/cortexlab/neuroscan/common/ratelimit"
	rediscommon "github.com/cortexlab/neuroscan/common/redis"
	"github.com/cortexlab/neuroscan/common/worker"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client
	RedisRaw   *redis.Client

	// Repositories
	PredictionRepo *repository.PredictionRepository
	UserRepo       *repository.UserRepository

	// Storage
	FileStore *storage.FileStore
	Pipeline  *storage.Pipeline

	// Services
	Classifier        service.Classifier
	PredictionService *service.PredictionService
	AuthService       *service.AuthService

	// Supporting infrastructure
	Limiter       *ratelimit.Limiter
	AuditRecorder *worker.AuditRecorder
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	redisRaw := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.RedisAddr,
		Password: cfg.Session.RedisPassword,
		DB:       cfg.Session.RedisDB,
	})
	redisClient := rediscommon.NewClient(redisRaw, components.Logger)

	// Repositories
	predictionRepo := repository.NewPredictionRepository(components.DB)
	userRepo := repository.NewUserRepository(components.DB)

	// Storage pipeline
	fileStore := storage.NewFileStore(cfg.Storage.UploadDir, components.Logger)
	compressor := imaging.NewCompressor(cfg.Storage.MaxDimension, cfg.Storage.JPEGQuality)
	pipeline := storage.NewPipeline(compressor, fileStore, predictionRepo, components.Logger)

	// Services (bottom-up: dependencies first)
	classifier := service.NewHTTPClassifier(cfg.Classifier, components.Logger)
	predictionService := service.NewPredictionService(
		classifier,
		pipeline,
		predictionRepo,
		components.Queue,
		components.Cache,
		components.Logger,
	)
	authService := service.NewAuthService(userRepo, redisClient, cfg.Session.TTL, components.Logger)

	limiter := ratelimit.NewLimiter(redisRaw, components.Logger)
	auditRecorder := worker.NewAuditRecorder(components.Queue, redisRaw, components.Logger)

	return &Container{
		Components:        components,
		Redis:             redisClient,
		RedisRaw:          redisRaw,
		PredictionRepo:    predictionRepo,
		UserRepo:          userRepo,
		FileStore:         fileStore,
		Pipeline:          pipeline,
		Classifier:        classifier,
		PredictionService: predictionService,
		AuthService:       authService,
		Limiter:           limiter,
		AuditRecorder:     auditRecorder,
	}, nil
}
