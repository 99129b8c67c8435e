package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/api"
	"deepresearch/internal/config"
	"deepresearch/internal/pdf"
	"deepresearch/internal/redis"
	"deepresearch/internal/service/crew"
	"deepresearch/internal/service/extract"
	"deepresearch/internal/service/reports"
	"deepresearch/internal/storage"
	"deepresearch/internal/worker"
)

func main() {
	cfgPath := os.Getenv("DEEPRESEARCH_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if _, err := cfg.ProviderKey(cfg.BasicConfig.Provider); err != nil {
		log.Fatalf("default provider unusable: %v", err)
	}

	dbType := os.Getenv("DEEPRESEARCH_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	// Create necessary tables: reports, uploads
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	reportService := reports.NewService(db)
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	cleanInterval := time.Duration(cfg.BasicConfig.UploadCleanEvery) * time.Minute
	if cleanInterval <= 0 {
		cleanInterval = reports.DefaultUploadCleanupInterval
	}
	reportService.StartUploadCleaner(cleanCtx, cleanInterval)

	extractor, err := extract.NewService(context.Background(), cfg)
	if err != nil {
		log.Fatalf("init extractor: %v", err)
	}

	crewFactory := func(ctx context.Context, provider, model string) (worker.CrewRunner, error) {
		return crew.New(ctx, cfg, provider, model)
	}
	manager := worker.NewManager(crewFactory, worker.ManagerConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
		CacheTTL:          time.Duration(cfg.BasicConfig.ReportCacheTTL) * time.Minute,
	}, rdb)

	fileBase := cfg.BasicConfig.FileBaseDir
	if fileBase == "" {
		fileBase = "./data"
	}
	uploadTTL := time.Duration(cfg.BasicConfig.UploadTTL) * time.Minute
	if uploadTTL <= 0 {
		uploadTTL = reports.DefaultUploadTTL
	}
	handlers := api.NewHandler(reportService, manager, extractor, pdf.NewRenderer(), api.Options{
		Provider: cfg.BasicConfig.Provider,
		Model:    cfg.BasicConfig.Model,
		FileBase: fileBase,
		FileTTL:  uploadTTL,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
