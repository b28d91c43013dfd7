package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/application/service"
	"github.com/annoworks/annotation-pipeline/internal/archive"
	"github.com/annoworks/annotation-pipeline/internal/config"
	"github.com/annoworks/annotation-pipeline/internal/doctext"
	"github.com/annoworks/annotation-pipeline/internal/export"
	larkext "github.com/annoworks/annotation-pipeline/internal/infrastructure/external/lark"
	"github.com/annoworks/annotation-pipeline/internal/infrastructure/external/openai"
	"github.com/annoworks/annotation-pipeline/internal/infrastructure/persistence/repository"
	"github.com/annoworks/annotation-pipeline/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/annoworks/annotation-pipeline/internal/interfaces/http"
	"github.com/annoworks/annotation-pipeline/pkg/database"
	"github.com/annoworks/annotation-pipeline/pkg/utils"
)

func main() {
	// Optional .env file for local development credentials
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting annotation pipeline",
		zap.Int("port", cfg.Server.Port),
		zap.String("archive_dir", cfg.Archive.Dir))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db.DB, logger)

	// Repositories
	taskRepo := repository.NewTaskRepository(db.DB, logger)
	assignmentRepo := repository.NewAssignmentRepository(db.DB, logger)
	annotationRepo := repository.NewAnnotationRepository(db.DB, logger)
	qualityCheckRepo := repository.NewQualityCheckRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	documentRepo := repository.NewDocumentRepository(db.DB, logger)
	scoreRepo := repository.NewScoreRepository(db.DB, logger)

	// Infrastructure adapters
	archiveStore := archive.NewStore(cfg.Archive.Dir, logger)
	aiAnnotator := openai.NewAnnotator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, logger)
	docReader := doctext.NewReader(logger)
	exporter := export.NewExcelExporter(logger)

	var notifier port.ReviewerNotifier
	if cfg.Lark.AppID != "" {
		notifier = larkext.NewNotifier(larkext.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, logger)
	} else {
		logger.Info("Lark credentials not configured, reviewer notifications disabled")
		notifier = larkext.NewNoopNotifier(logger)
	}

	// Application services
	serviceLogger := utils.NewSugarAdapter(logger)
	scoreService := service.NewScoreService(userRepo, scoreRepo, txManager, serviceLogger)
	workflowService := service.NewWorkflowService(taskRepo, assignmentRepo, userRepo, scoreService, serviceLogger)
	assignmentService := service.NewAssignmentService(taskRepo, assignmentRepo, userRepo, txManager, serviceLogger)
	qualityService := service.NewQualityService(
		taskRepo, assignmentRepo, annotationRepo, qualityCheckRepo, userRepo,
		assignmentService, workflowService, scoreService,
		notifier, txManager, serviceLogger)
	annotationService := service.NewAnnotationService(
		taskRepo, assignmentRepo, annotationRepo, userRepo, documentRepo,
		archiveStore, aiAnnotator, docReader,
		qualityService, workflowService, txManager, serviceLogger)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		annotationService,
		qualityService,
		assignmentService,
		workflowService,
		scoreService,
		archiveStore,
		exporter,
		serviceLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
