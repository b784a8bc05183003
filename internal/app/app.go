package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/internal/controller"
	"quiz_mentor_backend/internal/llm"
	"quiz_mentor_backend/internal/repository"
	"quiz_mentor_backend/internal/service"
	"quiz_mentor_backend/pkg/configwatcher"
	"quiz_mentor_backend/pkg/database"
	"quiz_mentor_backend/pkg/logger"
	"quiz_mentor_backend/pkg/monitoring"
	"quiz_mentor_backend/pkg/security"
	"quiz_mentor_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user   *repository.UserRepository
	course *repository.CourseRepository
	doc    *repository.DocumentRepository
	quiz   *repository.QuizRepository
	target *repository.LearningTargetRepository
}

type services struct {
	auth      *service.AuthService
	user      *service.UserService
	course    *service.CourseService
	storage   *service.StorageService
	document  *service.DocumentService
	detector  *service.TopicDetectorService
	targets   *service.LearningTargetService
	generator *service.QuizGeneratorService
	grader    *service.QuizGraderService
	quiz      *service.QuizService
}

type controllers struct {
	auth   *controller.AuthController
	user   *controller.UserController
	course *controller.CourseController
	doc    *controller.DocumentController
	quiz   *controller.QuizController
	target *controller.LearningTargetController
	health *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:   repository.NewUserRepository(db),
		course: repository.NewCourseRepository(db),
		doc:    repository.NewDocumentRepository(db),
		quiz:   repository.NewQuizRepository(db),
		target: repository.NewLearningTargetRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client, provider llm.Provider) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)
	s.course = service.NewCourseService(repos.course, logger.Log)
	s.storage = service.NewStorageService(cfg)
	s.detector = service.NewTopicDetectorService(provider, logger.Log)
	s.targets = service.NewLearningTargetService(repos.target, cfg, logger.Log)
	s.document = service.NewDocumentService(repos.doc, repos.course, s.storage, s.detector, s.targets, logger.Log)
	s.generator = service.NewQuizGeneratorService(provider, repos.quiz, repos.target, cfg, logger.Log)
	s.grader = service.NewQuizGraderService(repos.quiz, s.targets, rdb, logger.Log)
	s.quiz = service.NewQuizService(repos.quiz)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth),
		user:   controller.NewUserController(s.user),
		course: controller.NewCourseController(s.course),
		doc:    controller.NewDocumentController(s.document),
		quiz:   controller.NewQuizController(s.generator, s.grader, s.quiz),
		target: controller.NewLearningTargetController(s.targets),
		health: controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	provider, err := llm.NewProvider(context.Background(), cfg.AI)
	if err != nil {
		logger.Log.Fatal("Failed to initialize AI provider", zap.Error(err))
	}
	logger.Log.Info("AI provider ready",
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", provider.ModelID()))

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	svcs := app.initServices(repos, cfg, rdb, provider)
	app.services = svcs
	ctrls := app.initControllers(svcs, db, rdb)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("quiz-mentor", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, ctrls, svcs, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	// 配置热更新：掌握度阈值、重试参数改动即时生效，无需重启
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if reloaded, ok := newCfg.(*config.Config); ok {
			cfg.Quiz = reloaded.Quiz
			cfg.AI.Retry = reloaded.AI.Retry
			logger.Log.Info("配置热更新完成",
				zap.Int("masteryThreshold", cfg.Quiz.MasteryThreshold),
				zap.Int("mediumThreshold", cfg.Quiz.MediumThreshold))
		}
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
