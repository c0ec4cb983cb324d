package app

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/controller"
	"edumentor_backend/internal/repository"
	"edumentor_backend/internal/service"
	"edumentor_backend/internal/task"
	"edumentor_backend/pkg/database"
	"edumentor_backend/pkg/logger"
	"edumentor_backend/pkg/monitoring"
	"edumentor_backend/pkg/security"
	"edumentor_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	taskClient      *task.Client
	worker          *task.Worker
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	bank       *repository.QuestionBankRepository
	taxonomy   *repository.TaxonomyRepository
	assessment *repository.AssessmentRepository
	profile    *repository.ProfileRepository
	studyPlan  *repository.StudyPlanRepository
}

type services struct {
	auth       *service.AuthService
	session    *service.SessionService
	selector   *service.Selector
	completion *service.CompletionService
	diagnostic *service.DiagnosticService
	report     *service.ReportService
	studyPlan  *service.StudyPlanService
	ai         *service.AIService
}

type controllers struct {
	auth       *controller.AuthController
	diagnostic *controller.DiagnosticController
	report     *controller.ReportController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig fans out a reloaded config to every service that caches
// one.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		bank:       repository.NewQuestionBankRepository(db),
		taxonomy:   repository.NewTaxonomyRepository(db),
		assessment: repository.NewAssessmentRepository(db),
		profile:    repository.NewProfileRepository(db),
		studyPlan:  repository.NewStudyPlanRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.ai = service.NewAIService(cfg.AI)
	s.session = service.NewSessionService(repos.assessment, rdb, cfg)
	s.selector = service.NewSelector(repos.bank, repos.taxonomy, cfg)
	s.completion = service.NewCompletionService(repos.assessment, repos.taxonomy, rdb, a.taskClient, cfg)
	s.diagnostic = service.NewDiagnosticService(s.session, s.selector, s.completion, repos.assessment, repos.bank, repos.taxonomy, cfg)
	s.report = service.NewReportService(repos.assessment, repos.profile, repos.taxonomy, s.completion, a.taskClient, cfg)
	s.studyPlan = service.NewStudyPlanService(repos.studyPlan, repos.profile, repos.assessment, s.ai, cfg)

	a.RegisterConfigCallback(s.session.SetConfig)
	a.RegisterConfigCallback(s.selector.SetConfig)
	a.RegisterConfigCallback(s.completion.SetConfig)
	a.RegisterConfigCallback(s.diagnostic.SetConfig)
	a.RegisterConfigCallback(s.report.SetConfig)
	a.RegisterConfigCallback(s.studyPlan.SetConfig)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		diagnostic: controller.NewDiagnosticController(s.diagnostic),
		report:     controller.NewReportController(s.report, s.studyPlan),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	app.taskClient = task.NewClient(&cfg.Redis, &cfg.Tasks)

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	app.worker = task.NewWorker(&cfg.Redis, &cfg.Tasks, services.report, services.studyPlan)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("edumentor-diagnostics", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		if err := a.worker.Start(); err != nil {
			logger.Log.Fatal("task worker failed", zap.Error(err))
		}
	}()

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	a.worker.Shutdown()
	if err := a.taskClient.Close(); err != nil {
		logger.Log.Warn("failed to close task client", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
