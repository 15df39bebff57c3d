package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/internal/controller"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/configwatcher"
	"quiz_platform_backend/pkg/database"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/messaging"
	"quiz_platform_backend/pkg/monitoring"
	"quiz_platform_backend/pkg/security"
	"quiz_platform_backend/pkg/tracing"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigPath 热更新监听的配置文件
const ConfigPath = "configs/config.yaml"

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	tracer   *sdktrace.TracerProvider
	stop     context.CancelFunc

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	quiz     *repository.QuizRepository
	question *repository.QuestionRepository
	attempt  *repository.AttemptRepository
	relation *repository.RelationRepository
}

type services struct {
	storage  *service.StorageService
	quiz     *service.QuizService
	sessions *service.SessionManager
	launcher *service.SectionLauncher
	results  *service.ResultService
	sweeper  *service.OverdueSweeper
	feed     service.AttemptFeed
}

type controllers struct {
	session  *controller.SessionController
	launcher *controller.LauncherController
	result   *controller.ResultController
	live     *controller.LiveController
	quiz     *controller.QuizController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		quiz:     repository.NewQuizRepository(db),
		question: repository.NewQuestionRepository(db),
		attempt:  repository.NewAttemptRepository(db),
		relation: repository.NewRelationRepository(db),
	}
}

// initServices Redis 不可用时防抖和实时推送退回内存实现，只适合单实例部署
func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.quiz = service.NewQuizService(repos.quiz, repos.question, s.storage)

	var gate service.DebounceGate
	if rdb != nil {
		gate = service.NewRedisDebounceGate(rdb)
		s.feed = service.NewRedisAttemptFeed(rdb)
	} else {
		gate = service.NewMemoryDebounceGate(time.Now)
		s.feed = service.NewMemoryAttemptFeed()
	}

	deps := service.SessionDeps{
		Quizzes:   repos.quiz,
		Questions: repos.question,
		Attempts:  repos.attempt,
		Relations: repos.relation,
		Gate:      gate,
		Feed:      s.feed,
		Shuffle:   service.DefaultShuffler,
		Now:       time.Now,
	}
	if pub := a.initPublisher(cfg); pub != nil {
		deps.Events = pub
	}

	s.sessions = service.NewSessionManager(deps, service.SettingsFromConfig(cfg.Exam))
	s.launcher = service.NewSectionLauncher(repos.quiz, repos.attempt, s.sessions)
	s.results = service.NewResultService(repos.quiz, repos.attempt)
	s.results.Roster = repos.attempt

	s.sweeper = service.NewOverdueSweeper(repos.attempt, repos.attempt, repos.quiz, s.sessions)
	s.sweeper.Feed = s.feed
	s.sweeper.Events = deps.Events
	s.sweeper.Retries = cfg.Exam.MergeRetries

	return s
}

func (a *App) initPublisher(cfg *config.Config) *messaging.SQSPublisher {
	if !cfg.Messaging.Enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pub, err := messaging.NewSQSPublisher(ctx, cfg.Messaging.Region, cfg.Messaging.QueueName)
	if err != nil {
		logger.Log.Warn("Submission queue unavailable, events disabled", zap.Error(err))
		return nil
	}
	logger.Log.Info("Submission events enabled", zap.String("queue", cfg.Messaging.QueueName))
	return pub
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		session:  controller.NewSessionController(s.launcher, s.sessions),
		launcher: controller.NewLauncherController(s.launcher),
		result:   controller.NewResultController(s.results),
		live:     controller.NewLiveController(s.feed, s.sessions),
		quiz:     controller.NewQuizController(s.quiz),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, nil))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.sweeper.Sweep(ctx)
				if err != nil {
					logger.Log.Error("overdue sweep error", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Log.Info("overdue sections finalized", zap.Int("count", n))
				}
			}
		}
	}()

	go func() {
		path, _ := filepath.Abs(ConfigPath)
		if err := configwatcher.WatchConfig(ctx, path, 500*time.Millisecond, a.applyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != "release"
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, running in single-instance mode", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	if err := util.RegisterValidators(); err != nil {
		logger.Log.Fatal("Failed to register validators", zap.Error(err))
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.sessions.UpdateSettings(service.SettingsFromConfig(newCfg.Exam))
		logger.Log.Info("Exam settings updated",
			zap.Int("warningThreshold", newCfg.Exam.WarningThreshold),
			zap.String("warningScope", newCfg.Exam.WarningScope))
	})

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.stop = cancel
	app.startBackgroundTasks(ctx, services, cfg.Exam.SweepInterval())

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
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

	if a.stop != nil {
		a.stop()
	}
	// 停止所有计时器，未提交的作答已经在每次操作时落库
	if a.services != nil {
		a.services.sessions.CloseAll()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
