package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/you-joon/bingoruzzol/internal/handler/http"
	wsHandler "github.com/you-joon/bingoruzzol/internal/handler/websocket"
	"github.com/you-joon/bingoruzzol/internal/hub"
	redisfeed "github.com/you-joon/bingoruzzol/internal/infra/feed/redis"
	gormpersistence "github.com/you-joon/bingoruzzol/internal/infra/persistence/gorm"
	"github.com/you-joon/bingoruzzol/internal/infra/setup"
	"github.com/you-joon/bingoruzzol/internal/middleware"
	"github.com/you-joon/bingoruzzol/internal/service"
	"github.com/you-joon/bingoruzzol/internal/worker"
)

// Config 存储从环境变量或 .env 文件加载的配置。
type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	ServerPort        string
	LogLevel          string
	AppEnv            string
	CORSAllowedOrigin string

	TokenSecret      string
	TokenExpiryHours int

	RateLimitMax    int
	RateLimitWindow time.Duration

	BoardPoolSize       int
	DefaultWinCondition int
	MaxPlayers          int
	FirstMover          string

	RoomPollInterval   time.Duration
	PlayerPollInterval time.Duration
	HeartbeatTTL       time.Duration
	ReapInterval       string
}

// LoadConfig 从环境变量加载配置，.env 存在时优先加载。
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		TokenSecret:   os.Getenv("TOKEN_SECRET"),
		FirstMover:    os.Getenv("FIRST_MOVER"),
		ReapInterval:  os.Getenv("REAP_INTERVAL"),

		TokenExpiryHours: 24,
		RateLimitMax:     100,
		RateLimitWindow:  1 * time.Second,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	cfg.BoardPoolSize = envInt("BOARD_POOL_SIZE", 25)
	cfg.DefaultWinCondition = envInt("DEFAULT_WIN_CONDITION", 3)
	cfg.MaxPlayers = envInt("MAX_PLAYERS", 8)
	cfg.RoomPollInterval = envDuration("ROOM_POLL_INTERVAL", 3*time.Second)
	cfg.PlayerPollInterval = envDuration("PLAYER_POLL_INTERVAL", 5*time.Second)
	cfg.HeartbeatTTL = envDuration("HEARTBEAT_TTL", 90*time.Second)

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "bingo:"
	}
	cfg.CORSAllowedOrigin = os.Getenv("CORS_ALLOWED_ORIGIN")
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "http://localhost:3000"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("environment variable TOKEN_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

// App 包含应用的所有组件。
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	hubCancel context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件。
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Info("Configuration loaded successfully")

	// 基础设施
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	log.Info("Database initialized")

	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	// Repositories
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	playerRepo := gormpersistence.NewGormPlayerRepository(db)
	boardRepo := gormpersistence.NewGormBoardRepository(db)
	chatRepo := gormpersistence.NewGormChatRepository(db)
	historyRepo := gormpersistence.NewGormHistoryRepository(db)
	feedRepo := redisfeed.NewRedisFeedRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// Services
	tokenService, err := service.NewTokenService(cfg.TokenSecret, cfg.TokenExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create TokenService: %w", err)
	}
	historyEnqueuer := worker.NewHistoryEnqueuer(asynqClient)
	roomService := service.NewRoomService(roomRepo, playerRepo, boardRepo, chatRepo, historyRepo, feedRepo, service.RoomConfig{
		DefaultWinCondition: cfg.DefaultWinCondition,
		MaxPlayers:          cfg.MaxPlayers,
		HeartbeatTTL:        cfg.HeartbeatTTL,
	})
	boardService := service.NewBoardService(boardRepo, cfg.BoardPoolSize)
	turnService := service.NewTurnService(roomRepo, playerRepo, chatRepo, feedRepo, historyEnqueuer, service.FirstMoverPolicy(cfg.FirstMover))
	scoreService := service.NewScoreService(roomRepo, playerRepo, chatRepo, feedRepo, historyEnqueuer)
	chatService := service.NewChatService(chatRepo, playerRepo, feedRepo)
	log.Info("Services initialized")

	// Hub 与 Handlers
	// Hub 的快照来源与对账回调都由 WebSocket Handler 提供，构造后回填
	roomHandler := httpHandler.NewRoomHandler(roomService, chatService, tokenService)
	hubInstance := hub.NewHub(feedRepo, nil, cfg.RoomPollInterval, cfg.PlayerPollInterval)
	socketHandler := wsHandler.NewHandler(hubInstance, tokenService, roomService, boardService, turnService, scoreService, chatService)
	hubInstance.SetStateProvider(socketHandler)
	hubInstance.SetReconcileHook(socketHandler.OnReconciled)
	log.Info("Hub and handlers initialized")

	// Worker
	workerServer := worker.NewWorkerServer(redisClientOpt, historyRepo, roomRepo, roomService, cfg.ReapInterval, log)
	log.Info("Worker server initialized")

	// Gin 路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) { /* CORS */
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(feedRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	{
		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", roomHandler.Create)
		api.GET("/rooms/:code", roomHandler.State)
		api.POST("/rooms/:code/join", roomHandler.Join)
	}
	authed := api.Group("").Use(middleware.RoomToken(tokenService))
	{
		authed.POST("/rooms/:code/leave", roomHandler.Leave)
		authed.POST("/rooms/:code/reset", roomHandler.Reset)
		authed.POST("/rooms/:code/heartbeat", roomHandler.Heartbeat)
		authed.GET("/rooms/:code/chat", roomHandler.ChatHistory)
	}
	router.GET("/ws/:code", socketHandler.Serve)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Hub:         hubInstance,
		HttpServer:  httpServer,
	}, nil
}

// Start 启动后台协程和 HTTP 服务器。
func (a *App) Start() {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.Hub.Run(hubCtx)
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	go a.AsynqServer.StartScheduler()
	a.Log.Info("Asynq worker routines started")

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅关闭应用。
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.hubCancel != nil {
		a.hubCancel()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 记录每个 HTTP 请求的结构化日志。
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()
		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
