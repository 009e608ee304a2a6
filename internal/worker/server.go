package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/repository"
	"github.com/you-joon/bingoruzzol/internal/service"
	"github.com/you-joon/bingoruzzol/internal/tasks"
)

// WorkerServer 封装 Asynq Server 与 Scheduler 的启动和关闭逻辑。
// Server 消费审计落库与回收任务，Scheduler 周期性投递回收任务。
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       *logrus.Entry

	historyRepo repository.HistoryRepository
	roomRepo    repository.RoomRepository
	rooms       *service.RoomService

	reapInterval string
}

// NewWorkerServer 创建 WorkerServer 实例。
// reapInterval 是 Scheduler 的 cron/interval 表达式，空串时取每分钟一次。
func NewWorkerServer(
	redisOpt asynq.RedisClientOpt,
	historyRepo repository.HistoryRepository,
	roomRepo repository.RoomRepository,
	rooms *service.RoomService,
	reapInterval string,
	logger *logrus.Logger,
) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")
	if reapInterval == "" {
		reapInterval = "@every 1m"
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	return &WorkerServer{
		server:       server,
		scheduler:    scheduler,
		log:          logEntry,
		historyRepo:  historyRepo,
		roomRepo:     roomRepo,
		rooms:        rooms,
		reapInterval: reapInterval,
	}
}

// Start 运行 Worker Server 与 Scheduler，各自应在单独的 goroutine 中调用。
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeHistoryPersistence, NewHistoryPersistenceHandler(ws.historyRepo).ProcessTask)
	mux.HandleFunc(tasks.TypeStaleReap, NewStaleReapHandler(ws.roomRepo, ws.rooms).ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		}
		ws.log.Info("Worker server stopped.")
	}
}

// StartScheduler 注册周期任务并运行 Scheduler。
func (ws *WorkerServer) StartScheduler() {
	entryID, err := ws.scheduler.Register(ws.reapInterval, tasks.NewStaleReapTask(), asynq.Queue("default"))
	if err != nil {
		ws.log.Fatalf("Could not register stale reap task: %v", err)
	}
	ws.log.WithFields(logrus.Fields{"entry_id": entryID, "interval": ws.reapInterval}).Info("Stale reap task scheduled")

	if err := ws.scheduler.Run(); err != nil {
		ws.log.Fatalf("Could not run scheduler: %v", err)
	}
}

// Shutdown 优雅关闭 Worker Server 与 Scheduler。
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
