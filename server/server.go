package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metajuke/cache"
	"metajuke/config"
	"metajuke/core/bank"
	"metajuke/core/jukebox"
	"metajuke/db"
	"metajuke/logger"
	"metajuke/metrics"
	"metajuke/repository"
	"metajuke/storage"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// App 服务运行时依赖
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Engine *jukebox.Engine
	Hub    *jukebox.EventHub
	Redis  *redis.Client

	cancel context.CancelFunc
}

// NewApp 按配置组装存储、账本、事件和归档
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	gdb, err := db.OpenGorm(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	app := &App{Config: cfg, DB: gdb, Hub: jukebox.NewEventHub(), cancel: cancel}
	go app.Hub.Run()

	// 事件：启用 Redis 时发布到频道再回流到本地 Hub，多实例共享同一事件流
	var emitter jukebox.Emitter = app.Hub
	if cfg.RedisEnabled {
		client, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = client
		emitter = cache.NewEventPublisher(client, cfg.EventChannel)
		go func() {
			if err := cache.RelayEvents(ctx, client, cfg.EventChannel, app.Hub); err != nil {
				logger.Error("事件订阅中断", logger.ErrorField(err))
			}
		}()
		logger.Info("事件经 Redis 分发", logger.String("channel", cfg.EventChannel))
	}

	var receipts jukebox.ReceiptSink
	if cfg.MinioEndpoint != "" {
		client, err := storage.NewMinioClient(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		receipts = storage.NewReceiptArchive(client, cfg.MinioBucket)
		logger.Info("收据归档已启用", logger.String("bucket", cfg.MinioBucket))
	}

	store := repository.NewGormStore(gdb)
	app.Engine, err = jukebox.NewEngine(jukebox.Options{
		Store:    store,
		Bank:     bank.NewLedger(store),
		Emitter:  emitter,
		Receipts: receipts,
		Metrics:  metrics.Jukebox(),
		Custody:  cfg.CustodyAccount,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close 释放连接
func (a *App) Close() {
	a.cancel()
	a.Hub.Stop()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("关闭 Redis 失败", logger.ErrorField(err))
		}
	}
	if err := db.CloseGorm(a.DB); err != nil {
		logger.Warn("关闭数据库失败", logger.ErrorField(err))
	}
}

// Handler 构建完整路由
func (a *App) Handler() http.Handler {
	return NewRouter(NewAPIHandler(a.Engine, a.Config.JWTSecret), NewEventStreamHandler(a.Hub, a.Config.JWTSecret))
}

// NewRouter 注册全部路由
func NewRouter(api *APIHandler, stream http.Handler) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/healthz", api.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Handle("/ws/events", stream).Methods(http.MethodGet)

	// 平台
	router.HandleFunc("/api/platform", api.AuthMiddleware(api.InitializeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/platform", api.GetConfigHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/platform/fee", api.AuthMiddleware(api.UpdateFeeHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/platform/mint", api.AuthMiddleware(api.MintHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/platform/stats", api.GetStatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/platform/custody", api.GetCustodyHandler).Methods(http.MethodGet)

	// 用户与艺人
	router.HandleFunc("/api/users", api.AuthMiddleware(api.RegisterUserHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/users/me", api.AuthMiddleware(api.UpdateProfileHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/users/{address}", api.GetUserHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/artists", api.AuthMiddleware(api.RegisterArtistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/artists/me/withdraw", api.AuthMiddleware(api.WithdrawHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/artists/{address}", api.GetArtistHandler).Methods(http.MethodGet)

	// 曲目
	router.HandleFunc("/api/tracks", api.AuthMiddleware(api.MintTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/count", api.GetTrackCountHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", api.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", api.AuthMiddleware(api.UpdateTrackHandler)).Methods(http.MethodPut)

	// 桌台
	router.HandleFunc("/api/tables", api.AuthMiddleware(api.CreateTableHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}", api.GetTableHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tables/{id}", api.AuthMiddleware(api.UpdateTableHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/tables/{id}/status", api.AuthMiddleware(api.SetStatusHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/tables/{id}/queue", api.GetQueueHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tables/{id}/members", api.ListMembersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tables/{id}/members/{address}", api.GetMemberStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tables/{id}/join", api.AuthMiddleware(api.JoinTableHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}/leave", api.AuthMiddleware(api.LeaveTableHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}/admins", api.AuthMiddleware(api.AddAdminHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}/admins/{address}", api.AuthMiddleware(api.RemoveAdminHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/tables/{id}/skip", api.AuthMiddleware(api.VoteSkipHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}/advance", api.AuthMiddleware(api.AdvanceQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}/requests", api.AuthMiddleware(api.RequestTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tables/{id}/requests", api.ListTableRequestsHandler).Methods(http.MethodGet)

	// 收据
	router.HandleFunc("/api/requests/{id}", api.GetRequestHandler).Methods(http.MethodGet)

	return router
}

// Start 初始化依赖并启动 HTTP 服务，收到退出信号后优雅关闭
func Start(cfg *config.Config) error {
	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer app.Close()

	// 设置服务器超时
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-stop:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
