package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kynor-backend/internal/completion"
	"kynor-backend/internal/config"
	"kynor-backend/internal/handler"
	"kynor-backend/internal/mirror"
	"kynor-backend/internal/preference"
	"kynor-backend/internal/service"
	"kynor-backend/internal/storage"
	"kynor-backend/internal/supabase"
	"kynor-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	config.Watch(func(updated *config.Config) {
		logger.SetLevel(updated.Log.Level)
		logger.Infof("配置已更新，日志级别: %s", updated.Log.Level)
	})

	// 初始化存储
	store := storage.New(cfg.Storage.Type, cfg.Storage.DataDir)
	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize %s storage, falling back to memory: %v", cfg.Storage.Type, err)
		store = storage.NewMemoryStorage()
	}

	backupCtx, stopBackups := context.WithCancel(context.Background())
	backupDone := make(chan struct{})
	go func() {
		defer close(backupDone)
		storage.RunBackups(backupCtx, store, cfg.Storage.BackupInterval)
	}()

	prefStore := preference.NewStore(cfg.Preference.Path)
	if err := prefStore.Load(); err != nil {
		logger.Warnf("Failed to load preferences, using defaults: %v", err)
	}

	chatMirror := mirror.New(supabase.NewClient(cfg.Supabase))
	if chatMirror.Enabled() {
		logger.Info("远端镜像已启用")
	}

	gateway := completion.NewGateway(cfg.Completion)
	if !gateway.Configured() {
		logger.Warn("未配置补全接口密钥，发送消息将返回配置错误")
	}

	// 初始化服务
	chatService := service.NewChatService(cfg, store, chatMirror, gateway)
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	chatService.Bootstrap(bootCtx)
	cancelBoot()

	prefService := service.NewPreferenceService(prefStore)

	// 创建路由
	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, handler.Handlers{
		Chat:       handler.NewChatHandler(chatService),
		Preference: handler.NewPreferenceHandler(prefService),
		Catalog:    handler.NewCatalogHandler(cfg),
	})

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// 备份可能正在写盘，等它结束再关闭存储
	stopBackups()
	<-backupDone

	if err := shutdown(ctx, server, chatMirror, store); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
		os.Exit(1)
	}
	logger.Info("服务器已关闭")
}

// shutdown 依次关闭 HTTP 服务、镜像队列和存储，汇总所有错误
func shutdown(ctx context.Context, server *http.Server, m mirror.Mirror, store storage.Storage) error {
	var result *multierror.Error

	if err := server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http server: %w", err))
	}
	if err := m.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("mirror: %w", err))
	}
	if err := store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("storage: %w", err))
	}

	return result.ErrorOrNil()
}
