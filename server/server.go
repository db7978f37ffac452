package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DemoCrate/config"
	"DemoCrate/core/auth"
	"DemoCrate/core/board"
	"DemoCrate/core/ingest"
	"DemoCrate/core/pipeline"
	"DemoCrate/db"
	"DemoCrate/logger"
	"DemoCrate/model"
	"DemoCrate/repository"
	"DemoCrate/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	auth.Init(cfg.JWTSecret, cfg.JWTTTL)

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	// Initialize database schema and seed data
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect gorm: %v", err)
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.DemoTrack{}, &model.DemoVote{}, &model.Organization{}); err != nil {
		log.Fatalf("Failed to migrate models: %v", err)
	}

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer db.CloseRedis()
	logger.Info("connected to Redis")

	demoRepo := repository.NewGormDemoRepository(db.GormDB)
	staffRepo := repository.NewMySQLStaffRepository(db.DB)
	orgRepo := repository.NewGormOrganizationRepository(db.GormDB)

	// 流水线引擎：状态机、投票台账、流转编排器共享同一个存储实现
	machine := pipeline.NewMachine(demoRepo)
	ledger := pipeline.NewLedger(demoRepo)
	orchestrator := pipeline.NewOrchestrator(machine, demoRepo)

	// 看板实时推送
	hub := board.NewHub()
	go hub.Run()
	defer hub.Stop()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 配置了监听目录时启动demo投递watcher
	if cfg.IngestWatchDir != "" {
		watcher := ingest.NewWatcher(cfg.IngestWatchDir, cfg.IngestOrgID, demoRepo, hub)
		go func() {
			if err := watcher.Run(rootCtx); err != nil {
				logger.Error("ingest watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	// 初始化处理器
	apiHandler := NewAPIHandler(demoRepo, staffRepo, orgRepo, machine, ledger, orchestrator, hub, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 员工认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)

	// 投稿与看板
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.CreateSubmissionHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/upload", apiHandler.AuthMiddleware(apiHandler.UploadDemoHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/board", apiHandler.AuthMiddleware(apiHandler.GetBoardHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/board/metrics", apiHandler.AuthMiddleware(apiHandler.MetricsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.GetTrackHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateTrackHandler)).Methods(http.MethodPut)

	// 流水线操作：每个端点对应引擎的一个判定
	router.HandleFunc("/api/tracks/{id}/advance", apiHandler.AuthMiddleware(apiHandler.AdvanceTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/move", apiHandler.AuthMiddleware(apiHandler.MoveTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/reject", apiHandler.AuthMiddleware(apiHandler.RejectTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/contract", apiHandler.AuthMiddleware(apiHandler.ToggleContractHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/vote", apiHandler.AuthMiddleware(apiHandler.CastVoteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/release-setup", apiHandler.AuthMiddleware(apiHandler.ReleaseSetupHandler)).Methods(http.MethodPost)

	// demo音频回放
	router.HandleFunc("/api/tracks/{id}/audio", apiHandler.AuthMiddleware(apiHandler.StreamDemoHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/listen-link", apiHandler.AuthMiddleware(apiHandler.PresignDemoHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/fetch-audio", apiHandler.AuthMiddleware(apiHandler.FetchRemoteDemoHandler)).Methods(http.MethodPost)

	// 分享链接按对外UUID取曲目
	router.HandleFunc("/api/tracks/public/{publicId}", apiHandler.AuthMiddleware(apiHandler.GetTrackByPublicIDHandler)).Methods(http.MethodGet)

	// 厂牌设置与员工管理（owner/sysadmin）
	router.HandleFunc("/api/org/settings", apiHandler.AuthMiddleware(apiHandler.GetOrgSettingsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/org/settings", apiHandler.AuthMiddleware(apiHandler.UpdateOrgSettingsHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/staff/{id}/overrides", apiHandler.AuthMiddleware(apiHandler.UpdateStaffOverridesHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/staff/{id}/role", apiHandler.AuthMiddleware(apiHandler.UpdateStaffRoleHandler)).Methods(http.MethodPut)

	// 看板 WebSocket
	router.HandleFunc("/ws/board", apiHandler.BoardFeedHandler)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("shutting down server")
	cancelRoot()

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
