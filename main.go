package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/graceful"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/middleware"
	"github.com/skybridge-ai/bedrock-gateway/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/adaptor/bedrock"
	"github.com/skybridge-ai/bedrock-gateway/router"
)

func main() {
	common.Init()
	logger.SetupLogger()

	logger.Logger.Info("bedrock gateway started", zap.String("version", common.Version))

	if config.GinMode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Persistence and upstream clients.
	model.InitDB()
	if err := common.InitRedisClient(); err != nil {
		logger.Logger.Fatal("failed to initialize Redis", zap.Error(err))
	}
	if err := bedrock.Init(); err != nil {
		logger.Logger.Fatal("failed to initialize Bedrock runtime", zap.Error(err))
	}

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	// This will cause SSE not to work!!!
	//server.Use(gzip.Gzip(gzip.DefaultCompression))
	server.Use(middleware.RequestId())
	server.Use(middleware.TracingMiddleware())

	if config.EnablePrometheusMetrics {
		server.GET("/metrics", gin.WrapH(promhttp.Handler()))
		logger.Logger.Info("Prometheus metrics endpoint available at /metrics")
	}

	router.SetRouter(server)

	port := config.ServerPort
	if port == "" {
		port = strconv.Itoa(*common.Port)
	}

	// No WriteTimeout: streamed responses stay open for minutes and enforce
	// their own deadline per request.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost:"+port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	// Flip readiness first so the balancer stops routing new work, then close
	// listeners and wait for in-flight requests and pending usage writes.
	graceful.SetDraining()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("http server shutdown did not complete cleanly", zap.Error(err))
	}
	if err := graceful.Drain(ctx); err != nil {
		logger.Logger.Error("pending usage writes were abandoned", zap.Error(err))
	}
	logger.Logger.Info("bedrock gateway stopped")
}
