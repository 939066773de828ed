package main

import (
	"os"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/xjp-ai/xjp-gateway/common/client"
	"github.com/xjp-ai/xjp-gateway/common/config"
	"github.com/xjp-ai/xjp-gateway/common/logger"
	"github.com/xjp-ai/xjp-gateway/model"
	"github.com/xjp-ai/xjp-gateway/relay/billing"
	"github.com/xjp-ai/xjp-gateway/relay/dispatcher"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
	"github.com/xjp-ai/xjp-gateway/router"
)

func main() {
	logger.Logger.Info("xjp gateway starting")

	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	} else if os.Getenv("GIN_MODE") != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := model.InitDB(); err != nil {
		logger.Logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := model.CloseDB(); err != nil {
			logger.Logger.Error("failed to close database", zap.Error(err))
		}
	}()

	reg, err := registry.Load(config.RegistryPath)
	if err != nil {
		logger.Logger.Fatal("failed to load model registry",
			zap.String("path", config.RegistryPath), zap.Error(err))
	}
	logger.Logger.Info("model registry loaded",
		zap.String("path", config.RegistryPath),
		zap.Int("models", len(reg.Models())))

	client.Init()

	pricing := billing.NewPricingCache()
	d := dispatcher.New(reg, billing.NewInterceptor(pricing))

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
	// gzip would break SSE streaming, keep it off.

	router.SetRouter(server, d, reg, pricing)

	logger.Logger.Info("server started", zap.String("address", "http://localhost:"+config.ServerPort))
	if err := server.Run(":" + config.ServerPort); err != nil {
		logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
