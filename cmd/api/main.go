package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "orderdesk/api/swagger" // swagger docs
	"orderdesk/internal/config"
	"orderdesk/internal/handler"
	"orderdesk/internal/identity"
	"orderdesk/internal/logger"
	"orderdesk/internal/middleware"
	"orderdesk/internal/model"
	"orderdesk/internal/service"
	"orderdesk/internal/store"
	"orderdesk/internal/websocket"
)

// @title           Purchase Order Panel API
// @version         1.0
// @description     Purchase order management with consecutive numbering, dashboard statistics and role-gated administration.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	log := logger.WithComponent("main")

	st, err := store.New(cfg.StoreDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store initialization failed")
	}
	defer func() { _ = st.Close() }()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	// Dependencies (store -> identity -> services -> handlers)
	provider := identity.NewLocalProvider(st)
	gate := service.NewRoleGate(st, provider)
	numbering := service.NewNumberingService(st)
	audit := service.NewAuditService(st, gate)
	orders := service.NewOrderService(st, gate, numbering, audit, cfg.Buyer)
	defer orders.Close()
	dashboard := service.NewDashboardService()
	users := service.NewUserAdminService(st, gate, provider, audit)

	middleware.Init([]byte(cfg.JWTSecret), provider)

	startupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.SeedAdminEmail != "" && cfg.SeedAdminPassword != "" {
		if err := users.Bootstrap(startupCtx, provider, cfg.SeedAdminEmail, cfg.SeedAdminPassword, cfg.SeedAdminName); err != nil {
			log.Fatal().Err(err).Msg("seed admin bootstrap failed")
		}
	}

	// Warm the order snapshot so the first request does not pay the full load.
	if _, err := orders.LoadSnapshot(startupCtx); err != nil {
		log.Warn().Err(err).Msg("initial snapshot load failed, continuing with empty cache")
	}

	// Live feed: every committed order change republishes the whole snapshot
	// plus derived statistics to connected websocket clients.
	wsHub := websocket.NewHub()
	go wsHub.Run()
	orders.SubscribeSnapshots(func(snapshot map[string]model.Order) {
		list := orders.Filter(snapshot, service.OrderFilter{})
		all := make([]model.Order, 0, len(snapshot))
		for _, order := range snapshot {
			all = append(all, order)
		}
		payload, err := json.Marshal(gin.H{
			"orders": list,
			"stats":  dashboard.Aggregate(all, time.Now()),
		})
		if err != nil {
			log.Error().Err(err).Msg("feed payload marshal failed")
			return
		}
		wsHub.Publish(payload)
	})

	authHandler := handler.NewAuthHandler(provider, gate, cfg.JWTExpiry)
	orderHandler := handler.NewOrderHandler(orders, numbering, nil)
	dashboardHandler := handler.NewDashboardHandler(orders, dashboard)
	userHandler := handler.NewUserHandler(users, audit)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, []byte(cfg.JWTSecret))
	})

	authHandler.RegisterRoutes(router.Group(""))
	orderHandler.RegisterRoutes(router.Group(""))
	dashboardHandler.RegisterRoutes(router.Group(""))
	userHandler.RegisterRoutes(router.Group(""))

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
