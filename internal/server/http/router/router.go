package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/memberpay/internal/server/http/handlers"
	"github.com/polkiloo/memberpay/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.MemberFacade, storage handlers.Pinger, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	authHandler := handlers.NewAuthHandler(facade)
	memberHandler := handlers.NewMemberHandler(facade)
	notificationHandler := handlers.NewNotificationHandler(facade, logger)
	healthHandler := handlers.NewHealthHandler(storage)

	engine.GET("/health", healthHandler.Check)

	api := engine.Group("/api")

	user := api.Group("/user")
	user.POST("/login", authHandler.Login)

	userAuth := user.Group("")
	userAuth.Use(middleware.AuthRequired(facade))
	userAuth.GET("/me", authHandler.Me)

	member := api.Group("/member")
	member.GET("/products", memberHandler.Products)
	member.POST("/orders", memberHandler.CreateOrder)
	member.POST("/orders/native", memberHandler.CreateNativeOrder)
	member.GET("/jsapi-params", memberHandler.JsapiParams)
	member.POST("/notification", notificationHandler.Notify)
	member.POST("/mock-pay", memberHandler.MockPay)

	return engine
}
