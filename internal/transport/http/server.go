package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "localchat/internal/app"
	"localchat/internal/bootstrap"
	"localchat/internal/cache"
	"localchat/internal/platform/rabbitmq"
	"localchat/internal/repository"
	"localchat/internal/transport/http/handler"
	"localchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(app.Logger),
		middleware.BodyLimit(app.Config.App.MaxRequestBytes),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	if app.Metrics != nil {
		router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	usageRepo := repository.NewUsageRepository(app.MySQL)
	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	deps := appsvc.ChatDeps{
		History: messageRepo,
		Metrics: app.Metrics,
		Logger:  app.Logger,
	}
	if app.Redis != nil {
		deps.Cache = cache.NewSessionCache(
			app.Redis,
			time.Duration(app.Config.Redis.SessionTTLSeconds)*time.Second,
			time.Duration(app.Config.Redis.SessionDirtyTTLSeconds)*time.Second,
		)
	}
	if app.MQConn != nil {
		deps.Usage = rabbitmq.NewUsagePublisher(app.MQConn, app.Config.RabbitMQ.UsageQueue)
	}
	chatService := appsvc.NewChatService(
		sessionRepo,
		app.Generator,
		app.Gate,
		app.Locker,
		app.Config.LLM.DefaultModel,
		deps,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService, usageRepo)
	requireAuth := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(requireAuth)
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.GET("/sessions/:id", chatHandler.GetSession)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/sessions/:id/message", chatHandler.SendMessage)
	chatGroup.GET("/sessions/:id/messages", chatHandler.ListMessages)
	chatGroup.GET("/usage", chatHandler.ListUsage)

	return router
}
