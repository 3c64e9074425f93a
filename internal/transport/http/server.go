package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "github.com/jordan1monts/COP3060FINAL/internal/app"
	"github.com/jordan1monts/COP3060FINAL/internal/bootstrap"
	"github.com/jordan1monts/COP3060FINAL/internal/cache"
	"github.com/jordan1monts/COP3060FINAL/internal/repository"
	"github.com/jordan1monts/COP3060FINAL/internal/transport/http/handler"
	"github.com/jordan1monts/COP3060FINAL/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	suggestionRepo := repository.NewSuggestionRepository(app.MySQL)
	listCache := cache.NewSuggestionListCache(
		app.Redis,
		time.Duration(app.Config.Redis.ListTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.ListDirtyTTLSeconds)*time.Second,
	)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	suggestionService := appsvc.NewSuggestionService(
		suggestionRepo,
		app.Generator,
		app.AuditPublisher,
		listCache,
	)
	authHandler := handler.NewAuthHandler(authService)
	suggestionHandler := handler.NewSuggestionHandler(suggestionService)

	secret := app.Config.Auth.JWTSecret
	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", middleware.AuthJWT(secret), authHandler.Me)

	suggestionGroup := v1.Group("/suggestions")
	suggestionGroup.GET("", middleware.AuthOptional(secret), suggestionHandler.List)
	suggestionGroup.POST("", middleware.AuthJWT(secret), suggestionHandler.Create)
	suggestionGroup.GET("/:entryNumber", middleware.AuthJWT(secret), suggestionHandler.Get)
	suggestionGroup.PUT("/:entryNumber", middleware.AuthJWT(secret), suggestionHandler.Update)
	suggestionGroup.DELETE("/:entryNumber", middleware.AuthJWT(secret), suggestionHandler.Delete)

	return router
}
