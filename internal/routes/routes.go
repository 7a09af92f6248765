package routes

import (
	"github.com/gin-gonic/gin"

	"commentboard/internal/handlers"
	"commentboard/internal/logging"
	"commentboard/internal/middleware"
	"commentboard/internal/ratelimit"
	"commentboard/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	commentHandler *handlers.CommentHandler,
	healthHandler *handlers.HealthHandler,
	sessions *services.SessionIssuer,
	limiter ratelimit.Limiter,
	log logging.Logger,
) *gin.Engine {
	throttle := middleware.Throttle(limiter, log)

	// ---- public
	r.GET("/health", healthHandler.Health)
	r.POST("/signup", authHandler.Signup)
	r.POST("/login", throttle, authHandler.Login)
	r.POST("/confirm+email", throttle, authHandler.ConfirmEmail)
	r.POST("/resend+code", throttle, authHandler.ResendCode)
	r.POST("/logout", authHandler.Logout)

	// ---- session
	r.POST("/add+comment", middleware.RequireSession(sessions), commentHandler.AddComment)

	return r
}
