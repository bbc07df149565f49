package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stratagem-ai/internal/bootstrap"
	"stratagem-ai/internal/transport/http/handler"
	"stratagem-ai/internal/transport/http/middleware"
	"stratagem-ai/internal/transport/http/response"
)

// maxUploadMemory caps what a multipart upload buffers in memory; the rest
// spills to temp files.
const maxUploadMemory = 32 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = maxUploadMemory

	healthHandler := handler.NewHealthHandler(app)
	workspaceHandler := handler.NewWorkspaceHandler(app.Sessions, app.Renderer, app.Config.App.SecureCookie)
	chatHandler := handler.NewChatHandler(app.Chat, app.Analysis, app.Encoder)
	limiter := newLimiter(app)
	eventsHandler := handler.NewEventsHandler(app.Chat, limiter, nil)

	router.GET("/healthz", healthHandler.Check)
	router.POST("/api/v1/sessions", workspaceHandler.NewSession)

	session := middleware.Session(app.Sessions, app.Config.App.SecureCookie)

	withSession := router.Group("/")
	withSession.Use(session)
	withSession.GET("/", workspaceHandler.Page)
	withSession.GET("/fragments/transcript", workspaceHandler.TranscriptFragment)
	withSession.GET("/fragments/analysis", workspaceHandler.AnalysisFragment)

	v1 := withSession.Group("/api/v1")
	v1.GET("/state", workspaceHandler.State)
	v1.GET("/events", eventsHandler.Stream)
	v1.GET("/ws", eventsHandler.Socket)
	v1.DELETE("/attachments/:index", chatHandler.RemoveAttachment)

	// Writes that reach the model. The limiter goes first so a rejected
	// request never creates a session.
	limited := router.Group("/api/v1")
	if limiter != nil {
		limited.Use(middleware.RateLimit(limiter))
	}
	limited.Use(session)
	limited.POST("/attachments", chatHandler.AddAttachments)
	limited.POST("/messages", chatHandler.SendMessage)
	limited.POST("/analyses", chatHandler.Analyze)

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "not found")
	})
	return router
}

func newLimiter(app *bootstrap.App) middleware.Limiter {
	rl := app.Config.RateLimit
	if !rl.Enabled {
		return nil
	}
	if app.Redis != nil {
		return middleware.NewRedisLimiter(app.Redis, rl.KeyPrefix, rl.Requests, rl.Window())
	}
	return middleware.NewLocalLimiter(rl.Requests, rl.Window())
}
