package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router serves. UI may be nil.
type Handlers struct {
	Files    *FileHandler
	Commands *CommandHandler
	System   *SystemHandler
	WS       *WSHandler
	UI       http.FileSystem
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger(c).WithField("panic", recovered).Error("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	r.Use(CORS())

	r.GET("/", h.System.Root)
	r.GET("/health", h.System.Health)

	r.POST("/upload", h.Files.Upload)
	r.GET("/files", h.Files.List)
	r.GET("/files/*filename", h.Files.Get)
	r.DELETE("/files/*filename", h.Files.Delete)
	r.GET("/preview.css", h.Files.PreviewCSS)

	r.POST("/command", h.Commands.Execute)

	if h.WS != nil {
		r.GET("/ws", h.WS.HandleWS)
	}
	if h.UI != nil {
		r.StaticFS("/ui", h.UI)
	}

	r.NoRoute(h.System.NoRoute)
	return r
}
