package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ebooklab/teaching-backend/internal/handlers"
	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/middleware"
	"github.com/ebooklab/teaching-backend/internal/utils"
)

type RouterConfig struct {
	Log          *logger.Logger
	BookHandler  *handlers.BookHandler
	ChatHandler  *handlers.ChatHandler
	VoiceHandler *handlers.VoiceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))

	origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5174,http://localhost:8080", cfg.Log), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Session-ID"},
		AllowCredentials: true,
	}))

	router.GET("/health", handlers.HealthCheck)

	// Books
	router.POST("/upload-pdf", cfg.BookHandler.UploadPDF)
	router.GET("/books", cfg.BookHandler.ListBooks)
	router.GET("/books/:id", cfg.BookHandler.GetBook)

	// Assistant
	router.POST("/chat", cfg.ChatHandler.Chat)
	router.POST("/generate_audio", cfg.ChatHandler.GenerateAudio)
	router.POST("/read-teaching-script", cfg.ChatHandler.ReadTeachingScript)
	router.POST("/read-page", cfg.ChatHandler.ReadPage)

	// Voice input
	router.GET("/voice-input", cfg.VoiceHandler.GetVoiceInput)
	router.POST("/start-voice-listening", cfg.VoiceHandler.StartVoiceListening)
	router.POST("/stop-voice-listening", cfg.VoiceHandler.StopVoiceListening)

	return router
}
