package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ebooklab/teaching-backend/internal/handlers"
	"github.com/ebooklab/teaching-backend/internal/logger"
	"github.com/ebooklab/teaching-backend/internal/server"
	"github.com/ebooklab/teaching-backend/internal/services"
	"github.com/ebooklab/teaching-backend/internal/utils"
	"github.com/ebooklab/teaching-backend/internal/voice"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	flipbookEnabled := utils.GetEnvAsBool("FLIPBOOK_ENABLED", true, log)
	pageImagesEnabled := utils.GetEnvAsBool("PAGE_IMAGES_ENABLED", true, log)
	voiceEnabled := utils.GetEnvAsBool("VOICE_INPUT_ENABLED", false, log)
	audioEnabled := utils.GetEnvAsBool("AUDIO_ENABLED", true, log)
	rasterMaxEdge := utils.GetEnvAsInt("RASTER_MAX_EDGE", 1600, log)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	aiClient, err := services.NewAIClient(log)
	if err != nil {
		log.Error("Could not init AIClient", "error", err)
		os.Exit(1)
	}

	var flipbookService services.FlipbookService
	if flipbookEnabled {
		flipbookService, err = services.NewFlipbookService(log)
		if err != nil {
			log.Warn("Could not init FlipbookService, flipbooks disabled", "error", err)
			flipbookService = nil
		}
	}

	textExtractService := services.NewTextExtractService(log)
	rasterizerService := services.NewRasterizerService(log, bucketService, rasterMaxEdge,
		services.NewFitzStrategy(log),
		services.NewPdftoppmStrategy(log),
		services.NewMagickStrategy(log),
		services.NewTextRenderStrategy(log, textExtractService),
	)
	teachingScriptService := services.NewTeachingScriptService(log, aiClient)
	bookService := services.NewBookService(
		log,
		bucketService,
		flipbookService,
		rasterizerService,
		textExtractService,
		teachingScriptService,
		flipbookEnabled,
		pageImagesEnabled,
	)

	// Sessions
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, sessions stay in-memory only", "addr", addr, "error", err)
			rdb = nil
		}
		cancel()
	}
	sessionStore := services.NewSessionStore(log, rdb)
	chatService := services.NewChatService(log, aiClient, sessionStore)

	var ttsService services.TTSService
	if audioEnabled {
		ttsService = services.NewTTSService(log, aiClient)
	}

	// Voice input
	var listener *voice.Listener
	if voiceEnabled {
		speechService, err := services.NewSpeechProviderService(log)
		if err != nil {
			log.Warn("Could not init SpeechProviderService, voice input disabled", "error", err)
		} else {
			defer speechService.Close()
			listener = voice.NewListener(log, voice.NewFFmpegCapturer(log), speechService)
		}
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	bookHandler := handlers.NewBookHandler(log, bookService)
	chatHandler := handlers.NewChatHandler(log, chatService, ttsService)
	voiceHandler := handlers.NewVoiceHandler(log, listener)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:          log,
		BookHandler:  bookHandler,
		ChatHandler:  chatHandler,
		VoiceHandler: voiceHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
