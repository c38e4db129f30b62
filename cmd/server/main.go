package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/FlemingJohn/FlexiGift/internal/events"
	"github.com/FlemingJohn/FlexiGift/internal/model"
	"github.com/FlemingJohn/FlexiGift/internal/repository"
	"github.com/FlemingJohn/FlexiGift/internal/service"
	"github.com/FlemingJohn/FlexiGift/pkg/config"
	"github.com/FlemingJohn/FlexiGift/pkg/database"
	apperrors "github.com/FlemingJohn/FlexiGift/pkg/errors"
	"github.com/FlemingJohn/FlexiGift/pkg/logger"
)

func main() {
	// Get configuration from environment variables
	mongoURI := config.GetEnv("MONGO_URI", "mongodb://localhost:27017")
	dbName := config.GetEnv("MONGO_DB", "flexigift")
	port := config.GetEnv("PORT", "8080")
	redisAddr := config.GetEnv("REDIS_ADDR", "")
	eventsChannel := config.GetEnv("EVENTS_CHANNEL", "flexigift.events")
	asset := config.GetEnv("ASSET", "USDC")

	log, err := logger.New(config.GetEnv("LOG_MODE", "dev"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoDB, err := database.Connect(ctx, mongoURI, dbName)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", "error", err)
	}
	defer func() {
		if err := mongoDB.Disconnect(context.Background()); err != nil {
			log.Error("error disconnecting from MongoDB", "error", err)
		}
	}()

	log.Info("connected to MongoDB", "database", dbName)

	// Event publisher: Redis when configured, otherwise a no-op
	var publisher events.Publisher = events.NoopPublisher{}
	if redisAddr != "" {
		redisPublisher, err := events.NewRedisPublisher(ctx, redisAddr, eventsChannel)
		if err != nil {
			log.Fatal("failed to connect to Redis", "error", err)
		}
		defer redisPublisher.Close()
		publisher = redisPublisher
		log.Info("publishing events to Redis", "channel", eventsChannel)
	}

	// Initialize repositories
	cardRepo := repository.NewGiftCardRepository(mongoDB.Database)
	merchantRepo := repository.NewMerchantRepository(mongoDB.Database)
	stateRepo := repository.NewStateRepository(mongoDB.Database)

	// Initialize service
	uow := database.NewUnitOfWork(mongoDB.Client)
	transfer := service.NewCustodyTransfer(asset)
	svc := service.NewGiftCardService(cardRepo, merchantRepo, stateRepo, uow, transfer, publisher, log)

	// Setup Gin router
	router := setupRouter(svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

func setupRouter(svc *service.GiftCardService) *gin.Engine {
	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.Default())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		api.POST("/admin/initialize", initializeHandler(svc))
		api.POST("/admin/pause", pauseHandler(svc, true))
		api.POST("/admin/unpause", pauseHandler(svc, false))

		api.POST("/giftcards", createGiftCardHandler(svc))
		api.GET("/giftcards/:id", getGiftCardHandler(svc))
		api.POST("/giftcards/:id/redeem", redeemHandler(svc))
		api.POST("/giftcards/:id/refund", refundHandler(svc))

		api.POST("/merchants", addMerchantHandler(svc))
		api.GET("/merchants/:id", getMerchantHandler(svc))
	}

	return router
}

// initializeHandler handles POST /api/admin/initialize
func initializeHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.InitializeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := svc.Initialize(c.Request.Context(), &req); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "ledger initialized"})
	}
}

// createGiftCardHandler handles POST /api/giftcards
func createGiftCardHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateGiftCardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id, err := svc.CreateGiftCard(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, model.CreateGiftCardResponse{GiftCardID: id})
	}
}

// getGiftCardHandler handles GET /api/giftcards/:id
func getGiftCardHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		card, err := svc.GetGiftCard(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, card)
	}
}

// redeemHandler handles POST /api/giftcards/:id/redeem
func redeemHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		var req model.RedeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		remaining, err := svc.Redeem(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, model.RedeemResponse{RemainingBalance: remaining})
	}
}

// refundHandler handles POST /api/giftcards/:id/refund
func refundHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		var req model.RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		amount, err := svc.Refund(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, model.RefundResponse{RefundAmount: amount})
	}
}

// addMerchantHandler handles POST /api/merchants
func addMerchantHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.AddMerchantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id, err := svc.AddMerchant(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, model.AddMerchantResponse{MerchantID: id})
	}
}

// getMerchantHandler handles GET /api/merchants/:id
func getMerchantHandler(svc *service.GiftCardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		name, found, err := svc.GetMerchantName(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "merchant not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"merchant_id": id, "name": name})
	}
}

// pauseHandler handles POST /api/admin/pause and /api/admin/unpause
func pauseHandler(svc *service.GiftCardService, pause bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.PauseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		var err error
		if pause {
			err = svc.Pause(c.Request.Context(), req.Caller)
		} else {
			err = svc.Unpause(c.Request.Context(), req.Caller)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"paused": pause})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrGiftCardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrPaused):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidAmount),
		errors.Is(err, apperrors.ErrInvalidExpiry),
		errors.Is(err, apperrors.ErrMessageTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrGiftCardInactive),
		errors.Is(err, apperrors.ErrGiftCardExpired),
		errors.Is(err, apperrors.ErrInsufficientBalance),
		errors.Is(err, apperrors.ErrMerchantNotAllowed),
		errors.Is(err, apperrors.ErrAlreadyInitialized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotInitialized):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrTransferFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
