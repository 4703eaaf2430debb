package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"minigames-backend/internal/config"
	"minigames-backend/internal/handlers"
	"minigames-backend/internal/middleware"
	"minigames-backend/internal/models"
	"minigames-backend/internal/services"
)

// store is everything the engine and handlers need from the storage layer.
// RedisService and MemoryStore both satisfy it.
type store interface {
	services.Ledger
	services.WagerLog
	handlers.Store
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var st store
	if cfg.RedisURL == config.StoreMemory {
		log.Println("Using in-memory store (state will not survive restart)")
		st = services.NewMemoryStore(cfg.StartingBalance)
	} else {
		redisService, err := services.NewRedisService(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisService.Close()
		st = redisService
	}

	jwtService := services.NewJWTService(cfg)

	games := models.DefaultGames(cfg.DiceMinBet, cfg.DiceMaxBet, cfg.CupsMinBet, cfg.CupsMaxBet)
	payouts := services.NewPayoutTable(services.DefaultDicePayouts(), services.DefaultCupsMultiplier)
	engine := services.NewWagerEngine(st, st, services.NewCryptoSource(), payouts, games)

	log.Printf("Dice payback ratio over base table: %.2f", payouts.DicePaybackRatio())

	wsHandler := handlers.NewWebSocketHandler(st)
	engine.SetBroadcaster(wsHandler)

	gameHandler := handlers.NewGameHandler(engine, st)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		minigames := protected.Group("/minigames")
		{
			minigames.GET("/balance", gameHandler.GetBalance)
			minigames.GET("/games", gameHandler.ListGames)
			minigames.GET("/history", gameHandler.GetHistory)

			minigames.GET("/ws", wsHandler.HandleWebSocket)

			dice := minigames.Group("/dice")
			{
				dice.POST("/roll", gameHandler.RollDice)
				dice.GET("/payout-table", gameHandler.DicePayoutTable)
			}

			cups := minigames.Group("/cups")
			{
				cups.POST("/play", gameHandler.PlayCups)
				cups.GET("/info", gameHandler.CupsInfo)
			}
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
