package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"colour-arcade-backend/cache"
	"colour-arcade-backend/handlers"
	"colour-arcade-backend/middleware"
	"colour-arcade-backend/models"
	"colour-arcade-backend/services"
	"colour-arcade-backend/utils"
	"colour-arcade-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultEntryFee = 100000 // 0.1 cUSD in micro-units

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitArchive(); err != nil {
		log.Fatal("failed to initialize summary archive:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.EngineState{},
		&models.GameSession{},
		&models.PlayerStats{},
		&models.DailySummary{},
		&models.DailyClaim{},
		&models.GameEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := clockwork.NewRealClock()

	if err := seedEngineState(db, clock); err != nil {
		log.Fatal("failed to seed engine state:", err)
	}

	entryFee := int64(defaultEntryFee)
	if raw := os.Getenv("ENTRY_FEE"); raw != "" {
		entryFee, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || entryFee <= 0 {
			log.Fatalf("invalid ENTRY_FEE %q", raw)
		}
	}

	policy := services.NewRewardPolicyFromEnv(entryFee)

	var lbCache *cache.LeaderboardCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		lbCache = cache.NewLeaderboardCache(addr)
		log.Printf("✅ Leaderboard cache enabled (redis at %s)", addr)
	}

	settlementService := services.NewSettlementService(db, policy, clock, lbCache)
	gameService := services.NewGameService(db, policy, clock, settlementService, entryFee)
	claimService := services.NewClaimService(db, policy, clock, settlementService)
	leaderboardService := services.NewLeaderboardService(db, policy, clock, lbCache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dispatchClient := workers.NewEventDispatchClient(db); dispatchClient != nil {
		go workers.PollEvents(ctx, dispatchClient, 5*time.Second)
	} else {
		log.Println("⚠️  INDEXER_URL not set — event dispatch disabled")
	}

	settlementService.StartSettlementScheduler()

	handlers.SetupGameRoutes(app, gameService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService, settlementService)
	handlers.SetupRewardRoutes(app, claimService, settlementService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Settlement scheduler running (finalize check every minute)")
	log.Printf("✅ Entry fee: %d, reward mode: %s", entryFee, rewardModeName())

	<-ctx.Done()
	log.Println("Shutting down server...")
}

// seedEngineState creates the singleton state row on first boot, anchored
// to the current day.
func seedEngineState(db *gorm.DB, clock clockwork.Clock) error {
	var state models.EngineState
	err := db.First(&state, models.EngineStateID).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	today := models.DayIndex(clock.Now().Unix())
	return db.Create(&models.EngineState{
		ID:               models.EngineStateID,
		CurrentDay:       today,
		OldestTrackedDay: today,
	}).Error
}

func rewardModeName() string {
	if mode := os.Getenv("REWARD_MODE"); mode != "" {
		return mode
	}
	return "percentage"
}
