package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"game-achievement-system/handlers"
	"game-achievement-system/models"
	"game-achievement-system/services"
	"game-achievement-system/stores"
	"game-achievement-system/utils"
	"game-achievement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "game-achievement-system",
	})

	// Load allowed origins from environment variable
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
		AllowOrigins:  allowedOriginsString,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Round{},
		&models.PlayerSession{},
		&models.PlayerObservation{},
		&models.StatsRollup{},
		&models.PlayerAchievement{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// R2 is optional: without it, backfill runs simply skip the audit report
	// upload.
	if os.Getenv("R2_BUCKET_NAME") != "" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set — backfill reports will not be exported")
	}

	roundStore := stores.NewRoundStore(db)
	snapshotStore := stores.NewSnapshotStore(db)
	rollupStore := stores.NewRollupStore(db)
	achievementStore := stores.NewAchievementStore(db)
	backfillStore := stores.NewBackfillStore(db)

	concurrency := utils.EnvInt64("ACHIEVEMENT_CONCURRENCY", services.DefaultConcurrency)
	gamificationService := services.NewGamificationService(roundStore, snapshotStore, rollupStore, achievementStore, concurrency)

	backfillProcessor := services.NewHistoricalBackfillProcessor(backfillStore, achievementStore)
	backfillProcessor.ExportReports = utils.R2Enabled()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rollupWorker := workers.NewRollupWorker(db, utils.EnvDuration("ROLLUP_INTERVAL", 10*time.Minute))
	go rollupWorker.Start(ctx)

	// Exactly one replica may run the incremental cycle: there is no
	// distributed lock, only gocron's in-process singleton mode.
	cycleInterval := utils.EnvDuration("ACHIEVEMENT_CYCLE_INTERVAL", 5*time.Minute)
	scheduler := gamificationService.StartAchievementScheduler(ctx, cycleInterval)

	handlers.SetupAchievementRoutes(app, achievementStore, gamificationService, backfillProcessor)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Stats rollup worker running")
	log.Printf("✅ Achievement cycle running (every %s, concurrency %d)", cycleInterval, concurrency)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
