package handlers

import (
	"strconv"
	"time"

	"game-achievement-system/middleware"
	"game-achievement-system/models"
	"game-achievement-system/services"
	"game-achievement-system/stores"

	"github.com/gofiber/fiber/v2"
)

// SetupAchievementRoutes wires the read API and the admin endpoints. The
// read side is plain store queries; the admin side triggers the processors
// synchronously and is guarded by the service token.
func SetupAchievementRoutes(app *fiber.App, store *stores.AchievementStore, gamification *services.GamificationService, backfill *services.HistoricalBackfillProcessor) {
	app.Get("/s/achievements/:player", func(c *fiber.Ctx) error {
		player := c.Params("player")
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 20
		}

		query := store.DB.Model(&models.PlayerAchievement{}).Where("player_name = ?", player)

		if typ := models.AchievementType(c.Query("type")); typ != "" {
			if !typ.Valid() {
				return c.Status(400).JSON(fiber.Map{"error": "unknown achievement type"})
			}
			query = query.Where("achievement_type = ?", typ)
		}
		if tier := models.Tier(c.Query("tier")); tier != "" {
			if !tier.Valid() {
				return c.Status(400).JSON(fiber.Map{"error": "unknown tier"})
			}
			query = query.Where("tier = ?", tier)
		}

		order := "achieved_at DESC"
		switch c.Query("sort") {
		case "", "achieved_at_desc":
		case "achieved_at_asc":
			order = "achieved_at ASC"
		case "processed_at_desc":
			order = "processed_at DESC"
		case "processed_at_asc":
			order = "processed_at ASC"
		default:
			return c.Status(400).JSON(fiber.Map{"error": "unknown sort order"})
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to count achievements", "cause": err.Error()})
		}

		var rows []models.PlayerAchievement
		if err := query.Order(order).Limit(size).Offset((page - 1) * size).Find(&rows).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch achievements", "cause": err.Error()})
		}

		return c.JSON(fiber.Map{
			"player":       player,
			"achievements": rows,
			"page":         page,
			"size":         size,
			"total_items":  total,
			"total_pages":  (total + int64(size) - 1) / int64(size),
		})
	})

	app.Get("/s/achievements/:player/summary", func(c *fiber.Ctx) error {
		player := c.Params("player")

		type bucket struct {
			AchievementType models.AchievementType `json:"achievement_type"`
			Tier            models.Tier            `json:"tier"`
			Count           int64                  `json:"count"`
		}
		var buckets []bucket
		err := store.DB.Model(&models.PlayerAchievement{}).
			Select("achievement_type, tier, COUNT(*) AS count").
			Where("player_name = ?", player).
			Group("achievement_type, tier").
			Scan(&buckets).Error
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to summarize achievements", "cause": err.Error()})
		}

		var total int64
		byType := map[models.AchievementType]int64{}
		byTier := map[models.Tier]int64{}
		for _, b := range buckets {
			total += b.Count
			byType[b.AchievementType] += b.Count
			byTier[b.Tier] += b.Count
		}

		return c.JSON(fiber.Map{
			"player":    player,
			"total":     total,
			"by_type":   byType,
			"by_tier":   byTier,
			"breakdown": buckets,
		})
	})

	app.Get("/s/leaderboard/achievements", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "25"))
		if limit < 1 || limit > 100 {
			limit = 25
		}

		type entry struct {
			PlayerName string `json:"player_name"`
			Total      int64  `json:"total"`
			Legend     int64  `json:"legend"`
			Gold       int64  `json:"gold"`
		}
		var entries []entry
		err := store.DB.Model(&models.PlayerAchievement{}).
			Select(`player_name,
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE tier = 'legend') AS legend,
				COUNT(*) FILTER (WHERE tier = 'gold') AS gold`).
			Group("player_name").
			Order("total DESC, legend DESC, player_name ASC").
			Limit(limit).
			Scan(&entries).Error
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to build leaderboard", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"leaderboard": entries})
	})

	app.Get("/s/badges", func(c *fiber.Ctx) error {
		if raw := c.Query("category"); raw != "" {
			category := models.Category(raw)
			if !category.Valid() {
				return c.Status(400).JSON(fiber.Map{"error": "unknown category"})
			}
			return c.JSON(models.BadgesByCategory[category])
		}
		return c.JSON(models.BadgeCatalog)
	})

	// Admin endpoints — service token required.
	adminGroup := app.Group("/s/admin", middleware.ServiceAuthMiddleware())

	adminGroup.Post("/achievements/process", func(c *fiber.Ctx) error {
		result, err := gamification.ProcessNewAchievements(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "achievement cycle failed", "cause": err.Error()})
		}
		return c.JSON(result)
	})

	adminGroup.Post("/achievements/process/round/:id", func(c *fiber.Ctx) error {
		result, err := gamification.ProcessRound(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "round reprocessing failed", "cause": err.Error()})
		}
		return c.JSON(result)
	})

	adminGroup.Post("/achievements/backfill", func(c *fiber.Ctx) error {
		type Req struct {
			From string `json:"from"` // RFC3339
			To   string `json:"to"`   // RFC3339
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		from, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid from (use RFC3339)"})
		}
		to, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid to (use RFC3339)"})
		}

		report, err := backfill.RunBackfill(c.Context(), from, to)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "backfill failed", "cause": err.Error()})
		}
		return c.JSON(report)
	})

	adminGroup.Post("/achievements/invalidate/:player", func(c *fiber.Ctx) error {
		player := c.Params("player")
		removed, err := gamification.Milestones().InvalidateMilestones(c.Context(), player)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "invalidation failed", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{
			"player":  player,
			"removed": removed,
		})
	})
}
