// handlers/leaderboard.go
package handlers

import (
	"colour-arcade-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService, settlementService *services.SettlementService) {
	// All reads are public (gateway-authenticated only).
	app.Get("/leaderboard/current", leaderboardService.GetCurrentTop3)
	app.Get("/leaderboard/:day", leaderboardService.GetDailyTop3)
	app.Get("/leaderboard/:day/summary", leaderboardService.GetDailySummary)
	app.Get("/status", settlementService.Status)
}
