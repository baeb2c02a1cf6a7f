// handlers/game.go
package handlers

import (
	"colour-arcade-backend/middleware"
	"colour-arcade-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService) {
	// 🔓 Public reads — no user context, still behind Gateway auth
	app.Get("/sessions/:id", gameService.GetSession)
	app.Get("/players/:id/stats", gameService.GetPlayerStats)

	// 🔐 Player actions — require user context from the gateway
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/sessions", gameService.StartGame)
	secured.Post("/sessions/:id/score", gameService.SubmitSessionScore)
}
