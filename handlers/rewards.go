// handlers/rewards.go
package handlers

import (
	"colour-arcade-backend/middleware"
	"colour-arcade-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, claimService *services.ClaimService, settlementService *services.SettlementService) {
	// 🔐 Player claims
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/rewards/:day/claimable", claimService.Claimable)
	secured.Post("/rewards/claim-batch", claimService.ClaimBatch)
	secured.Post("/rewards/:day/claim", claimService.Claim)

	// 🔒 Operator surface — admin role on top of user context
	admin := secured.Group("/admin", middleware.OwnerOnlyMiddleware())

	admin.Post("/finalize", settlementService.Finalize)
	admin.Post("/cleanup", settlementService.Cleanup)
	admin.Get("/rewards/:day/can-reclaim", claimService.CanReclaim)
	admin.Post("/rewards/:day/reclaim", claimService.Reclaim)
	admin.Post("/pool/add", claimService.PoolAdd)
	admin.Post("/pool/withdraw", claimService.PoolWithdraw)
	admin.Post("/reserve/withdraw", claimService.ReserveWithdraw)
}
