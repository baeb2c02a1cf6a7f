package services

import (
	"errors"
	"log"

	"colour-arcade-backend/models"

	"github.com/gofiber/fiber/v2"
)

// respondDomainError maps a domain error to an HTTP response. The error
// string itself is the stable reason code clients switch on.
func respondDomainError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrWrongFee),
		errors.Is(err, models.ErrInvalidScore),
		errors.Is(err, models.ErrInvalidRange),
		errors.Is(err, models.ErrMaxTenDaysPerCall):
		status = fiber.StatusBadRequest

	case errors.Is(err, models.ErrNotYourSession),
		errors.Is(err, models.ErrOnlyOwner):
		status = fiber.StatusForbidden

	case errors.Is(err, models.ErrAlreadySubmitted),
		errors.Is(err, models.ErrAlreadyClaimed):
		status = fiber.StatusConflict

	case errors.Is(err, models.ErrSessionExpired),
		errors.Is(err, models.ErrDayNotFinished),
		errors.Is(err, models.ErrDayNotOver),
		errors.Is(err, models.ErrNotInTop3),
		errors.Is(err, models.ErrNoRewardsAvailable),
		errors.Is(err, models.ErrClaimWindowExpired),
		errors.Is(err, models.ErrClaimWindowNotExpired),
		errors.Is(err, models.ErrClaimWindowOpen),
		errors.Is(err, models.ErrCantCleanupCurrentDay),
		errors.Is(err, models.ErrInsufficientPool),
		errors.Is(err, models.ErrExceedsPool),
		errors.Is(err, models.ErrExceedsReserve):
		status = fiber.StatusUnprocessableEntity

	default:
		log.Printf("Unexpected error: %v", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
