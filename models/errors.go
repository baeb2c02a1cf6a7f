package models

import "errors"

// Domain errors. The string values are the canonical reason codes the
// frontend and the indexer already key on, so they stay stable.
var (
	// Input validation
	ErrWrongFee          = errors.New("WrongFee")
	ErrInvalidScore      = errors.New("InvalidScore")
	ErrInvalidRange      = errors.New("InvalidRange")
	ErrMaxTenDaysPerCall = errors.New("MaxTenDaysPerCall")

	// Authorization
	ErrNotYourSession = errors.New("NotYourSession")
	ErrOnlyOwner      = errors.New("OnlyOwner")

	// Temporal / lifecycle
	ErrSessionExpired        = errors.New("SessionExpired")
	ErrAlreadySubmitted      = errors.New("AlreadySubmitted")
	ErrDayNotFinished        = errors.New("DayNotFinished")
	ErrDayNotOver            = errors.New("DayNotOver")
	ErrNotInTop3             = errors.New("NotInTop3")
	ErrAlreadyClaimed        = errors.New("AlreadyClaimed")
	ErrNoRewardsAvailable    = errors.New("NoRewardsAvailable")
	ErrClaimWindowExpired    = errors.New("ClaimWindowExpired")
	ErrClaimWindowNotExpired = errors.New("ClaimWindowNotExpired")
	ErrClaimWindowOpen       = errors.New("ClaimWindowOpen")
	ErrCantCleanupCurrentDay = errors.New("CantCleanupCurrentDay")

	// Resource
	ErrInsufficientPool = errors.New("InsufficientPool")
	ErrExceedsPool      = errors.New("ExceedsPool")
	ErrExceedsReserve   = errors.New("ExceedsReserve")
)
