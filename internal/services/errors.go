package services

import (
	"ppplay-api/internal/apperrors"
)

var (
	ErrInsufficientPoints = apperrors.New(apperrors.ErrCodeInsufficientPoints, "insufficient points")
	ErrAccountNotFound    = apperrors.NotFound("points account not found")
	ErrUserNotFound       = apperrors.NotFound("user not found")
	ErrConcurrentUpdate   = apperrors.Conflict("points account changed concurrently, please retry")

	ErrMarketNotFound      = apperrors.NotFound("market not found")
	ErrMarketNotOpen       = apperrors.Validation("market is not open for voting")
	ErrMarketClosed        = apperrors.Validation("market is already closed")
	ErrMarketNotPending    = apperrors.Conflict("market is not pending approval")
	ErrMarketNotDeleted    = apperrors.Conflict("market is not deleted")
	ErrMarketDeleted       = apperrors.Conflict("market is already deleted")
	ErrMarketNotSettleable = apperrors.Conflict("market cannot be settled in its current status")
	ErrVotingNotEnded      = apperrors.Conflict("voting has not ended yet")
	ErrAlreadySettled      = apperrors.Conflict("market is already settled")
	ErrInvalidResult       = apperrors.Validation("result must be yes, no or cancelled")

	ErrInvalidOption  = apperrors.Validation("predicted option must be yes or no")
	ErrAlreadyVoted   = apperrors.New(apperrors.ErrCodeAlreadyExists, "already voted on this market")
	ErrDailyVoteLimit = apperrors.New(apperrors.ErrCodeRateLimitExceeded, "daily vote limit reached")

	ErrAlreadyCheckedIn = apperrors.New(apperrors.ErrCodeAlreadyExists, "already checked in today")

	ErrNicknameTaken = apperrors.New(apperrors.ErrCodeAlreadyExists, "nickname is already taken")

	ErrCommentNotFound  = apperrors.NotFound("comment not found")
	ErrCommentForbidden = apperrors.Forbidden("you can only delete your own comments")
	ErrParentMismatch   = apperrors.Validation("parent comment belongs to another market")

	ErrNotificationNotFound = apperrors.NotFound("notification not found")

	ErrRateLimited = apperrors.New(apperrors.ErrCodeRateLimitExceeded, "too many requests, please slow down")
)
