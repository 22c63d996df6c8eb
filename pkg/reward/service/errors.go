package service

import (
	"errors"

	apperrors "github.com/chainsafe/qtx-rewards/pkg/app/errors"
	"github.com/chainsafe/qtx-rewards/pkg/reward"
)

// toServiceError maps reward errors to service error categories.
// The original error stays in the chain for errors.Is checks.
func toServiceError(err error) error {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		return err
	}

	var notReady *reward.NotReadyError
	if errors.As(err, &notReady) {
		return apperrors.TooEarlyError(err, "farm claim not ready", notReady.Remaining)
	}
	var today *reward.AlreadyClaimedTodayError
	if errors.As(err, &today) {
		return apperrors.WithRetryAfter(
			apperrors.ConflictError(err, "daily check-in already claimed today"), today.Remaining)
	}

	switch {
	case errors.Is(err, reward.ErrAccountNotFound):
		return apperrors.ResourceNotFoundError(err, "account not found")
	case errors.Is(err, reward.ErrAlreadyClaimed):
		return apperrors.ConflictError(err, "reward already claimed")
	case errors.Is(err, reward.ErrAlreadyCompleted):
		return apperrors.ConflictError(err, "task already completed")
	case errors.Is(err, reward.ErrAlreadySubmitted):
		return apperrors.ConflictError(err, "a different id was already submitted for this task")
	case errors.Is(err, reward.ErrInvalidTask):
		return apperrors.BadRequestError(err, "invalid task")
	case errors.Is(err, reward.ErrInvalidProduct):
		return apperrors.BadRequestError(err, "invalid product")
	case errors.Is(err, reward.ErrInvalidInput):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, reward.ErrWalletNotConnected):
		return apperrors.ForbiddenError(err, "wallet not connected")
	case errors.Is(err, reward.ErrNotEligible):
		return apperrors.ForbiddenError(err, "not eligible")
	case errors.Is(err, reward.ErrUpstreamUnavailable):
		return apperrors.DependencyFailureError(err, "payment verification unavailable, try again later")
	case errors.Is(err, reward.ErrVerificationFailed):
		return apperrors.PaymentRequiredError(err, "verification failed")
	case errors.Is(err, reward.ErrConflict):
		return apperrors.RecoveringError(err, "concurrent update, try again")
	}
	return apperrors.GeneralError(err)
}

func isClientError(err error) bool {
	return !apperrors.IsInternalError(err)
}
