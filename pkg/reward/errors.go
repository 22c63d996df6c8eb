package reward

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrNotReady            = errors.New("farm claim not ready")
	ErrAlreadyClaimedToday = errors.New("daily check-in already claimed today")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrAlreadyCompleted    = errors.New("task already completed")
	ErrAlreadySubmitted    = errors.New("task already submitted")
	ErrInvalidTask         = errors.New("invalid task")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrInvalidInput        = errors.New("invalid input")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrNotEligible         = errors.New("not eligible")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrReconciliation      = errors.New("account and transaction log diverged")
)

// NotReadyError is returned when a farm claim is attempted before the cooldown ends.
type NotReadyError struct {
	ReadyAt   time.Time
	Remaining time.Duration
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: ready in %s", ErrNotReady, e.Remaining.Round(time.Second))
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// AlreadyClaimedTodayError is returned for a second check-in on the same calendar date.
type AlreadyClaimedTodayError struct {
	NextClaimTime time.Time
	Remaining     time.Duration
}

func (e *AlreadyClaimedTodayError) Error() string {
	return fmt.Sprintf("%s: next check-in in %s", ErrAlreadyClaimedToday, e.Remaining.Round(time.Second))
}

func (e *AlreadyClaimedTodayError) Unwrap() error { return ErrAlreadyClaimedToday }
