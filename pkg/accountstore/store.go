package accountstore

import (
	"context"
	"errors"

	"github.com/chainsafe/qtx-rewards/pkg/account"
)

var (
	// ErrAccountNotFound is returned when a lookup finds no matching account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when creating an account whose user id is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrReferralCodeTaken is returned when a generated referral code collides.
	ErrReferralCodeTaken = errors.New("referral code already in use")
	// ErrTaskCompleted is returned when a task completion is already recorded.
	ErrTaskCompleted = errors.New("task already completed")
	// ErrConflict is returned when a conditional update kept losing to concurrent writers.
	ErrConflict = errors.New("account update conflict")
	// ErrSubmissionExists is returned when a task already holds a different submission.
	ErrSubmissionExists = errors.New("task submission already exists")
	// ErrSubmissionNotFound is returned when a task has no submission.
	ErrSubmissionNotFound = errors.New("task submission not found")
)

// MutateFunc changes an account in place. It must depend only on the account
// it receives: on a lost race it is called again with a fresh read.
// Returning an error aborts the update and the error is passed through.
type MutateFunc func(acc *account.Account) error

// Store defines account persistence with per-user atomic read-modify-write.
type Store interface {
	CreateAccount(ctx context.Context, acc *account.Account) error
	GetAccount(ctx context.Context, userID string) (*account.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*account.Account, error)
	ListAccounts(ctx context.Context) ([]*account.Account, error)

	// UpdateAccount applies mutate atomically and returns the stored result.
	UpdateAccount(ctx context.Context, userID string, mutate MutateFunc) (*account.Account, error)

	// CompleteTask records the (userID, taskID) completion and applies mutate
	// in the same atomic step. It fails with ErrTaskCompleted if the
	// completion already exists.
	CompleteTask(ctx context.Context, userID, taskID string, mutate MutateFunc) (*account.Account, error)
	HasCompletedTask(ctx context.Context, userID, taskID string) (bool, error)
	CompletedTasks(ctx context.Context, userID string) ([]string, error)

	// SubmitTask stores the first submission for (UserID, TaskID) and returns
	// the stored one. Re-sending the same external id keeps the original
	// submission time; a different id fails with ErrSubmissionExists.
	SubmitTask(ctx context.Context, sub *account.TaskSubmission) (*account.TaskSubmission, error)
	GetTaskSubmission(ctx context.Context, userID, taskID string) (*account.TaskSubmission, error)
}
