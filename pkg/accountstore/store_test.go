package accountstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/qtx-rewards/pkg/account"
)

var created = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func newAccount(userID, code string) *account.Account {
	return account.New(userID, code, created)
}

func credit(amount string) MutateFunc {
	return func(acc *account.Account) error {
		acc.Balance = acc.Balance.Add(decimal.RequireFromString(amount))
		return nil
	}
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, ctx context.Context, s Store) {
	t.Run("create and get", func(t *testing.T) {
		acc := account.New("alice", "ALICE001", created)
		require.NoError(t, s.CreateAccount(ctx, acc))

		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "ALICE001", got.ReferralCode)
		assert.True(t, got.Balance.IsZero())
		assert.Equal(t, account.NeutralBoostName, got.ActiveBoost.Name)
		assert.True(t, got.ActiveBoost.Multiplier.Equal(decimal.NewFromInt(1)))

		byCode, err := s.GetAccountByReferralCode(ctx, "ALICE001")
		require.NoError(t, err)
		assert.Equal(t, "alice", byCode.UserID)
	})

	t.Run("duplicates", func(t *testing.T) {
		err := s.CreateAccount(ctx, account.New("alice", "OTHER001", created))
		assert.True(t, errors.Is(err, ErrAccountExists), "got %v", err)

		err = s.CreateAccount(ctx, account.New("bob", "ALICE001", created))
		assert.True(t, errors.Is(err, ErrReferralCodeTaken), "got %v", err)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetAccount(ctx, "nobody")
		assert.True(t, errors.Is(err, ErrAccountNotFound))
		_, err = s.GetAccountByReferralCode(ctx, "ZZZZZZZZ")
		assert.True(t, errors.Is(err, ErrAccountNotFound))
		_, err = s.UpdateAccount(ctx, "nobody", credit("1"))
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("update persists every field", func(t *testing.T) {
		ready := created.Add(6 * time.Hour)
		boostEnd := created.Add(48 * time.Hour)
		updated, err := s.UpdateAccount(ctx, "alice", func(acc *account.Account) error {
			acc.Balance = acc.Balance.Add(decimal.RequireFromString("0.22"))
			acc.FarmReadyTime = ready
			acc.FarmClaimCount++
			acc.ActiveBoost = account.ActiveBoost{Multiplier: decimal.NewFromInt(2), EndTime: boostEnd, Name: "Silver Drill"}
			acc.DailyCheckin = account.DailyCheckin{Streak: 3, LastClaim: created}
			acc.WalletAddress = "0:83dfd552e63729b472fcbcc8c45ebcc6691702558b68ec7527e1ba403a0f31a8"
			acc.WelcomeClaimed = true
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("0.22")), "balance %s", got.Balance)
		assert.True(t, got.FarmReadyTime.Equal(ready))
		assert.Equal(t, int64(1), got.FarmClaimCount)
		assert.True(t, got.ActiveBoost.Multiplier.Equal(decimal.NewFromInt(2)))
		assert.True(t, got.ActiveBoost.EndTime.Equal(boostEnd))
		assert.Equal(t, "Silver Drill", got.ActiveBoost.Name)
		assert.Equal(t, 3, got.DailyCheckin.Streak)
		assert.True(t, got.WelcomeClaimed)
		assert.NotEmpty(t, got.WalletAddress)
	})

	t.Run("mutator error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := s.UpdateAccount(ctx, "alice", func(acc *account.Account) error {
			acc.Balance = acc.Balance.Add(decimal.NewFromInt(100))
			return boom
		})
		assert.True(t, errors.Is(err, boom))

		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("0.22")))
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		require.NoError(t, s.CreateAccount(ctx, account.New("carol", "CAROL001", created)))

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.UpdateAccount(ctx, "carol", credit("1")); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else if !errors.Is(err, ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := s.GetAccount(ctx, "carol")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(int64(succeeded))),
			"balance %s but %d updates succeeded", got.Balance, succeeded)
	})

	t.Run("task completion gate", func(t *testing.T) {
		done, err := s.HasCompletedTask(ctx, "alice", "joinTelegram")
		require.NoError(t, err)
		assert.False(t, done)

		_, err = s.CompleteTask(ctx, "alice", "joinTelegram", credit("10"))
		require.NoError(t, err)

		_, err = s.CompleteTask(ctx, "alice", "joinTelegram", credit("10"))
		assert.True(t, errors.Is(err, ErrTaskCompleted))

		done, err = s.HasCompletedTask(ctx, "alice", "joinTelegram")
		require.NoError(t, err)
		assert.True(t, done)

		ids, err := s.CompletedTasks(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"joinTelegram"}, ids)

		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("10.22")))
	})

	t.Run("failed task mutation records no completion", func(t *testing.T) {
		_, err := s.CompleteTask(ctx, "alice", "quotex", func(*account.Account) error {
			return errors.New("rejected")
		})
		require.Error(t, err)

		done, err := s.HasCompletedTask(ctx, "alice", "quotex")
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("task submission keeps the first submission", func(t *testing.T) {
		_, err := s.GetTaskSubmission(ctx, "alice", "quotex")
		assert.True(t, errors.Is(err, ErrSubmissionNotFound), "got %v", err)

		first := created.Add(time.Hour)
		stored, err := s.SubmitTask(ctx, &account.TaskSubmission{
			UserID: "alice", TaskID: "quotex", ExternalID: "QX-1001", SubmittedAt: first,
		})
		require.NoError(t, err)
		assert.True(t, stored.SubmittedAt.Equal(first))

		again, err := s.SubmitTask(ctx, &account.TaskSubmission{
			UserID: "alice", TaskID: "quotex", ExternalID: "QX-1001", SubmittedAt: first.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.True(t, again.SubmittedAt.Equal(first), "resubmitting must not restart the wait")

		_, err = s.SubmitTask(ctx, &account.TaskSubmission{
			UserID: "alice", TaskID: "quotex", ExternalID: "QX-2002", SubmittedAt: first,
		})
		assert.True(t, errors.Is(err, ErrSubmissionExists), "got %v", err)

		got, err := s.GetTaskSubmission(ctx, "alice", "quotex")
		require.NoError(t, err)
		assert.Equal(t, "QX-1001", got.ExternalID)

		_, err = s.SubmitTask(ctx, &account.TaskSubmission{UserID: "nobody", TaskID: "quotex", ExternalID: "x"})
		assert.True(t, errors.Is(err, ErrAccountNotFound), "got %v", err)
	})

	t.Run("list", func(t *testing.T) {
		accounts, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "alice", accounts[0].UserID)
		assert.Equal(t, "carol", accounts[1].UserID)
	})
}
