package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	apperrors "github.com/chainsafe/qtx-rewards/pkg/app/errors"
	"github.com/chainsafe/qtx-rewards/pkg/catalog"
	"github.com/chainsafe/qtx-rewards/pkg/config"
	"github.com/chainsafe/qtx-rewards/pkg/ledger"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
	"github.com/chainsafe/qtx-rewards/pkg/reward"
	"github.com/chainsafe/qtx-rewards/pkg/taskverify"
	"github.com/chainsafe/qtx-rewards/pkg/txstore"
	"github.com/chainsafe/qtx-rewards/pkg/verifycache"
)

var (
	t0        = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	wallet    = "0:" + strings.Repeat("a1", 32)
	receiving = "0:" + strings.Repeat("ff", 32)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	svc      *engine
	accounts *accountsStub
	txs      *txLogStub
	oracle   *fakeOracle
	cache    verifycache.Cache
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	c, err := catalog.New(config.DefaultRewards())
	require.NoError(t, err)
	rules := reward.NewRules(c, time.UTC)

	h := &harness{
		accounts: &accountsStub{Store: accountstore.NewMemoryStore()},
		txs:      &txLogStub{Store: txstore.NewMemoryStore()},
		oracle:   &fakeOracle{},
		cache:    verifycache.NewMemoryCache(),
		now:      t0,
	}
	tasks := taskverify.NewRegistry(nil).
		Register("presaleBonus", taskverify.PresalePurchased(h.txs, c.PresaleBonusMinTON())).
		Register(reward.QuotexTaskID, taskverify.SubmissionAged(h.accounts, c.TaskSubmissionDelay(),
			func() time.Time { return h.now }))

	h.svc = newEngine(h.accounts, h.txs, rules, tasks, h.oracle, h.cache, PurchaseConfig{
		ReceivingWallet: receiving,
		LookbackWindow:  5 * time.Minute,
		Tolerance:       dec("0.001"),
		VerificationTTL: time.Hour,
		InFlightLockTTL: time.Minute,
	}, zap.NewNop())
	h.svc.now = func() time.Time { return h.now }
	return h
}

func (h *harness) createAccount(t *testing.T, userID, referredBy, walletAddr string) {
	t.Helper()
	code, err := account.NewReferralCode()
	require.NoError(t, err)
	acc := account.New(userID, code, t0)
	acc.ReferredBy = referredBy
	acc.WalletAddress = walletAddr
	require.NoError(t, h.accounts.CreateAccount(context.Background(), acc))
}

func (h *harness) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	acc, err := h.accounts.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acc.Balance
}

// assertLedgerMatches checks that the balance equals the sum of the user's transactions.
func (h *harness) assertLedgerMatches(t *testing.T, userID string) []*ledger.Transaction {
	t.Helper()
	txs, err := h.txs.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.True(t, h.balance(t, userID).Equal(ledger.Sum(txs)),
		"balance %s != ledger %s", h.balance(t, userID), ledger.Sum(txs))
	return txs
}

func paymentFor(hash string) func(context.Context, oracle.PaymentQuery) (*oracle.Payment, error) {
	return func(_ context.Context, q oracle.PaymentQuery) (*oracle.Payment, error) {
		return &oracle.Payment{
			Hash:      hash,
			Sender:    q.Sender,
			Recipient: q.Destination,
			Amount:    q.Amount,
			Timestamp: t0,
		}, nil
	}
}

func TestClaimFarm_CooldownGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	res, err := h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Reward.Equal(dec("0.2")))
	assert.True(t, res.NewBalance.Equal(dec("0.2")))
	assert.Equal(t, t0.Add(6*time.Hour), res.NextClaimTime)

	h.now = t0.Add(time.Hour)
	_, err = h.svc.ClaimFarm(ctx, "u1")
	if !errors.Is(err, reward.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if !apperrors.Is(err, apperrors.CategoryTooEarly) {
		t.Fatalf("expected CategoryTooEarly, got %v", err)
	}
	var svcErr *apperrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 5*time.Hour, svcErr.RetryAfter)

	h.now = t0.Add(6 * time.Hour)
	res, err = h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err, "claim must be accepted exactly at the ready time")
	assert.True(t, res.NewBalance.Equal(dec("0.4")))

	txs := h.assertLedgerMatches(t, "u1")
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.TypeFarmClaim, txs[0].Type)
	assert.Equal(t, ledger.FarmClaimKey("u1", 2), txs[0].IdempotencyKey)
	assert.Equal(t, "0.2", txs[0].Metadata["baseReward"])
	assert.Equal(t, "0", txs[0].Metadata["commission"])
	assert.Equal(t, "1", txs[0].Metadata["boostMultiplier"])
}

func TestClaimFarm_UnknownAccount(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ClaimFarm(context.Background(), "ghost")
	if !errors.Is(err, reward.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		t.Fatalf("expected CategoryResourceNotFound, got %v", err)
	}
}

func TestClaimFarm_BoostAndReferralCommission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "referrer", "", "")
	h.createAccount(t, "u1", "referrer", "")

	_, err := h.accounts.UpdateAccount(ctx, "u1", func(a *account.Account) error {
		a.ActiveBoost = account.ActiveBoost{Multiplier: dec("2"), EndTime: t0.Add(time.Hour), Name: "Silver Drill"}
		return nil
	})
	require.NoError(t, err)

	res, err := h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.BaseReward.Equal(dec("0.4")))
	assert.True(t, res.Commission.Equal(dec("0.02")), "commission comes from the un-boosted base")
	assert.True(t, res.Reward.Equal(dec("0.42")))
	assert.True(t, res.BoostMultiplier.Equal(dec("2")))

	assert.True(t, h.balance(t, "referrer").Equal(dec("0.02")))
	refTxs := h.assertLedgerMatches(t, "referrer")
	require.Len(t, refTxs, 1)
	assert.Equal(t, ledger.TypeReferralCommission, refTxs[0].Type)
	assert.Equal(t, "u1", refTxs[0].Metadata["fromUser"])
	assert.Equal(t, res.TransactionID, refTxs[0].Metadata["claimTransactionId"])
	assert.Equal(t, ledger.ReferralCommissionKey(res.TransactionID), refTxs[0].IdempotencyKey)

	h.assertLedgerMatches(t, "u1")
}

func TestClaimFarm_ExpiredBoostIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	_, err := h.accounts.UpdateAccount(ctx, "u1", func(a *account.Account) error {
		a.ActiveBoost = account.ActiveBoost{Multiplier: dec("5"), EndTime: t0.Add(-time.Millisecond), Name: "Diamond Core"}
		return nil
	})
	require.NoError(t, err)

	res, err := h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.BoostMultiplier.Equal(dec("1")))
	assert.True(t, res.Reward.Equal(dec("0.2")))
}

func TestClaimFarm_MissingReferrerDoesNotFailClaim(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "gone", "")

	res, err := h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Reward.Equal(dec("0.22")))
	h.assertLedgerMatches(t, "u1")

	txs, err := h.txs.ListByUser(ctx, "gone", 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestClaimFarm_AppendFailureIsReconciliation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")
	h.txs.AppendFunc = func(context.Context, *ledger.Transaction) error {
		return errors.New("db unavailable")
	}

	_, err := h.svc.ClaimFarm(ctx, "u1")
	if !errors.Is(err, reward.ErrReconciliation) {
		t.Fatalf("expected ErrReconciliation, got %v", err)
	}
	if !apperrors.Is(err, apperrors.CategoryGeneralError) {
		t.Fatalf("expected CategoryGeneralError, got %v", err)
	}
}

func TestFarmStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	st, err := h.svc.FarmStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Ready)
	assert.Equal(t, "READY!", st.TimeDisplay)

	_, err = h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err)

	h.now = t0.Add(90 * time.Minute)
	st, err = h.svc.FarmStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Ready)
	assert.Equal(t, "04:30:00", st.TimeDisplay)
}

func TestClaimDailyCheckin_Streak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	res, err := h.svc.ClaimDailyCheckin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)
	assert.Equal(t, 1, res.Day)
	assert.True(t, res.Reward.Equal(dec("0.2")))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), res.NextClaimTime)

	h.now = t0.Add(10 * time.Hour)
	_, err = h.svc.ClaimDailyCheckin(ctx, "u1")
	if !errors.Is(err, reward.ErrAlreadyClaimedToday) {
		t.Fatalf("expected ErrAlreadyClaimedToday, got %v", err)
	}
	if !apperrors.Is(err, apperrors.CategoryDataConflict) {
		t.Fatalf("expected CategoryDataConflict, got %v", err)
	}
	var svcErr *apperrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 5*time.Hour, svcErr.RetryAfter)
	assert.True(t, h.balance(t, "u1").Equal(dec("0.2")), "rejected check-in must not change the balance")

	h.now = t0.Add(24 * time.Hour)
	res, err = h.svc.ClaimDailyCheckin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewStreak)

	h.now = t0.Add(4 * 24 * time.Hour)
	res, err = h.svc.ClaimDailyCheckin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak, "a gap resets the streak")

	txs := h.assertLedgerMatches(t, "u1")
	require.Len(t, txs, 3)
	assert.Equal(t, ledger.DailyCheckinKey("u1", time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)), txs[0].IdempotencyKey)
	assert.Equal(t, "1", txs[0].Metadata["streak"])
}

func TestClaims_ConcurrentCallsCreditOnce(t *testing.T) {
	cases := []struct {
		name  string
		claim func(ctx context.Context, svc *engine) error
		want  decimal.Decimal
	}{
		{
			name: "farm",
			claim: func(ctx context.Context, svc *engine) error {
				_, err := svc.ClaimFarm(ctx, "u1")
				return err
			},
			want: dec("0.2"),
		},
		{
			name: "daily checkin",
			claim: func(ctx context.Context, svc *engine) error {
				_, err := svc.ClaimDailyCheckin(ctx, "u1")
				return err
			},
			want: dec("0.2"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			h.createAccount(t, "u1", "", "")

			const workers = 16
			var wg sync.WaitGroup
			var mu sync.Mutex
			succeeded := 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := tc.claim(ctx, h.svc)
					switch {
					case err == nil:
						mu.Lock()
						succeeded++
						mu.Unlock()
					case errors.Is(err, reward.ErrNotReady), errors.Is(err, reward.ErrAlreadyClaimedToday):
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, succeeded)
			assert.True(t, h.balance(t, "u1").Equal(tc.want), "balance %s", h.balance(t, "u1"))
			txs := h.assertLedgerMatches(t, "u1")
			assert.Len(t, txs, 1)
		})
	}
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	_, err := h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "nope", Proof: "x"})
	if !errors.Is(err, reward.ErrInvalidTask) || !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected invalid task, got %v", err)
	}

	_, err = h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "joinTelegram"})
	if !errors.Is(err, reward.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed without proof, got %v", err)
	}
	assert.True(t, h.balance(t, "u1").IsZero())

	res, err := h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "joinTelegram", Proof: "@qtx_user"})
	require.NoError(t, err)
	assert.True(t, res.Reward.Equal(dec("10")))
	assert.True(t, res.NewBalance.Equal(dec("10")))

	_, err = h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "joinTelegram", Proof: "@qtx_user"})
	if !errors.Is(err, reward.ErrAlreadyCompleted) || !apperrors.Is(err, apperrors.CategoryDataConflict) {
		t.Fatalf("expected already completed, got %v", err)
	}

	txs := h.assertLedgerMatches(t, "u1")
	require.Len(t, txs, 1)
	assert.Equal(t, "joinTelegram", txs[0].Metadata["taskId"])
	assert.Equal(t, "Join Telegram Channel", txs[0].Metadata["taskName"])
}

func TestCompleteTask_PresaleBonusNeedsPurchase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)

	_, err := h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "presaleBonus", Proof: "hash-presale"})
	if !errors.Is(err, reward.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed before purchase, got %v", err)
	}

	h.oracle.FindPaymentFunc = paymentFor("hash-presale")
	_, err = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("0.5"), TxRef: "hash-presale"})
	require.NoError(t, err)

	for _, proof := range []string{"", "   "} {
		_, err = h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "presaleBonus", Proof: proof})
		if !errors.Is(err, reward.ErrVerificationFailed) || !apperrors.Is(err, apperrors.CategoryPaymentRequired) {
			t.Fatalf("expected ErrVerificationFailed for proof %q, got %v", proof, err)
		}
	}
	assert.True(t, h.balance(t, "u1").Equal(dec("3.5")), "a rejected proof must not credit")

	res, err := h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: "presaleBonus", Proof: "hash-presale"})
	require.NoError(t, err)
	assert.True(t, res.Reward.Equal(dec("15")))
	h.assertLedgerMatches(t, "u1")
}

func TestCompleteTask_QuotexAfterSubmissionDelay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	_, err := h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: reward.QuotexTaskID, Proof: "QX-77"})
	if !errors.Is(err, reward.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed without submission, got %v", err)
	}

	_, err = h.svc.SubmitQuotexID(ctx, "u1", &reward.QuotexSubmissionRequest{QuotexID: "  "})
	if !errors.Is(err, reward.ErrInvalidInput) || !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected invalid input for a blank id, got %v", err)
	}
	_, err = h.svc.SubmitQuotexID(ctx, "ghost", &reward.QuotexSubmissionRequest{QuotexID: "QX-77"})
	if !errors.Is(err, reward.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	sub, err := h.svc.SubmitQuotexID(ctx, "u1", &reward.QuotexSubmissionRequest{QuotexID: "QX-77"})
	require.NoError(t, err)
	assert.Equal(t, reward.QuotexTaskID, sub.TaskID)
	assert.Equal(t, t0, sub.SubmittedAt)
	assert.Equal(t, t0.Add(24*time.Hour), sub.AvailableAt)

	h.now = t0.Add(time.Hour)
	again, err := h.svc.SubmitQuotexID(ctx, "u1", &reward.QuotexSubmissionRequest{QuotexID: "QX-77"})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(24*time.Hour), again.AvailableAt, "resubmitting must not restart the wait")

	_, err = h.svc.SubmitQuotexID(ctx, "u1", &reward.QuotexSubmissionRequest{QuotexID: "QX-88"})
	if !errors.Is(err, reward.ErrAlreadySubmitted) || !apperrors.Is(err, apperrors.CategoryDataConflict) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	h.now = t0.Add(23 * time.Hour)
	_, err = h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: reward.QuotexTaskID, Proof: "QX-77"})
	if !errors.Is(err, reward.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed before the delay, got %v", err)
	}
	assert.True(t, h.balance(t, "u1").IsZero())

	h.now = t0.Add(24 * time.Hour)
	res, err := h.svc.CompleteTask(ctx, "u1", &reward.CompleteTaskRequest{TaskID: reward.QuotexTaskID, Proof: "QX-77"})
	require.NoError(t, err)
	assert.True(t, res.Reward.Equal(dec("12.5")))

	_, err = h.svc.SubmitQuotexID(ctx, "u1", &reward.QuotexSubmissionRequest{QuotexID: "QX-77"})
	if !errors.Is(err, reward.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted after the reward, got %v", err)
	}
	h.assertLedgerMatches(t, "u1")
}

func TestClaimWelcomeReward_Once(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	res, err := h.svc.ClaimWelcomeReward(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Reward.Equal(dec("1")))

	_, err = h.svc.ClaimWelcomeReward(ctx, "u1")
	if !errors.Is(err, reward.ErrAlreadyClaimed) || !apperrors.Is(err, apperrors.CategoryDataConflict) {
		t.Fatalf("expected already claimed, got %v", err)
	}
	h.assertLedgerMatches(t, "u1")
}

func TestPurchasePresale_WalletRequired(t *testing.T) {
	h := newHarness(t)
	h.createAccount(t, "u1", "", "")

	_, err := h.svc.PurchasePresale(context.Background(), "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "ref"})
	if !errors.Is(err, reward.ErrWalletNotConnected) {
		t.Fatalf("expected ErrWalletNotConnected, got %v", err)
	}
	assert.Equal(t, 0, h.oracle.calls())
}

func TestPurchasePresale_InvalidInput(t *testing.T) {
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)

	for name, req := range map[string]*reward.PresaleRequest{
		"empty ref":       {TONAmount: dec("1"), TxRef: "  "},
		"zero amount":     {TONAmount: decimal.Zero, TxRef: "ref"},
		"negative amount": {TONAmount: dec("-1"), TxRef: "ref"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.PurchasePresale(context.Background(), "u1", req)
			if !errors.Is(err, reward.ErrInvalidInput) || !apperrors.Is(err, apperrors.CategoryDataError) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
	assert.Equal(t, 0, h.oracle.calls())
}

func TestPurchasePresale_CreditsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)
	h.oracle.FindPaymentFunc = paymentFor("hash-1")

	res, err := h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1.5"), TxRef: "client-1"})
	require.NoError(t, err)
	assert.True(t, res.TokensCredited.Equal(dec("10.5")))
	assert.Equal(t, "hash-1", res.PaymentHash)

	require.Equal(t, 1, h.oracle.calls())
	q := h.oracle.queries[0]
	assert.Equal(t, wallet, q.Sender)
	assert.Equal(t, receiving, q.Destination)
	assert.True(t, q.Amount.Equal(dec("1.5")))
	assert.Equal(t, t0.Add(-5*time.Minute), q.Since)

	txs := h.assertLedgerMatches(t, "u1")
	require.Len(t, txs, 1)
	assert.Equal(t, "hash-1", txs[0].ExternalRef)
	assert.Equal(t, ledger.PurchaseKey(ledger.TypePresale, "hash-1"), txs[0].IdempotencyKey)
	assert.Equal(t, "client-1", txs[0].Metadata["clientRef"])
	assert.Equal(t, "7", txs[0].Metadata["rate"])

	// Same client ref: the remembered verification is reused and rejected.
	_, err = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1.5"), TxRef: "client-1"})
	if !errors.Is(err, reward.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed for a reused ref, got %v", err)
	}
	assert.Equal(t, 1, h.oracle.calls())

	// Same on-chain payment under a new client ref.
	_, err = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1.5"), TxRef: "client-2"})
	if !errors.Is(err, reward.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed for a reused payment, got %v", err)
	}

	// The hash itself as ref.
	_, err = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1.5"), TxRef: "hash-1"})
	if !errors.Is(err, reward.ErrAlreadyClaimed) || !apperrors.Is(err, apperrors.CategoryDataConflict) {
		t.Fatalf("expected already claimed, got %v", err)
	}

	assert.True(t, h.balance(t, "u1").Equal(dec("10.5")))
}

func TestPurchasePresale_CreditsVerifiedAmount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)
	h.oracle.FindPaymentFunc = func(_ context.Context, q oracle.PaymentQuery) (*oracle.Payment, error) {
		return &oracle.Payment{Hash: "hash-short", Sender: q.Sender, Recipient: q.Destination,
			Amount: q.Amount.Sub(dec("0.0005")), Timestamp: t0}, nil
	}

	res, err := h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "client-1"})
	require.NoError(t, err)
	assert.True(t, res.TONAmount.Equal(dec("0.9995")), "got %s", res.TONAmount)
	assert.True(t, res.TokensCredited.Equal(dec("6.9965")), "got %s", res.TokensCredited)

	txs := h.assertLedgerMatches(t, "u1")
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].ExternalAmount)
	assert.True(t, txs[0].ExternalAmount.Equal(dec("0.9995")), "got %s", txs[0].ExternalAmount)
	assert.Equal(t, "1", txs[0].Metadata["requestedAmount"])
}

// A second request for the same reference must not pass the log check before
// it holds the reference lock.
func TestPurchasePresale_OverlappingRequestsCreditOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)
	h.oracle.FindPaymentFunc = paymentFor("H")

	var inner *reward.PurchaseResult
	var innerErr error
	ran := false
	h.txs.FindByExternalRefFunc = func(ctx context.Context, ref string) (*ledger.Transaction, error) {
		if !ran {
			ran = true
			inner, innerErr = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "H"})
		}
		return h.txs.Store.FindByExternalRef(ctx, ref)
	}

	outer, err := h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "H"})
	require.True(t, ran)

	succeeded := 0
	for _, e := range []error{err, innerErr} {
		switch {
		case e == nil:
			succeeded++
		case errors.Is(e, reward.ErrConflict), errors.Is(e, reward.ErrAlreadyClaimed):
		default:
			t.Fatalf("unexpected error: %v", e)
		}
	}
	assert.Equal(t, 1, succeeded, "outer=%v inner=%v", outer, inner)
	assert.True(t, h.balance(t, "u1").Equal(dec("7")), "balance %s", h.balance(t, "u1"))
	txs := h.assertLedgerMatches(t, "u1")
	require.Len(t, txs, 1)
	assert.Equal(t, "H", txs[0].ExternalRef)
}

func TestPurchasePresale_NoMatchLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)

	_, err := h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "ref"})
	if !errors.Is(err, reward.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if errors.Is(err, reward.ErrUpstreamUnavailable) {
		t.Fatalf("no-match must not look like an outage: %v", err)
	}
	if !apperrors.Is(err, apperrors.CategoryPaymentRequired) {
		t.Fatalf("expected CategoryPaymentRequired, got %v", err)
	}

	assert.True(t, h.balance(t, "u1").IsZero())
	txs, err := h.txs.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestPurchasePresale_UpstreamUnavailable(t *testing.T) {
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)
	h.oracle.FindPaymentFunc = func(context.Context, oracle.PaymentQuery) (*oracle.Payment, error) {
		return nil, oracle.ErrUpstreamUnavailable
	}

	_, err := h.svc.PurchasePresale(context.Background(), "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "ref"})
	if !errors.Is(err, reward.ErrVerificationFailed) || !errors.Is(err, reward.ErrUpstreamUnavailable) {
		t.Fatalf("expected verification failure wrapping upstream unavailable, got %v", err)
	}
	if !apperrors.Is(err, apperrors.CategoryDependencyFailure) {
		t.Fatalf("expected CategoryDependencyFailure, got %v", err)
	}
	assert.True(t, h.balance(t, "u1").IsZero())
}

func TestPurchasePresale_InFlightRefIsConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)
	h.oracle.FindPaymentFunc = paymentFor("hash-1")

	release, err := h.cache.Acquire(ctx, "hash-1", time.Minute)
	require.NoError(t, err)

	_, err = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "hash-1"})
	if !errors.Is(err, reward.ErrConflict) || !apperrors.Is(err, apperrors.CategoryRecovering) {
		t.Fatalf("expected retryable conflict, got %v", err)
	}
	assert.Equal(t, 0, h.oracle.calls())

	release()
	_, err = h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "hash-1"})
	require.NoError(t, err)
}

func TestPurchasePresale_RetryReusesVerification(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)
	h.oracle.FindPaymentFunc = paymentFor("hash-1")

	h.accounts.UpdateAccountFunc = func(context.Context, string, accountstore.MutateFunc) (*account.Account, error) {
		return nil, accountstore.ErrConflict
	}
	_, err := h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "hash-1"})
	if !errors.Is(err, reward.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Past the lookback window the oracle would no longer find the payment.
	h.accounts.UpdateAccountFunc = nil
	h.now = t0.Add(time.Hour)
	h.oracle.FindPaymentFunc = nil

	res, err := h.svc.PurchasePresale(ctx, "u1", &reward.PresaleRequest{TONAmount: dec("1"), TxRef: "hash-1"})
	require.NoError(t, err)
	assert.True(t, res.TokensCredited.Equal(dec("7")))
	assert.Equal(t, 1, h.oracle.calls())
}

func TestPurchaseBoost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAccount(t, "u1", "", wallet)

	_, err := h.svc.PurchaseBoost(ctx, "u1", &reward.BoostPurchaseRequest{BoostID: "platinum", TxRef: "ref"})
	if !errors.Is(err, reward.ErrInvalidProduct) || !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected invalid product, got %v", err)
	}
	assert.Equal(t, 0, h.oracle.calls(), "product must be resolved before the oracle call")

	_, err = h.svc.PurchaseBoost(ctx, "u1", &reward.BoostPurchaseRequest{BoostID: "gold-rig", TONAmount: dec("0.1"), TxRef: "ref"})
	if !errors.Is(err, reward.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an underpaid boost, got %v", err)
	}
	assert.Equal(t, 0, h.oracle.calls())

	h.oracle.FindPaymentFunc = paymentFor("hash-gold")
	res, err := h.svc.PurchaseBoost(ctx, "u1", &reward.BoostPurchaseRequest{BoostID: "gold-rig", TxRef: "hash-gold"})
	require.NoError(t, err)
	require.NotNil(t, res.ActiveBoost)
	assert.Equal(t, "Gold Rig", res.ActiveBoost.Name)
	assert.Equal(t, t0.Add(72*time.Hour), res.ActiveBoost.EndTime)
	assert.True(t, res.TONAmount.Equal(dec("0.5")), "a zero amount means the catalog price")
	assert.True(t, res.NewBalance.IsZero())

	txs, err := h.txs.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TypeBoostPurchase, txs[0].Type)
	assert.Equal(t, ledger.TokenTON, txs[0].Token)
	assert.True(t, txs[0].Amount.IsZero())
	assert.Equal(t, "gold-rig", txs[0].Metadata["boostId"])
	assert.Equal(t, "72", txs[0].Metadata["durationHours"])

	farm, err := h.svc.ClaimFarm(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, farm.Reward.Equal(dec("0.6")))

	// A second boost overwrites the first.
	h.oracle.FindPaymentFunc = paymentFor("hash-bronze")
	h.now = t0.Add(time.Hour)
	res, err = h.svc.PurchaseBoost(ctx, "u1", &reward.BoostPurchaseRequest{BoostID: "0", TxRef: "hash-bronze"})
	require.NoError(t, err)
	assert.Equal(t, "Bronze Miner", res.ActiveBoost.Name)
	assert.Equal(t, t0.Add(25*time.Hour), res.ActiveBoost.EndTime)

	h.assertLedgerMatches(t, "u1")
}

func TestCatalog(t *testing.T) {
	h := newHarness(t)

	view, err := h.svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "QTX", view.Token)
	assert.Len(t, view.DailySchedule, 30)
	assert.Len(t, view.Boosts, 5)
	assert.Equal(t, int64(6*3600), view.FarmingCooldownSeconds)
}
