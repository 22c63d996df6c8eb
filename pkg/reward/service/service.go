package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/internal/metrics"
	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	"github.com/chainsafe/qtx-rewards/pkg/ledger"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
	"github.com/chainsafe/qtx-rewards/pkg/reward"
	"github.com/chainsafe/qtx-rewards/pkg/taskverify"
	"github.com/chainsafe/qtx-rewards/pkg/txstore"
	"github.com/chainsafe/qtx-rewards/pkg/verifycache"
)

const (
	kindFarm     = "farm"
	kindDaily    = "daily_checkin"
	kindTask     = "task"
	kindWelcome  = "welcome"
	kindPresale  = "presale"
	kindBoost    = "boost"
	outcomeOK    = "success"
	outcomeError = "error"
)

// AccountStore is the narrow account persistence interface of the engine.
type AccountStore interface {
	GetAccount(ctx context.Context, userID string) (*account.Account, error)
	UpdateAccount(ctx context.Context, userID string, mutate accountstore.MutateFunc) (*account.Account, error)
	CompleteTask(ctx context.Context, userID, taskID string, mutate accountstore.MutateFunc) (*account.Account, error)
	HasCompletedTask(ctx context.Context, userID, taskID string) (bool, error)
	SubmitTask(ctx context.Context, sub *account.TaskSubmission) (*account.TaskSubmission, error)
}

// TransactionLog is the narrow transaction log interface of the engine.
type TransactionLog interface {
	Append(ctx context.Context, tx *ledger.Transaction) error
	FindByExternalRef(ctx context.Context, ref string) (*ledger.Transaction, error)
}

// PaymentOracle verifies on-chain payments.
type PaymentOracle interface {
	FindPayment(ctx context.Context, q oracle.PaymentQuery) (*oracle.Payment, error)
}

// Service defines the reward and ledger engine
type Service interface {
	ClaimFarm(ctx context.Context, userID string) (*reward.FarmClaimResult, error)
	FarmStatus(ctx context.Context, userID string) (*reward.FarmStatus, error)
	ClaimDailyCheckin(ctx context.Context, userID string) (*reward.DailyCheckinResult, error)
	CompleteTask(ctx context.Context, userID string, req *reward.CompleteTaskRequest) (*reward.TaskResult, error)
	SubmitQuotexID(ctx context.Context, userID string, req *reward.QuotexSubmissionRequest) (*reward.TaskSubmissionResult, error)
	ClaimWelcomeReward(ctx context.Context, userID string) (*reward.WelcomeResult, error)
	PurchasePresale(ctx context.Context, userID string, req *reward.PresaleRequest) (*reward.PurchaseResult, error)
	PurchaseBoost(ctx context.Context, userID string, req *reward.BoostPurchaseRequest) (*reward.PurchaseResult, error)
	Catalog(ctx context.Context) (*reward.CatalogView, error)
}

// PurchaseConfig holds the payment verification settings of purchases
type PurchaseConfig struct {
	ReceivingWallet string
	LookbackWindow  time.Duration
	Tolerance       decimal.Decimal
	VerificationTTL time.Duration
	InFlightLockTTL time.Duration
}

type engine struct {
	accounts AccountStore
	txs      TransactionLog
	rules    *reward.Rules
	tasks    taskverify.Verifier
	oracle   PaymentOracle
	cache    verifycache.Cache
	cfg      PurchaseConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the reward engine
func NewService(
	accounts AccountStore,
	txs TransactionLog,
	rules *reward.Rules,
	tasks taskverify.Verifier,
	oracleClient PaymentOracle,
	cache verifycache.Cache,
	cfg PurchaseConfig,
	logger *zap.Logger,
) Service {
	return newEngine(accounts, txs, rules, tasks, oracleClient, cache, cfg, logger)
}

func newEngine(
	accounts AccountStore,
	txs TransactionLog,
	rules *reward.Rules,
	tasks taskverify.Verifier,
	oracleClient PaymentOracle,
	cache verifycache.Cache,
	cfg PurchaseConfig,
	logger *zap.Logger,
) *engine {
	if cfg.InFlightLockTTL <= 0 {
		cfg.InFlightLockTTL = time.Minute
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	if tasks == nil {
		tasks = taskverify.ProofRequired()
	}
	return &engine{
		accounts: accounts,
		txs:      txs,
		rules:    rules,
		tasks:    tasks,
		oracle:   oracleClient,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *engine) ClaimFarm(ctx context.Context, userID string) (res *reward.FarmClaimResult, err error) {
	defer e.observe(kindFarm, time.Now(), &err)

	now := e.now()
	var outcome reward.FarmOutcome
	acc, err := e.accounts.UpdateAccount(ctx, userID, func(a *account.Account) error {
		var err error
		outcome, err = e.rules.ApplyFarmClaim(a, now)
		return err
	})
	if err != nil {
		return nil, toServiceError(storeError(err))
	}

	ctx = context.WithoutCancel(ctx)
	tx := ledger.New(userID, ledger.TypeFarmClaim, outcome.Total, ledger.FarmClaimKey(userID, outcome.ClaimCount), now).
		WithMeta("baseReward", outcome.BaseReward).
		WithMeta("commission", outcome.Commission).
		WithMeta("boostMultiplier", outcome.Multiplier)
	if err := e.append(ctx, tx); err != nil {
		return nil, toServiceError(err)
	}
	metrics.RewardAmount.WithLabelValues(kindFarm).Observe(outcome.Total.InexactFloat64())

	if outcome.ReferredBy != "" && outcome.Commission.IsPositive() {
		e.creditReferrer(ctx, userID, outcome, tx.ID, now)
	}

	return &reward.FarmClaimResult{
		TransactionID:   tx.ID,
		Reward:          outcome.Total,
		BaseReward:      outcome.BaseReward,
		Commission:      outcome.Commission,
		BoostMultiplier: outcome.Multiplier,
		NewBalance:      acc.Balance,
		NextClaimTime:   outcome.NextClaimTime,
	}, nil
}

// creditReferrer pays the referral commission of a committed farm claim.
// Failures are logged and counted, never returned.
func (e *engine) creditReferrer(ctx context.Context, userID string, outcome reward.FarmOutcome, claimTxID string, now time.Time) {
	logger := e.logger.With(
		zap.String("user_id", userID),
		zap.String("referrer", outcome.ReferredBy),
		zap.String("claim_transaction_id", claimTxID),
		zap.String("commission", outcome.Commission.String()),
	)

	_, err := e.accounts.UpdateAccount(ctx, outcome.ReferredBy, func(a *account.Account) error {
		return e.rules.CreditCommission(a, outcome.Commission, now)
	})
	if err != nil {
		reason := "store_error"
		if errors.Is(err, accountstore.ErrAccountNotFound) {
			reason = "referrer_not_found"
		}
		metrics.CommissionSkipped.WithLabelValues(reason).Inc()
		logger.Warn("Referral commission skipped", zap.String("reason", reason), zap.Error(err))
		return
	}

	tx := ledger.New(outcome.ReferredBy, ledger.TypeReferralCommission, outcome.Commission,
		ledger.ReferralCommissionKey(claimTxID), now).
		WithMeta("fromUser", userID).
		WithMeta("commissionRate", e.rules.Catalog().ReferralCommissionRate()).
		WithMeta("claimTransactionId", claimTxID)
	if err := e.append(ctx, tx); err != nil {
		metrics.CommissionSkipped.WithLabelValues("ledger_append").Inc()
		return
	}
	metrics.RewardAmount.WithLabelValues("referral_commission").Observe(outcome.Commission.InexactFloat64())
	logger.Debug("Referral commission credited")
}

func (e *engine) FarmStatus(ctx context.Context, userID string) (*reward.FarmStatus, error) {
	acc, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, toServiceError(storeError(err))
	}
	st := e.rules.FarmStatus(acc, e.now())
	return &st, nil
}

func (e *engine) ClaimDailyCheckin(ctx context.Context, userID string) (res *reward.DailyCheckinResult, err error) {
	defer e.observe(kindDaily, time.Now(), &err)

	now := e.now()
	var outcome reward.DailyOutcome
	acc, err := e.accounts.UpdateAccount(ctx, userID, func(a *account.Account) error {
		var err error
		outcome, err = e.rules.ApplyDailyCheckin(a, now)
		return err
	})
	if err != nil {
		return nil, toServiceError(storeError(err))
	}

	tx := ledger.New(userID, ledger.TypeDailyCheckin, outcome.Reward, ledger.DailyCheckinKey(userID, outcome.Date), now).
		WithMeta("streak", outcome.Streak).
		WithMeta("day", outcome.Day)
	if err := e.append(context.WithoutCancel(ctx), tx); err != nil {
		return nil, toServiceError(err)
	}
	metrics.RewardAmount.WithLabelValues(kindDaily).Observe(outcome.Reward.InexactFloat64())

	return &reward.DailyCheckinResult{
		TransactionID: tx.ID,
		Reward:        outcome.Reward,
		NewStreak:     outcome.Streak,
		Day:           outcome.Day,
		NewBalance:    acc.Balance,
		NextClaimTime: outcome.NextClaimTime,
	}, nil
}

func (e *engine) CompleteTask(ctx context.Context, userID string, req *reward.CompleteTaskRequest) (res *reward.TaskResult, err error) {
	defer e.observe(kindTask, time.Now(), &err)

	task, err := e.rules.Catalog().Task(req.TaskID)
	if err != nil {
		return nil, toServiceError(fmt.Errorf("%w: %w", reward.ErrInvalidTask, err))
	}

	if _, err := e.accounts.GetAccount(ctx, userID); err != nil {
		return nil, toServiceError(storeError(err))
	}
	done, err := e.accounts.HasCompletedTask(ctx, userID, task.ID)
	if err != nil {
		return nil, toServiceError(fmt.Errorf("failed to check task completion: %w", err))
	}
	if done {
		return nil, toServiceError(fmt.Errorf("%w: %s", reward.ErrAlreadyCompleted, task.ID))
	}

	proof := strings.TrimSpace(req.Proof)
	if proof == "" {
		return nil, toServiceError(fmt.Errorf("%w: %s requires proof", reward.ErrVerificationFailed, task.ID))
	}
	if err := e.tasks.Verify(ctx, userID, task, proof); err != nil {
		if errors.Is(err, taskverify.ErrRejected) {
			return nil, toServiceError(fmt.Errorf("%w: %w", reward.ErrVerificationFailed, err))
		}
		return nil, toServiceError(fmt.Errorf("failed to verify task %s: %w", task.ID, err))
	}

	now := e.now()
	var credited decimal.Decimal
	acc, err := e.accounts.CompleteTask(ctx, userID, task.ID, func(a *account.Account) error {
		credited = e.rules.ApplyTaskReward(a, task, now)
		return nil
	})
	if err != nil {
		return nil, toServiceError(storeError(err))
	}

	tx := ledger.New(userID, ledger.TypeTaskReward, credited, ledger.TaskRewardKey(userID, task.ID), now).
		WithMeta("taskId", task.ID).
		WithMeta("taskName", task.Title)
	if err := e.append(context.WithoutCancel(ctx), tx); err != nil {
		return nil, toServiceError(err)
	}
	metrics.RewardAmount.WithLabelValues(kindTask).Observe(credited.InexactFloat64())

	return &reward.TaskResult{
		TransactionID: tx.ID,
		TaskID:        task.ID,
		Reward:        credited,
		NewBalance:    acc.Balance,
	}, nil
}

// SubmitQuotexID records the user's Quotex id. The quotex task accepts that
// id as proof once the catalog's submission delay has passed.
func (e *engine) SubmitQuotexID(ctx context.Context, userID string, req *reward.QuotexSubmissionRequest) (*reward.TaskSubmissionResult, error) {
	id := strings.TrimSpace(req.QuotexID)
	if id == "" {
		return nil, toServiceError(fmt.Errorf("%w: quotex id required", reward.ErrInvalidInput))
	}
	task, err := e.rules.Catalog().Task(reward.QuotexTaskID)
	if err != nil {
		return nil, toServiceError(fmt.Errorf("%w: %w", reward.ErrInvalidTask, err))
	}

	done, err := e.accounts.HasCompletedTask(ctx, userID, task.ID)
	if err != nil {
		return nil, toServiceError(fmt.Errorf("failed to check task completion: %w", err))
	}
	if done {
		return nil, toServiceError(fmt.Errorf("%w: %s", reward.ErrAlreadyCompleted, task.ID))
	}

	sub, err := e.accounts.SubmitTask(ctx, &account.TaskSubmission{
		UserID:      userID,
		TaskID:      task.ID,
		ExternalID:  id,
		SubmittedAt: e.now(),
	})
	if err != nil {
		if errors.Is(err, accountstore.ErrSubmissionExists) {
			return nil, toServiceError(fmt.Errorf("%w: %s", reward.ErrAlreadySubmitted, task.ID))
		}
		return nil, toServiceError(storeError(err))
	}

	return &reward.TaskSubmissionResult{
		TaskID:      sub.TaskID,
		ExternalID:  sub.ExternalID,
		SubmittedAt: sub.SubmittedAt,
		AvailableAt: sub.ReadyAt(e.rules.Catalog().TaskSubmissionDelay()),
	}, nil
}

func (e *engine) ClaimWelcomeReward(ctx context.Context, userID string) (res *reward.WelcomeResult, err error) {
	defer e.observe(kindWelcome, time.Now(), &err)

	now := e.now()
	var credited decimal.Decimal
	acc, err := e.accounts.UpdateAccount(ctx, userID, func(a *account.Account) error {
		var err error
		credited, err = e.rules.ApplyWelcome(a, now)
		return err
	})
	if err != nil {
		return nil, toServiceError(storeError(err))
	}

	tx := ledger.New(userID, ledger.TypeWelcomeReward, credited, ledger.WelcomeRewardKey(userID), now)
	if err := e.append(context.WithoutCancel(ctx), tx); err != nil {
		return nil, toServiceError(err)
	}
	metrics.RewardAmount.WithLabelValues(kindWelcome).Observe(credited.InexactFloat64())

	return &reward.WelcomeResult{
		TransactionID: tx.ID,
		Reward:        credited,
		NewBalance:    acc.Balance,
	}, nil
}

func (e *engine) PurchasePresale(ctx context.Context, userID string, req *reward.PresaleRequest) (res *reward.PurchaseResult, err error) {
	defer e.observe(kindPresale, time.Now(), &err)

	ref := strings.TrimSpace(req.TxRef)
	if ref == "" {
		return nil, toServiceError(fmt.Errorf("%w: transaction reference required", reward.ErrInvalidInput))
	}
	if !req.TONAmount.IsPositive() {
		return nil, toServiceError(fmt.Errorf("%w: presale amount must be positive", reward.ErrInvalidInput))
	}

	acc, err := e.purchaser(ctx, userID)
	if err != nil {
		return nil, toServiceError(err)
	}

	payment, release, err := e.verifyPayment(ctx, acc, ref, req.TONAmount)
	if err != nil {
		return nil, toServiceError(err)
	}
	defer release()

	// Tokens follow the amount seen on chain, not the amount the client claimed.
	paid := payment.Amount
	if !paid.IsPositive() {
		paid = req.TONAmount
	}

	now := e.now()
	var tokens decimal.Decimal
	updated, err := e.accounts.UpdateAccount(ctx, userID, func(a *account.Account) error {
		var err error
		tokens, err = e.rules.ApplyPresale(a, paid, now)
		return err
	})
	if err != nil {
		return nil, toServiceError(storeError(err))
	}

	tx := ledger.New(userID, ledger.TypePresale, tokens, ledger.PurchaseKey(ledger.TypePresale, payment.Hash), now).
		WithExternal(payment.Hash, paid).
		WithMeta("rate", e.rules.Catalog().PresaleRate()).
		WithMeta("tonAmount", paid).
		WithMeta("requestedAmount", req.TONAmount).
		WithMeta("clientRef", ref)
	if err := e.append(context.WithoutCancel(ctx), tx); err != nil {
		return nil, toServiceError(err)
	}
	metrics.RewardAmount.WithLabelValues(kindPresale).Observe(tokens.InexactFloat64())

	return &reward.PurchaseResult{
		TransactionID:  tx.ID,
		PaymentHash:    payment.Hash,
		TONAmount:      paid,
		TokensCredited: tokens,
		NewBalance:     updated.Balance,
	}, nil
}

func (e *engine) PurchaseBoost(ctx context.Context, userID string, req *reward.BoostPurchaseRequest) (res *reward.PurchaseResult, err error) {
	defer e.observe(kindBoost, time.Now(), &err)

	ref := strings.TrimSpace(req.TxRef)
	if ref == "" {
		return nil, toServiceError(fmt.Errorf("%w: transaction reference required", reward.ErrInvalidInput))
	}

	acc, err := e.purchaser(ctx, userID)
	if err != nil {
		return nil, toServiceError(err)
	}

	boost, err := e.rules.Catalog().Boost(req.BoostID)
	if err != nil {
		return nil, toServiceError(fmt.Errorf("%w: %w", reward.ErrInvalidProduct, err))
	}

	amount := req.TONAmount
	if amount.IsZero() {
		amount = boost.PriceTON
	}
	if amount.LessThan(boost.PriceTON.Sub(e.cfg.Tolerance)) {
		return nil, toServiceError(fmt.Errorf("%w: %s costs %s TON, got %s", reward.ErrInvalidInput,
			boost.Name, boost.PriceTON, amount))
	}

	payment, release, err := e.verifyPayment(ctx, acc, ref, amount)
	if err != nil {
		return nil, toServiceError(err)
	}
	defer release()

	now := e.now()
	var active account.ActiveBoost
	updated, err := e.accounts.UpdateAccount(ctx, userID, func(a *account.Account) error {
		active = e.rules.ApplyBoost(a, boost, now)
		return nil
	})
	if err != nil {
		return nil, toServiceError(storeError(err))
	}

	tx := ledger.New(userID, ledger.TypeBoostPurchase, decimal.Zero, ledger.PurchaseKey(ledger.TypeBoostPurchase, payment.Hash), now).
		WithExternal(payment.Hash, amount).
		WithMeta("boostId", boost.ID).
		WithMeta("boostName", boost.Name).
		WithMeta("multiplier", boost.Multiplier).
		WithMeta("durationHours", boost.DurationHours()).
		WithMeta("clientRef", ref)
	tx.Token = ledger.TokenTON
	if err := e.append(context.WithoutCancel(ctx), tx); err != nil {
		return nil, toServiceError(err)
	}

	return &reward.PurchaseResult{
		TransactionID:  tx.ID,
		PaymentHash:    payment.Hash,
		TONAmount:      amount,
		TokensCredited: decimal.Zero,
		NewBalance:     updated.Balance,
		ActiveBoost:    &active,
	}, nil
}

func (e *engine) Catalog(_ context.Context) (*reward.CatalogView, error) {
	return e.rules.View(), nil
}

// purchaser loads the buying account and checks that it has a wallet.
func (e *engine) purchaser(ctx context.Context, userID string) (*account.Account, error) {
	acc, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if !acc.HasWallet() {
		return nil, reward.ErrWalletNotConnected
	}
	return acc, nil
}

// verifyPayment confirms that the account's wallet paid amount to the
// receiving wallet. The client reference and the on-chain hash are both
// locked until the returned release is called, and both must be unused in
// the transaction log. Log checks run only while the matching lock is held.
func (e *engine) verifyPayment(ctx context.Context, acc *account.Account, ref string, amount decimal.Decimal) (*oracle.Payment, verifycache.ReleaseFunc, error) {
	releaseRef, err := e.acquire(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if err := e.ensureUnused(ctx, ref); err != nil {
		releaseRef()
		return nil, nil, err
	}

	payment, err := e.findPayment(ctx, acc, ref, amount)
	if err != nil {
		releaseRef()
		return nil, nil, err
	}
	if payment.Hash == "" || payment.Hash == ref {
		if payment.Hash == "" {
			payment.Hash = ref
		}
		return payment, releaseRef, nil
	}

	releaseHash, err := e.acquire(ctx, payment.Hash)
	if err != nil {
		releaseRef()
		return nil, nil, err
	}
	release := func() {
		releaseHash()
		releaseRef()
	}
	if err := e.ensureUnused(ctx, payment.Hash); err != nil {
		release()
		return nil, nil, err
	}
	return payment, release, nil
}

func (e *engine) ensureUnused(ctx context.Context, ref string) error {
	existing, err := e.txs.FindByExternalRef(ctx, ref)
	if err == nil {
		return fmt.Errorf("%w: payment %s already used by transaction %s", reward.ErrAlreadyClaimed, ref, existing.ID)
	}
	if !errors.Is(err, txstore.ErrTransactionNotFound) {
		return fmt.Errorf("failed to check payment reference: %w", err)
	}
	return nil
}

func (e *engine) acquire(ctx context.Context, ref string) (verifycache.ReleaseFunc, error) {
	release, err := e.cache.Acquire(ctx, ref, e.cfg.InFlightLockTTL)
	if err != nil {
		if errors.Is(err, verifycache.ErrLocked) {
			return nil, fmt.Errorf("%w: %w", reward.ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to lock payment reference: %w", err)
	}
	return release, nil
}

// findPayment returns a remembered verification for ref when it still fits
// the request, and asks the oracle otherwise.
func (e *engine) findPayment(ctx context.Context, acc *account.Account, ref string, amount decimal.Decimal) (*oracle.Payment, error) {
	cached, err := e.cache.Lookup(ctx, ref)
	switch {
	case err == nil:
		if oracle.SameAddress(cached.Sender, acc.WalletAddress) && e.withinTolerance(cached.Amount, amount) {
			e.logger.Debug("Using remembered payment verification",
				zap.String("ref", ref), zap.String("hash", cached.Hash))
			return cached, nil
		}
	case !errors.Is(err, verifycache.ErrMiss):
		e.logger.Warn("Verification cache lookup failed", zap.String("ref", ref), zap.Error(err))
	}

	payment, err := e.oracle.FindPayment(ctx, oracle.PaymentQuery{
		Sender:      acc.WalletAddress,
		Destination: e.cfg.ReceivingWallet,
		Amount:      amount,
		Since:       e.now().Add(-e.cfg.LookbackWindow),
	})
	if err != nil {
		switch {
		case errors.Is(err, oracle.ErrNoMatchingPayment):
			return nil, fmt.Errorf("%w: %w", reward.ErrVerificationFailed, err)
		case errors.Is(err, oracle.ErrUpstreamUnavailable),
			errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %w: %v", reward.ErrVerificationFailed, reward.ErrUpstreamUnavailable, err)
		case errors.Is(err, oracle.ErrInvalidAddress):
			return nil, fmt.Errorf("%w: %w", reward.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	if err := e.cache.Remember(ctx, ref, payment, e.cfg.VerificationTTL); err != nil {
		e.logger.Warn("Failed to remember payment verification", zap.String("ref", ref), zap.Error(err))
	}
	return payment, nil
}

func (e *engine) withinTolerance(paid, expected decimal.Decimal) bool {
	return paid.Sub(expected).Abs().LessThan(e.cfg.Tolerance)
}

// append writes tx after its balance change was committed. A failure leaves
// the account ahead of the log, which the reconciler reports.
func (e *engine) append(ctx context.Context, tx *ledger.Transaction) error {
	if err := e.txs.Append(ctx, tx); err != nil {
		metrics.LedgerAppendFailures.WithLabelValues(string(tx.Type)).Inc()
		e.logger.Error("Failed to append transaction after balance change",
			zap.String("user_id", tx.UserID),
			zap.String("type", string(tx.Type)),
			zap.String("idempotency_key", tx.IdempotencyKey),
			zap.String("amount", tx.Amount.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: append %s: %w", reward.ErrReconciliation, tx.IdempotencyKey, err)
	}
	return nil
}

func (e *engine) observe(kind string, start time.Time, err *error) {
	outcome := outcomeOK
	if *err != nil {
		outcome = outcomeError
	}
	metrics.ClaimsTotal.WithLabelValues(kind, outcome).Inc()
	metrics.ClaimDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// storeError translates account store failures into reward errors.
func storeError(err error) error {
	switch {
	case errors.Is(err, accountstore.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", reward.ErrAccountNotFound, err)
	case errors.Is(err, accountstore.ErrConflict):
		return fmt.Errorf("%w: %w", reward.ErrConflict, err)
	case errors.Is(err, accountstore.ErrTaskCompleted):
		return fmt.Errorf("%w: %w", reward.ErrAlreadyCompleted, err)
	}
	return err
}
