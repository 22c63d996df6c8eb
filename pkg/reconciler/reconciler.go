package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/internal/metrics"
	"github.com/chainsafe/qtx-rewards/pkg/account"
)

const periodicRunTimeout = 2 * time.Minute

// AccountLister lists every account with its current balance.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]*account.Account, error)
}

// TransactionTotals sums completed transaction amounts per user.
type TransactionTotals interface {
	CompletedTotals(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Mismatch is an account whose balance differs from its transaction log.
type Mismatch struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Ledger  decimal.Decimal `json:"ledger"`
}

// Delta returns balance minus the transaction log total.
func (m Mismatch) Delta() decimal.Decimal {
	return m.Balance.Sub(m.Ledger)
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Accounts   int        `json:"accounts"`
	Mismatches []Mismatch `json:"mismatches"`
	// Orphans are users with transactions but no account.
	Orphans   []string      `json:"orphans,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Consistent reports whether every balance matched its transaction log.
func (r *Report) Consistent() bool {
	return len(r.Mismatches) == 0 && len(r.Orphans) == 0
}

// Reconciler compares account balances with the transaction log.
// Account fields are authoritative; mismatches are reported, never rewritten.
type Reconciler struct {
	accounts AccountLister
	txs      TransactionTotals
	logger   *zap.Logger

	mu   sync.Mutex
	last *Report

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Reconciler
func New(accounts AccountLister, txs TransactionTotals, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		accounts: accounts,
		txs:      txs,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// ReconcileAll walks every account and compares its balance with the sum of
// its completed transactions.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*Report, error) {
	r.logger.Info("Starting balance reconciliation")
	start := time.Now()

	accounts, err := r.accounts.ListAccounts(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	totals, err := r.txs.CompletedTotals(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	report := &Report{
		Accounts:   len(accounts),
		Mismatches: []Mismatch{},
		StartedAt:  start,
	}

	seen := make(map[string]struct{}, len(accounts))
	for _, acc := range accounts {
		seen[acc.UserID] = struct{}{}
		total := totals[acc.UserID]
		if acc.Balance.Equal(total) {
			continue
		}
		m := Mismatch{UserID: acc.UserID, Balance: acc.Balance, Ledger: total}
		report.Mismatches = append(report.Mismatches, m)
		r.logger.Warn("Account balance differs from transaction log",
			zap.String("user_id", acc.UserID),
			zap.String("balance", acc.Balance.String()),
			zap.String("ledger", total.String()),
			zap.String("delta", m.Delta().String()))
	}

	for userID := range totals {
		if _, ok := seen[userID]; !ok {
			report.Orphans = append(report.Orphans, userID)
		}
	}
	sort.Strings(report.Orphans)
	for _, userID := range report.Orphans {
		r.logger.Warn("Transactions recorded for unknown account", zap.String("user_id", userID))
	}

	report.Duration = time.Since(start)
	metrics.ReconcileMismatchedAccounts.Set(float64(len(report.Mismatches)))
	if report.Consistent() {
		metrics.ReconcileRuns.WithLabelValues("consistent").Inc()
	} else {
		metrics.ReconcileRuns.WithLabelValues("mismatch").Inc()
	}

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	r.logger.Info("Balance reconciliation completed",
		zap.Int("accounts", report.Accounts),
		zap.Int("mismatches", len(report.Mismatches)),
		zap.Int("orphans", len(report.Orphans)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// LastReport returns the report of the latest successful pass, or nil.
func (r *Reconciler) LastReport() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// StartPeriodicReconciliation starts a background goroutine that reconciles periodically
func (r *Reconciler) StartPeriodicReconciliation(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info("Started periodic reconciliation", zap.Duration("interval", interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), periodicRunTimeout)
				if _, err := r.ReconcileAll(ctx); err != nil {
					r.logger.Error("Periodic reconciliation failed", zap.Error(err))
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("Stopping periodic reconciliation")
				return
			}
		}
	}()
}

// Stop stops the periodic reconciliation
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
