// Package taskverify decides whether a user has fulfilled a one-time task.
package taskverify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	"github.com/chainsafe/qtx-rewards/pkg/catalog"
	"github.com/chainsafe/qtx-rewards/pkg/ledger"
)

// ErrRejected is returned when the task is not fulfilled.
var ErrRejected = errors.New("task verification rejected")

// Verifier checks a task completion claim.
type Verifier interface {
	Verify(ctx context.Context, userID string, task catalog.Task, proof string) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, userID string, task catalog.Task, proof string) error

func (f VerifierFunc) Verify(ctx context.Context, userID string, task catalog.Task, proof string) error {
	return f(ctx, userID, task, proof)
}

// ProofRequired accepts any non-blank proof.
func ProofRequired() Verifier {
	return VerifierFunc(func(_ context.Context, _ string, task catalog.Task, proof string) error {
		if strings.TrimSpace(proof) == "" {
			return fmt.Errorf("%w: %s requires proof", ErrRejected, task.ID)
		}
		return nil
	})
}

// PaymentChecker is the part of the transaction log the presale verifier reads.
type PaymentChecker interface {
	HasPayment(ctx context.Context, userID string, typ ledger.Type, minAmount decimal.Decimal) (bool, error)
}

// PresalePurchased accepts users holding a completed presale of at least minTON.
func PresalePurchased(payments PaymentChecker, minTON decimal.Decimal) Verifier {
	return VerifierFunc(func(ctx context.Context, userID string, task catalog.Task, _ string) error {
		ok, err := payments.HasPayment(ctx, userID, ledger.TypePresale, minTON)
		if err != nil {
			return fmt.Errorf("failed to check presale purchases: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s requires a presale purchase of at least %s TON", ErrRejected, task.ID, minTON)
		}
		return nil
	})
}

// SubmissionReader is the part of the account store the submission verifier reads.
type SubmissionReader interface {
	GetTaskSubmission(ctx context.Context, userID, taskID string) (*account.TaskSubmission, error)
}

// SubmissionAged accepts a proof equal to the external id the user submitted
// for the task, once delay has passed since the submission.
func SubmissionAged(subs SubmissionReader, delay time.Duration, now func() time.Time) Verifier {
	if now == nil {
		now = time.Now
	}
	return VerifierFunc(func(ctx context.Context, userID string, task catalog.Task, proof string) error {
		sub, err := subs.GetTaskSubmission(ctx, userID, task.ID)
		if errors.Is(err, accountstore.ErrSubmissionNotFound) {
			return fmt.Errorf("%w: %s has no submission", ErrRejected, task.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to load %s submission: %w", task.ID, err)
		}
		if !strings.EqualFold(strings.TrimSpace(proof), sub.ExternalID) {
			return fmt.Errorf("%w: proof does not match the %s submission", ErrRejected, task.ID)
		}
		if readyAt := sub.ReadyAt(delay); now().Before(readyAt) {
			return fmt.Errorf("%w: %s reward available at %s", ErrRejected, task.ID, readyAt.UTC().Format(time.RFC3339))
		}
		return nil
	})
}

// Registry routes tasks to their verifier, falling back to a default.
type Registry struct {
	fallback Verifier
	byTask   map[string]Verifier
}

// NewRegistry creates a Registry. A nil fallback means ProofRequired.
func NewRegistry(fallback Verifier) *Registry {
	if fallback == nil {
		fallback = ProofRequired()
	}
	return &Registry{fallback: fallback, byTask: make(map[string]Verifier)}
}

// Register binds a verifier to a task id.
func (r *Registry) Register(taskID string, v Verifier) *Registry {
	r.byTask[taskID] = v
	return r
}

// Verify runs the verifier bound to task.
func (r *Registry) Verify(ctx context.Context, userID string, task catalog.Task, proof string) error {
	if v, ok := r.byTask[task.ID]; ok {
		return v.Verify(ctx, userID, task, proof)
	}
	return r.fallback.Verify(ctx, userID, task, proof)
}
