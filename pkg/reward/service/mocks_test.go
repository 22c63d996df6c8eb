package service

import (
	"context"
	"errors"
	"sync"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	"github.com/chainsafe/qtx-rewards/pkg/ledger"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
	"github.com/chainsafe/qtx-rewards/pkg/reward"
	"github.com/chainsafe/qtx-rewards/pkg/txstore"
)

// fakeOracle records queries and answers through FindPaymentFunc.
type fakeOracle struct {
	mu              sync.Mutex
	queries         []oracle.PaymentQuery
	FindPaymentFunc func(ctx context.Context, q oracle.PaymentQuery) (*oracle.Payment, error)
}

func (f *fakeOracle) FindPayment(ctx context.Context, q oracle.PaymentQuery) (*oracle.Payment, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.FindPaymentFunc == nil {
		return nil, oracle.ErrNoMatchingPayment
	}
	return f.FindPaymentFunc(ctx, q)
}

func (f *fakeOracle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// txLogStub overrides methods of a real store when the matching func is set.
type txLogStub struct {
	txstore.Store
	AppendFunc            func(ctx context.Context, tx *ledger.Transaction) error
	FindByExternalRefFunc func(ctx context.Context, ref string) (*ledger.Transaction, error)
}

func (s *txLogStub) Append(ctx context.Context, tx *ledger.Transaction) error {
	if s.AppendFunc != nil {
		return s.AppendFunc(ctx, tx)
	}
	return s.Store.Append(ctx, tx)
}

func (s *txLogStub) FindByExternalRef(ctx context.Context, ref string) (*ledger.Transaction, error) {
	if s.FindByExternalRefFunc != nil {
		return s.FindByExternalRefFunc(ctx, ref)
	}
	return s.Store.FindByExternalRef(ctx, ref)
}

// accountsStub overrides UpdateAccount of a real store when UpdateAccountFunc is set.
type accountsStub struct {
	accountstore.Store
	UpdateAccountFunc func(ctx context.Context, userID string, mutate accountstore.MutateFunc) (*account.Account, error)
}

func (s *accountsStub) UpdateAccount(ctx context.Context, userID string, mutate accountstore.MutateFunc) (*account.Account, error) {
	if s.UpdateAccountFunc != nil {
		return s.UpdateAccountFunc(ctx, userID, mutate)
	}
	return s.Store.UpdateAccount(ctx, userID, mutate)
}

// fakeService implements Service with optional function fields.
type fakeService struct {
	ClaimFarmFunc          func(ctx context.Context, userID string) (*reward.FarmClaimResult, error)
	FarmStatusFunc         func(ctx context.Context, userID string) (*reward.FarmStatus, error)
	ClaimDailyCheckinFunc  func(ctx context.Context, userID string) (*reward.DailyCheckinResult, error)
	CompleteTaskFunc       func(ctx context.Context, userID string, req *reward.CompleteTaskRequest) (*reward.TaskResult, error)
	SubmitQuotexIDFunc     func(ctx context.Context, userID string, req *reward.QuotexSubmissionRequest) (*reward.TaskSubmissionResult, error)
	ClaimWelcomeRewardFunc func(ctx context.Context, userID string) (*reward.WelcomeResult, error)
	PurchasePresaleFunc    func(ctx context.Context, userID string, req *reward.PresaleRequest) (*reward.PurchaseResult, error)
	PurchaseBoostFunc      func(ctx context.Context, userID string, req *reward.BoostPurchaseRequest) (*reward.PurchaseResult, error)
	CatalogFunc            func(ctx context.Context) (*reward.CatalogView, error)
}

var errNotStubbed = errors.New("not stubbed")

func (f *fakeService) ClaimFarm(ctx context.Context, userID string) (*reward.FarmClaimResult, error) {
	if f.ClaimFarmFunc == nil {
		return nil, errNotStubbed
	}
	return f.ClaimFarmFunc(ctx, userID)
}

func (f *fakeService) FarmStatus(ctx context.Context, userID string) (*reward.FarmStatus, error) {
	if f.FarmStatusFunc == nil {
		return nil, errNotStubbed
	}
	return f.FarmStatusFunc(ctx, userID)
}

func (f *fakeService) ClaimDailyCheckin(ctx context.Context, userID string) (*reward.DailyCheckinResult, error) {
	if f.ClaimDailyCheckinFunc == nil {
		return nil, errNotStubbed
	}
	return f.ClaimDailyCheckinFunc(ctx, userID)
}

func (f *fakeService) CompleteTask(ctx context.Context, userID string, req *reward.CompleteTaskRequest) (*reward.TaskResult, error) {
	if f.CompleteTaskFunc == nil {
		return nil, errNotStubbed
	}
	return f.CompleteTaskFunc(ctx, userID, req)
}

func (f *fakeService) SubmitQuotexID(ctx context.Context, userID string, req *reward.QuotexSubmissionRequest) (*reward.TaskSubmissionResult, error) {
	if f.SubmitQuotexIDFunc == nil {
		return nil, errNotStubbed
	}
	return f.SubmitQuotexIDFunc(ctx, userID, req)
}

func (f *fakeService) ClaimWelcomeReward(ctx context.Context, userID string) (*reward.WelcomeResult, error) {
	if f.ClaimWelcomeRewardFunc == nil {
		return nil, errNotStubbed
	}
	return f.ClaimWelcomeRewardFunc(ctx, userID)
}

func (f *fakeService) PurchasePresale(ctx context.Context, userID string, req *reward.PresaleRequest) (*reward.PurchaseResult, error) {
	if f.PurchasePresaleFunc == nil {
		return nil, errNotStubbed
	}
	return f.PurchasePresaleFunc(ctx, userID, req)
}

func (f *fakeService) PurchaseBoost(ctx context.Context, userID string, req *reward.BoostPurchaseRequest) (*reward.PurchaseResult, error) {
	if f.PurchaseBoostFunc == nil {
		return nil, errNotStubbed
	}
	return f.PurchaseBoostFunc(ctx, userID, req)
}

func (f *fakeService) Catalog(ctx context.Context) (*reward.CatalogView, error) {
	if f.CatalogFunc == nil {
		return nil, errNotStubbed
	}
	return f.CatalogFunc(ctx)
}
