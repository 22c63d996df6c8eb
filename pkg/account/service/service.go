package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	apperrors "github.com/chainsafe/qtx-rewards/pkg/app/errors"
	"github.com/chainsafe/qtx-rewards/pkg/catalog"
	"github.com/chainsafe/qtx-rewards/pkg/ledger"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
)

const (
	maxReferralCodeAttempts = 5
	defaultTransactionLimit = 50
	maxTransactionLimit     = 100
	presaleProductID        = "qtx"
)

var (
	ErrWalletAlreadyConnected = errors.New("a different wallet is already connected")
	ErrWalletNotConnected     = errors.New("wallet not connected")
	ErrInvalidSignature       = errors.New("invalid wallet signature")

	errSameWallet = errors.New("wallet unchanged")
)

// Store is the narrow account persistence interface of the account service.
type Store interface {
	CreateAccount(ctx context.Context, acc *account.Account) error
	GetAccount(ctx context.Context, userID string) (*account.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*account.Account, error)
	UpdateAccount(ctx context.Context, userID string, mutate accountstore.MutateFunc) (*account.Account, error)
}

// TransactionReader reads a user's transaction history.
type TransactionReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error)
	TotalEarned(ctx context.Context, userID string) (decimal.Decimal, error)
}

// BalanceOracle reads on-chain wallet balances.
type BalanceOracle interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

// WalletVerifier checks that the caller controls a wallet.
type WalletVerifier interface {
	VerifyWallet(ctx context.Context, userID, address, signature string) error
}

// WalletVerifierFunc adapts a function to WalletVerifier.
type WalletVerifierFunc func(ctx context.Context, userID, address, signature string) error

func (f WalletVerifierFunc) VerifyWallet(ctx context.Context, userID, address, signature string) error {
	return f(ctx, userID, address, signature)
}

// SignaturePresent accepts any non-blank signature.
func SignaturePresent() WalletVerifier {
	return WalletVerifierFunc(func(_ context.Context, _, _, signature string) error {
		if strings.TrimSpace(signature) == "" {
			return fmt.Errorf("%w: signature required", ErrInvalidSignature)
		}
		return nil
	})
}

// Service defines account registration, wallet and history operations
type Service interface {
	Register(ctx context.Context, userID string, req *account.RegisterRequest) (*account.Account, error)
	ConnectWallet(ctx context.Context, userID string, req *account.ConnectWalletRequest) (*account.Account, error)
	GetProfile(ctx context.Context, userID string) (*account.Account, error)
	GetStats(ctx context.Context, userID string) (*account.Stats, error)
	GetWallet(ctx context.Context, userID string) (*account.Wallet, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error)
	PaymentRequest(ctx context.Context, userID string, req *account.PaymentRequest) (*account.PaymentLink, error)
}

// Config holds the wallet settings of the account service
type Config struct {
	ReceivingWallet string
	Testnet         bool
}

type accountService struct {
	store    Store
	txs      TransactionReader
	balances BalanceOracle
	wallets  WalletVerifier
	catalog  *catalog.Catalog
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new account service. A nil verifier means SignaturePresent.
func NewService(
	store Store,
	txs TransactionReader,
	balances BalanceOracle,
	wallets WalletVerifier,
	c *catalog.Catalog,
	cfg Config,
	logger *zap.Logger,
) Service {
	if wallets == nil {
		wallets = SignaturePresent()
	}
	return &accountService{
		store:    store,
		txs:      txs,
		balances: balances,
		wallets:  wallets,
		catalog:  c,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *accountService) Register(ctx context.Context, userID string, req *account.RegisterRequest) (*account.Account, error) {
	wallet := ""
	if req.WalletAddress != "" {
		addr, err := oracle.NormalizeAddress(req.WalletAddress)
		if err != nil {
			return nil, apperrors.BadRequestError(err, "invalid wallet address")
		}
		wallet = addr
	}

	existing, err := s.store.GetAccount(ctx, userID)
	if err == nil {
		return s.attachWallet(ctx, existing, wallet)
	}
	if !errors.Is(err, accountstore.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check account existence: %w", err)
	}

	referrer, err := s.resolveReferrer(ctx, req.ReferralCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for attempt := 0; attempt < maxReferralCodeAttempts; attempt++ {
		code, err := account.NewReferralCode()
		if err != nil {
			return nil, apperrors.GeneralError(err)
		}

		acc := account.New(userID, code, now)
		acc.WalletAddress = wallet
		if referrer != nil {
			acc.ReferredBy = referrer.UserID
		}

		err = s.store.CreateAccount(ctx, acc)
		switch {
		case errors.Is(err, accountstore.ErrReferralCodeTaken):
			continue
		case errors.Is(err, accountstore.ErrAccountExists):
			// lost a concurrent registration of the same user
			existing, err := s.store.GetAccount(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to load account: %w", err)
			}
			return existing, nil
		case err != nil:
			return nil, fmt.Errorf("failed to create account: %w", err)
		}

		if referrer != nil {
			s.countReferral(ctx, referrer.UserID, userID)
		}
		return acc, nil
	}

	return nil, apperrors.GeneralError(fmt.Errorf("no free referral code after %d attempts", maxReferralCodeAttempts))
}

// resolveReferrer returns the owner of code. Unknown codes are ignored.
func (s *accountService) resolveReferrer(ctx context.Context, code string) (*account.Account, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	if !account.IsReferralCode(code) {
		return nil, apperrors.BadRequestError(nil, "invalid referral code")
	}

	referrer, err := s.store.GetAccountByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, accountstore.ErrAccountNotFound) {
			s.logger.Info("Ignoring unknown referral code", zap.String("referral_code", code))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	return referrer, nil
}

func (s *accountService) countReferral(ctx context.Context, referrerID, userID string) {
	_, err := s.store.UpdateAccount(context.WithoutCancel(ctx), referrerID, func(a *account.Account) error {
		a.ReferralCount++
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to increment referral count",
			zap.String("referrer", referrerID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// attachWallet sets wallet on an existing account that has none.
func (s *accountService) attachWallet(ctx context.Context, acc *account.Account, wallet string) (*account.Account, error) {
	if wallet == "" || acc.HasWallet() {
		return acc, nil
	}
	updated, err := s.setWallet(ctx, acc.UserID, wallet)
	if errors.Is(err, ErrWalletAlreadyConnected) {
		// another request connected a wallet first; registration stays idempotent
		return s.store.GetAccount(ctx, acc.UserID)
	}
	return updated, err
}

func (s *accountService) ConnectWallet(ctx context.Context, userID string, req *account.ConnectWalletRequest) (*account.Account, error) {
	addr, err := oracle.NormalizeAddress(req.Address)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid wallet address")
	}
	if err := s.wallets.VerifyWallet(ctx, userID, addr, req.Signature); err != nil {
		return nil, apperrors.UnAuthorizedError(err, "invalid wallet signature")
	}

	acc, err := s.setWallet(ctx, userID, addr)
	if err != nil {
		switch {
		case errors.Is(err, ErrWalletAlreadyConnected):
			return nil, apperrors.ConflictError(err, "a different wallet is already connected")
		case errors.Is(err, accountstore.ErrAccountNotFound):
			return nil, apperrors.ResourceNotFoundError(err, "account not found")
		}
		return nil, err
	}
	return acc, nil
}

// setWallet connects addr once. Connecting the same wallet again is a no-op.
func (s *accountService) setWallet(ctx context.Context, userID, addr string) (*account.Account, error) {
	now := s.now()
	acc, err := s.store.UpdateAccount(ctx, userID, func(a *account.Account) error {
		if a.HasWallet() {
			if oracle.SameAddress(a.WalletAddress, addr) {
				return errSameWallet
			}
			return ErrWalletAlreadyConnected
		}
		a.WalletAddress = addr
		a.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errSameWallet) {
		return s.store.GetAccount(ctx, userID)
	}
	if err != nil && !errors.Is(err, ErrWalletAlreadyConnected) && !errors.Is(err, accountstore.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to connect wallet: %w", err)
	}
	return acc, err
}

func (s *accountService) GetProfile(ctx context.Context, userID string) (*account.Account, error) {
	return s.getAccount(ctx, userID)
}

func (s *accountService) GetStats(ctx context.Context, userID string) (*account.Stats, error) {
	acc, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := s.txs.TotalEarned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum earned rewards: %w", err)
	}

	now := s.now()
	stats := &account.Stats{
		Balance:        acc.Balance,
		TotalEarned:    earned,
		FarmClaimCount: acc.FarmClaimCount,
		ReferralCount:  acc.ReferralCount,
		ReferralCode:   acc.ReferralCode,
		DailyStreak:    acc.DailyCheckin.Streak,
		WelcomeClaimed: acc.WelcomeClaimed,
		BoostActive:    acc.ActiveBoost.ActiveAt(now),
		BoostName:      account.NeutralBoostName,
	}
	if stats.BoostActive {
		stats.BoostName = acc.ActiveBoost.Name
	}
	return stats, nil
}

func (s *accountService) GetWallet(ctx context.Context, userID string) (*account.Wallet, error) {
	acc, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !acc.HasWallet() {
		return nil, apperrors.ForbiddenError(ErrWalletNotConnected, "wallet not connected")
	}

	balance, err := s.balances.Balance(ctx, acc.WalletAddress)
	if err != nil {
		if errors.Is(err, oracle.ErrUpstreamUnavailable) {
			return nil, apperrors.DependencyFailureError(err, "wallet balance unavailable")
		}
		return nil, fmt.Errorf("failed to read wallet balance: %w", err)
	}

	return &account.Wallet{
		Address:      acc.WalletAddress,
		UserFriendly: oracle.FriendlyAddress(acc.WalletAddress, s.cfg.Testnet),
		BalanceTON:   balance,
	}, nil
}

func (s *accountService) ListTransactions(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	if _, err := s.getAccount(ctx, userID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultTransactionLimit
	case limit > maxTransactionLimit:
		limit = maxTransactionLimit
	}

	txs, err := s.txs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (s *accountService) PaymentRequest(ctx context.Context, userID string, req *account.PaymentRequest) (*account.PaymentLink, error) {
	if _, err := s.getAccount(ctx, userID); err != nil {
		return nil, err
	}

	productID := req.ProductID
	amount := req.Amount
	switch req.Kind {
	case "boost":
		boost, err := s.catalog.Boost(req.ProductID)
		if err != nil {
			return nil, apperrors.BadRequestError(err, "invalid product")
		}
		productID = boost.ID
		amount = boost.PriceTON
	case "presale":
		if !amount.IsPositive() {
			return nil, apperrors.BadRequestError(nil, "presale amount must be positive")
		}
		if productID == "" {
			productID = presaleProductID
		}
	default:
		return nil, apperrors.BadRequestError(nil, "unknown payment kind")
	}

	destination := oracle.FriendlyAddress(s.cfg.ReceivingWallet, s.cfg.Testnet)
	memo := fmt.Sprintf("%s_%s_%s", req.Kind, productID, userID)
	return &account.PaymentLink{
		Link:        oracle.PaymentLink(destination, amount, memo),
		Destination: destination,
		AmountTON:   amount,
		AmountNano:  oracle.TONToNano(amount).String(),
		Memo:        memo,
	}, nil
}

func (s *accountService) getAccount(ctx context.Context, userID string) (*account.Account, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, accountstore.ErrAccountNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "account not found")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}
