package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	apperrors "github.com/chainsafe/qtx-rewards/pkg/app/errors"
	"github.com/chainsafe/qtx-rewards/pkg/ledger"
)

const serviceName = "AccountService"

const signatureDisplaySize = 16

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the account Service.
// It logs method entry/exit, duration, errors, and redacted request data.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) done(method, userID string, start time.Time, err error, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("user_id", userID),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case err == nil:
		ls.logger.Info(method+" completed", append(base, fields...)...)
	case apperrors.IsInternalError(err):
		ls.logger.Error(method+" failed", append(base, zap.Error(err))...)
	default:
		ls.logger.Warn(method+" rejected", append(base, zap.Error(err))...)
	}
}

// Register wraps the service method with logging
func (ls *logService) Register(ctx context.Context, userID string, req *account.RegisterRequest) (resp *account.Account, err error) {
	start := time.Now()

	ls.logger.Info("Register started",
		zap.String("service", serviceName),
		zap.String("method", "Register"),
		zap.String("user_id", userID),
		zap.Bool("has_wallet", req.WalletAddress != ""),
		zap.String("referral_code", req.ReferralCode),
	)

	defer func() {
		if err != nil {
			ls.done("Register", userID, start, err)
			return
		}
		ls.done("Register", userID, start, nil,
			zap.String("referral_code", resp.ReferralCode),
			zap.String("referred_by", resp.ReferredBy),
		)
	}()

	return ls.svc.Register(ctx, userID, req)
}

// ConnectWallet wraps the service method with logging
func (ls *logService) ConnectWallet(ctx context.Context, userID string, req *account.ConnectWalletRequest) (resp *account.Account, err error) {
	start := time.Now()

	ls.logger.Info("ConnectWallet started",
		zap.String("service", serviceName),
		zap.String("method", "ConnectWallet"),
		zap.String("user_id", userID),
		zap.String("address", req.Address),
		zap.String("signature", redactSignature(req.Signature)),
	)

	defer func() {
		if err != nil {
			ls.done("ConnectWallet", userID, start, err)
			return
		}
		ls.done("ConnectWallet", userID, start, nil, zap.String("wallet", resp.WalletAddress))
	}()

	return ls.svc.ConnectWallet(ctx, userID, req)
}

func (ls *logService) GetProfile(ctx context.Context, userID string) (*account.Account, error) {
	return ls.svc.GetProfile(ctx, userID)
}

func (ls *logService) GetStats(ctx context.Context, userID string) (*account.Stats, error) {
	return ls.svc.GetStats(ctx, userID)
}

// GetWallet logs failures only; it calls the oracle
func (ls *logService) GetWallet(ctx context.Context, userID string) (resp *account.Wallet, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.done("GetWallet", userID, start, err)
		}
	}()
	return ls.svc.GetWallet(ctx, userID)
}

func (ls *logService) ListTransactions(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	return ls.svc.ListTransactions(ctx, userID, limit)
}

// PaymentRequest wraps the service method with logging
func (ls *logService) PaymentRequest(ctx context.Context, userID string, req *account.PaymentRequest) (resp *account.PaymentLink, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.done("PaymentRequest", userID, start, err)
			return
		}
		ls.done("PaymentRequest", userID, start, nil,
			zap.String("kind", req.Kind),
			zap.String("memo", resp.Memo),
			zap.String("amount_ton", resp.AmountTON.String()),
		)
	}()
	return ls.svc.PaymentRequest(ctx, userID, req)
}

// redactSignature shows only the edges and length of a signature
func redactSignature(sig string) string {
	if sig == "" {
		return "<empty>"
	}
	sigLen := len(sig)
	if sigLen > signatureDisplaySize {
		return fmt.Sprintf("%s...%s (%d bytes)", sig[:8], sig[sigLen-4:], sigLen)
	}
	return fmt.Sprintf("<%d bytes>", sigLen)
}
