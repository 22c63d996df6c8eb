package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/reward"
)

const serviceName = "RewardService"

// logService wraps Service with logging of every method call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the reward Service.
// It logs method entry, exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) started(method, userID string, fields ...zap.Field) {
	ls.logger.Info(method+" started", append([]zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("user_id", userID),
	}, fields...)...)
}

// finished logs the result. Client errors are logged at warn level, the rest at error level.
func (ls *logService) finished(method, userID string, start time.Time, err error, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("user_id", userID),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		if isClientError(err) {
			ls.logger.Warn(method+" rejected", append(base, zap.Error(err))...)
			return
		}
		ls.logger.Error(method+" failed", append(base, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", append(base, fields...)...)
}

// ClaimFarm wraps the service method with logging
func (ls *logService) ClaimFarm(ctx context.Context, userID string) (resp *reward.FarmClaimResult, err error) {
	start := time.Now()
	ls.started("ClaimFarm", userID)

	defer func() {
		if err != nil {
			ls.finished("ClaimFarm", userID, start, err)
			return
		}
		ls.finished("ClaimFarm", userID, start, nil,
			zap.String("transaction_id", resp.TransactionID),
			zap.String("reward", resp.Reward.String()),
			zap.String("commission", resp.Commission.String()),
			zap.String("boost_multiplier", resp.BoostMultiplier.String()),
			zap.Time("next_claim_time", resp.NextClaimTime),
		)
	}()

	return ls.svc.ClaimFarm(ctx, userID)
}

// FarmStatus is read-only and logged at debug level
func (ls *logService) FarmStatus(ctx context.Context, userID string) (*reward.FarmStatus, error) {
	st, err := ls.svc.FarmStatus(ctx, userID)
	if err != nil {
		ls.logger.Debug("FarmStatus failed", zap.String("user_id", userID), zap.Error(err))
	}
	return st, err
}

// ClaimDailyCheckin wraps the service method with logging
func (ls *logService) ClaimDailyCheckin(ctx context.Context, userID string) (resp *reward.DailyCheckinResult, err error) {
	start := time.Now()
	ls.started("ClaimDailyCheckin", userID)

	defer func() {
		if err != nil {
			ls.finished("ClaimDailyCheckin", userID, start, err)
			return
		}
		ls.finished("ClaimDailyCheckin", userID, start, nil,
			zap.String("transaction_id", resp.TransactionID),
			zap.String("reward", resp.Reward.String()),
			zap.Int("streak", resp.NewStreak),
			zap.Int("day", resp.Day),
		)
	}()

	return ls.svc.ClaimDailyCheckin(ctx, userID)
}

// CompleteTask wraps the service method with logging
func (ls *logService) CompleteTask(ctx context.Context, userID string, req *reward.CompleteTaskRequest) (resp *reward.TaskResult, err error) {
	start := time.Now()
	ls.started("CompleteTask", userID,
		zap.String("task_id", req.TaskID),
		zap.Bool("has_proof", req.Proof != ""),
	)

	defer func() {
		if err != nil {
			ls.finished("CompleteTask", userID, start, err, zap.String("task_id", req.TaskID))
			return
		}
		ls.finished("CompleteTask", userID, start, nil,
			zap.String("transaction_id", resp.TransactionID),
			zap.String("task_id", resp.TaskID),
			zap.String("reward", resp.Reward.String()),
		)
	}()

	return ls.svc.CompleteTask(ctx, userID, req)
}

// SubmitQuotexID wraps the service method with logging
func (ls *logService) SubmitQuotexID(ctx context.Context, userID string, req *reward.QuotexSubmissionRequest) (resp *reward.TaskSubmissionResult, err error) {
	start := time.Now()
	ls.started("SubmitQuotexID", userID)

	defer func() {
		if err != nil {
			ls.finished("SubmitQuotexID", userID, start, err)
			return
		}
		ls.finished("SubmitQuotexID", userID, start, nil,
			zap.String("task_id", resp.TaskID),
			zap.Time("available_at", resp.AvailableAt),
		)
	}()

	return ls.svc.SubmitQuotexID(ctx, userID, req)
}

// ClaimWelcomeReward wraps the service method with logging
func (ls *logService) ClaimWelcomeReward(ctx context.Context, userID string) (resp *reward.WelcomeResult, err error) {
	start := time.Now()
	ls.started("ClaimWelcomeReward", userID)

	defer func() {
		if err != nil {
			ls.finished("ClaimWelcomeReward", userID, start, err)
			return
		}
		ls.finished("ClaimWelcomeReward", userID, start, nil,
			zap.String("transaction_id", resp.TransactionID),
			zap.String("reward", resp.Reward.String()),
		)
	}()

	return ls.svc.ClaimWelcomeReward(ctx, userID)
}

// PurchasePresale wraps the service method with logging
func (ls *logService) PurchasePresale(ctx context.Context, userID string, req *reward.PresaleRequest) (resp *reward.PurchaseResult, err error) {
	start := time.Now()
	ls.started("PurchasePresale", userID,
		zap.String("ton_amount", req.TONAmount.String()),
		zap.String("tx_ref", req.TxRef),
	)

	defer func() {
		if err != nil {
			ls.finished("PurchasePresale", userID, start, err, zap.String("tx_ref", req.TxRef))
			return
		}
		ls.finished("PurchasePresale", userID, start, nil,
			zap.String("transaction_id", resp.TransactionID),
			zap.String("payment_hash", resp.PaymentHash),
			zap.String("tokens", resp.TokensCredited.String()),
		)
	}()

	return ls.svc.PurchasePresale(ctx, userID, req)
}

// PurchaseBoost wraps the service method with logging
func (ls *logService) PurchaseBoost(ctx context.Context, userID string, req *reward.BoostPurchaseRequest) (resp *reward.PurchaseResult, err error) {
	start := time.Now()
	ls.started("PurchaseBoost", userID,
		zap.String("boost_id", req.BoostID),
		zap.String("ton_amount", req.TONAmount.String()),
		zap.String("tx_ref", req.TxRef),
	)

	defer func() {
		if err != nil {
			ls.finished("PurchaseBoost", userID, start, err, zap.String("tx_ref", req.TxRef))
			return
		}
		fields := []zap.Field{
			zap.String("transaction_id", resp.TransactionID),
			zap.String("payment_hash", resp.PaymentHash),
		}
		if resp.ActiveBoost != nil {
			fields = append(fields,
				zap.String("boost_name", resp.ActiveBoost.Name),
				zap.Time("boost_end_time", resp.ActiveBoost.EndTime))
		}
		ls.finished("PurchaseBoost", userID, start, nil, fields...)
	}()

	return ls.svc.PurchaseBoost(ctx, userID, req)
}

func (ls *logService) Catalog(ctx context.Context) (*reward.CatalogView, error) {
	return ls.svc.Catalog(ctx)
}
